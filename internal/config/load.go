package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.taskmirror/taskmirror.toml or OS-specific config dir)
// 3. Project config file (taskmirror.toml or .taskmirror.toml in current directory)
// 4. .env file, then environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := load(fs, args, nil)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Returns ConfigWithSources containing the config and a map of field names to their sources.
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}
	return load(fs, args, sources)
}

func load(fs *flag.FlagSet, args []string, sources map[string]ConfigSource) (*ConfigWithSources, error) {
	cfg := &Config{}

	// 1. Set defaults
	setDefaults(cfg)

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFileWithSources(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
	}

	// 3. Try to load from project config file (overrides user config)
	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFileWithSources(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
	}

	// 4. Fill unset variables from .env, then override from environment
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	loadFromEnvHelper(cfg, sources, SourceEnv)

	// 5. Parse CLI flags (they override everything)
	if err := parseFlagsHelper(cfg, fs, args, sources, SourceFlag); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return &ConfigWithSources{Config: cfg, Sources: sources}, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"list_id",
		"max_results",
		"show_completed",
		"show_hidden",
		"update_interval",
		"request_timeout",
		"header",
		"date_format",
		"date_ordinal",
		"animation_duration",
		"animation_epsilon",
		"backend",
		"credentials_file",
		"token_file",
		"tasks_file",
		"log_dir",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
	}
}

// loadConfigFile loads TOML config from the given file.
func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

// loadConfigFileWithSources loads TOML config and, when sources is non-nil,
// marks every key present in the file as coming from source.
func loadConfigFileWithSources(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config keys: %v", undecoded)
	}
	if sources == nil {
		return nil
	}
	for _, field := range configFields() {
		if md.IsDefined(field) {
			sources[field] = source
		}
	}
	return nil
}

// loadDotEnv sets variables from path that are not already in the environment.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// finalizeConfig computes derived values and validates the result.
func finalizeConfig(cfg *Config) error {
	backend, err := ParseBackend(string(cfg.Backend))
	if err != nil {
		return err
	}
	cfg.Backend = backend

	if cfg.MaxResults < 0 {
		return fmt.Errorf("max_results must not be negative (got %d)", cfg.MaxResults)
	}
	if cfg.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive (got %s)", cfg.UpdateInterval)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.AnimationDuration < 0 {
		return fmt.Errorf("animation_duration must not be negative (got %s)", cfg.AnimationDuration)
	}
	if cfg.AnimationEpsilon < 0 {
		return fmt.Errorf("animation_epsilon must not be negative (got %v)", cfg.AnimationEpsilon)
	}

	// The remote list API hides completed tasks unless hidden ones are shown.
	if cfg.ShowCompleted {
		cfg.ShowHidden = true
	}

	// Expand ~ in paths
	cfg.LogDir = expandPath(cfg.LogDir)
	cfg.CredentialsFile = expandPath(cfg.CredentialsFile)
	cfg.TokenFile = expandPath(cfg.TokenFile)
	cfg.TasksFile = expandPath(cfg.TasksFile)

	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	for _, p := range []*string{&cfg.CredentialsFile, &cfg.TokenFile, &cfg.TasksFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(cfg.ProjectRoot, *p)
		}
	}

	return nil
}
