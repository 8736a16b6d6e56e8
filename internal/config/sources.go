package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// findProjectConfigFile looks for a config file in the current directory.
func findProjectConfigFile() string {
	names := []string{"taskmirror.toml", ".taskmirror.toml"}
	for _, name := range names {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// findUserConfigFile looks for a user-level config file.
// Checks ~/.taskmirror/taskmirror.toml first, then falls back to OS-specific
// config directories.
func findUserConfigFile() string {
	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".taskmirror", "taskmirror.toml")
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	if cfgDir := osUserConfigDir(); cfgDir != "" {
		userConfigPath := filepath.Join(cfgDir, "taskmirror", "taskmirror.toml")
		if _, err := os.Stat(userConfigPath); err == nil {
			return userConfigPath
		}
	}

	return ""
}

// osUserConfigDir returns the OS-specific user config directory.
// Returns empty string if the directory cannot be determined.
func osUserConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appdata := os.Getenv("APPDATA"); appdata != "" {
			return appdata
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, "Library", "Application Support")
		}
	case "linux", "openbsd", "freebsd", "netbsd":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return xdg
		}
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, ".config")
		}
	}
	return ""
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.MaxResults = DefaultMaxResults
	cfg.ShowCompleted = DefaultShowCompleted
	cfg.UpdateInterval = DefaultUpdateInterval
	cfg.RequestTimeout = DefaultRequestTimeout
	cfg.Header = DefaultHeader
	cfg.DateFormat = DefaultDateFormat
	cfg.DateOrdinal = DefaultDateOrdinal
	cfg.AnimationDuration = DefaultAnimationDuration
	cfg.AnimationEpsilon = DefaultAnimationEpsilon
	cfg.Backend = DefaultBackend
	cfg.CredentialsFile = DefaultCredentialsFile
	cfg.TokenFile = DefaultTokenFile
	cfg.TasksFile = DefaultTasksFile
	cfg.LogDir = DefaultLogDir
	cfg.LogLevel = "info"
	cfg.LogFormat = "text"
}

// Default returns a config holding only built-in defaults.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.ShowHidden = cfg.ShowCompleted
	return cfg
}

// GetConfigFile returns the active config file path (project or user).
func (cws *ConfigWithSources) GetConfigFile() string {
	has := func(want ConfigSource) bool {
		for _, source := range cws.Sources {
			if source == want {
				return true
			}
		}
		return false
	}
	if has(SourceProjFile) {
		if f := findProjectConfigFile(); f != "" {
			return f
		}
	}
	if has(SourceUserFile) {
		if f := findUserConfigFile(); f != "" {
			return f
		}
	}
	return ""
}

// boolFromString parses the usual truthy spellings; anything else is false.
func boolFromString(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
