package config

import (
	"fmt"
	"strings"
	"time"
)

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
}

// Backend selects the task service implementation.
type Backend string

const (
	BackendGoogle Backend = "google"
	BackendFile   Backend = "file"
)

// ParseBackend normalizes a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendGoogle, BackendFile:
		return b, nil
	case "":
		return BackendGoogle, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want google or file)", s)
	}
}

// Default values.
const (
	DefaultMaxResults        = 10
	DefaultShowCompleted     = true
	DefaultUpdateInterval    = 10 * time.Second
	DefaultDateFormat        = "Jan 2"
	DefaultDateOrdinal       = true
	DefaultAnimationDuration = 500 * time.Millisecond
	DefaultAnimationEpsilon  = 0.5
	DefaultBackend           = BackendGoogle
	DefaultCredentialsFile   = "credentials.json"
	DefaultTokenFile         = "token.json"
	DefaultTasksFile         = "tasks.json"
	DefaultRequestTimeout    = 15 * time.Second
	DefaultHeader            = "Today's Tasks"
	DefaultLogDir            = "~/.taskmirror"
)

// Config holds the full configuration for taskmirror.
type Config struct {
	// List selection
	ListID        string `toml:"list_id"`
	MaxResults    int    `toml:"max_results"`
	ShowCompleted bool   `toml:"show_completed"`
	ShowHidden    bool   `toml:"show_hidden"`

	// Polling
	UpdateInterval time.Duration `toml:"update_interval"`
	RequestTimeout time.Duration `toml:"request_timeout"`

	// Display
	Header            string        `toml:"header"`
	DateFormat        string        `toml:"date_format"`
	DateOrdinal       bool          `toml:"date_ordinal"`
	AnimationDuration time.Duration `toml:"animation_duration"`
	AnimationEpsilon  float64       `toml:"animation_epsilon"`

	// Backend
	Backend         Backend `toml:"backend"`
	CredentialsFile string  `toml:"credentials_file"`
	TokenFile       string  `toml:"token_file"`
	TasksFile       string  `toml:"tasks_file"`

	// Logging configuration
	LogDir        string `toml:"log_dir"`
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// Project root (computed)
	ProjectRoot string `toml:"-"`
}
