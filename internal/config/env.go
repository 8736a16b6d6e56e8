package config

import (
	"os"
	"strconv"
	"time"
)

// EnvPrefix is prepended to every environment variable taskmirror reads.
const EnvPrefix = "TASKMIRROR_"

// envBinding maps one environment variable to one config field. apply
// returns false when the value cannot be parsed; the field is then left alone.
type envBinding struct {
	key   string
	field string
	apply func(cfg *Config, v string) bool
}

func envBindings() []envBinding {
	return []envBinding{
		{"LIST_ID", "list_id", func(c *Config, v string) bool { c.ListID = v; return true }},
		{"MAX_RESULTS", "max_results", intSetter(func(c *Config) *int { return &c.MaxResults })},
		{"SHOW_COMPLETED", "show_completed", boolSetter(func(c *Config) *bool { return &c.ShowCompleted })},
		{"SHOW_HIDDEN", "show_hidden", boolSetter(func(c *Config) *bool { return &c.ShowHidden })},
		{"UPDATE_INTERVAL", "update_interval", durationSetter(func(c *Config) *time.Duration { return &c.UpdateInterval })},
		{"REQUEST_TIMEOUT", "request_timeout", durationSetter(func(c *Config) *time.Duration { return &c.RequestTimeout })},
		{"HEADER", "header", func(c *Config, v string) bool { c.Header = v; return true }},
		{"DATE_FORMAT", "date_format", func(c *Config, v string) bool { c.DateFormat = v; return true }},
		{"DATE_ORDINAL", "date_ordinal", boolSetter(func(c *Config) *bool { return &c.DateOrdinal })},
		{"ANIMATION_DURATION", "animation_duration", durationSetter(func(c *Config) *time.Duration { return &c.AnimationDuration })},
		{"ANIMATION_EPSILON", "animation_epsilon", func(c *Config, v string) bool {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return false
			}
			c.AnimationEpsilon = f
			return true
		}},
		{"BACKEND", "backend", func(c *Config, v string) bool { c.Backend = Backend(v); return true }},
		{"CREDENTIALS", "credentials_file", func(c *Config, v string) bool { c.CredentialsFile = v; return true }},
		{"TOKEN", "token_file", func(c *Config, v string) bool { c.TokenFile = v; return true }},
		{"TASKS_FILE", "tasks_file", func(c *Config, v string) bool { c.TasksFile = v; return true }},
		{"LOG_DIR", "log_dir", func(c *Config, v string) bool { c.LogDir = v; return true }},
		{"LOG_LEVEL", "log_level", func(c *Config, v string) bool { c.LogLevel = v; return true }},
		{"LOG_FORMAT", "log_format", func(c *Config, v string) bool { c.LogFormat = v; return true }},
		{"LOG_TIMESTAMPS", "log_timestamps", boolSetter(func(c *Config) *bool { return &c.LogTimestamps })},
		{"LOG_CALLER", "log_caller", boolSetter(func(c *Config) *bool { return &c.LogCaller })},
	}
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) {
	loadFromEnvHelper(cfg, nil, "")
}

// loadFromEnvHelper is the shared implementation for env loading.
// If sources is non-nil, it tracks the source of each value.
func loadFromEnvHelper(cfg *Config, sources map[string]ConfigSource, source ConfigSource) {
	for _, b := range envBindings() {
		v := os.Getenv(EnvPrefix + b.key)
		if v == "" {
			continue
		}
		if !b.apply(cfg, v) {
			continue
		}
		if sources != nil {
			sources[b.field] = source
		}
	}
}

func intSetter(field func(*Config) *int) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		i, err := strconv.Atoi(v)
		if err != nil {
			return false
		}
		*field(c) = i
		return true
	}
}

func boolSetter(field func(*Config) *bool) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		*field(c) = boolFromString(v)
		return true
	}
}

func durationSetter(field func(*Config) *time.Duration) func(*Config, string) bool {
	return func(c *Config, v string) bool {
		d, err := parseDuration(v)
		if err != nil {
			return false
		}
		*field(c) = d
		return true
	}
}

// parseDuration accepts Go duration strings and bare integers in
// milliseconds (TASKMIRROR_UPDATE_INTERVAL=10000).
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
