package config

import (
	"strconv"
	"time"

	"github.com/nibzard/taskmirror/internal/tasks"
)

// minUpdateInterval keeps a misconfigured interval from hammering the API.
const minUpdateInterval = time.Second

// Criteria returns the list criteria derived from the config.
func (c *Config) Criteria() tasks.Criteria {
	return tasks.Criteria{
		ListID:        c.ListID,
		MaxResults:    c.MaxResults,
		ShowCompleted: c.ShowCompleted,
		ShowHidden:    c.ShowHidden,
	}.Normalize()
}

// PollInterval returns the update interval, floored at one second.
func (c *Config) PollInterval() time.Duration {
	if c.UpdateInterval < minUpdateInterval {
		return minUpdateInterval
	}
	return c.UpdateInterval
}

// UsesGoogle reports whether the Google Tasks backend is selected.
func (c *Config) UsesGoogle() bool {
	return c.Backend == "" || c.Backend == BackendGoogle
}

// Fields returns the configurable keys in display order.
func Fields() []string {
	return configFields()
}

// Value returns the current value of a config key formatted for display.
// Unknown keys yield "".
func (c *Config) Value(field string) string {
	switch field {
	case "list_id":
		return c.ListID
	case "max_results":
		return strconv.Itoa(c.MaxResults)
	case "show_completed":
		return strconv.FormatBool(c.ShowCompleted)
	case "show_hidden":
		return strconv.FormatBool(c.ShowHidden)
	case "update_interval":
		return c.UpdateInterval.String()
	case "request_timeout":
		return c.RequestTimeout.String()
	case "header":
		return c.Header
	case "date_format":
		return c.DateFormat
	case "date_ordinal":
		return strconv.FormatBool(c.DateOrdinal)
	case "animation_duration":
		return c.AnimationDuration.String()
	case "animation_epsilon":
		return strconv.FormatFloat(c.AnimationEpsilon, 'f', -1, 64)
	case "backend":
		return string(c.Backend)
	case "credentials_file":
		return c.CredentialsFile
	case "token_file":
		return c.TokenFile
	case "tasks_file":
		return c.TasksFile
	case "log_dir":
		return c.LogDir
	case "log_level":
		return c.LogLevel
	case "log_format":
		return c.LogFormat
	case "log_timestamps":
		return strconv.FormatBool(c.LogTimestamps)
	case "log_caller":
		return strconv.FormatBool(c.LogCaller)
	}
	return ""
}
