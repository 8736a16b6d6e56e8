package config

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// flagBinding ties a CLI flag to a config field. Flags are parsed into
// scratch values and applied only when set, so unset flags never clobber
// file or environment values.
type flagBinding struct {
	name  string
	field string
	apply func(cfg *Config)
}

// parseFlags defines and parses CLI flags.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	return parseFlagsHelper(cfg, fs, args, nil, "")
}

// parseFlagsHelper is the shared implementation for flag parsing.
// If sources is non-nil, it tracks the source of each value.
func parseFlagsHelper(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource, source ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("taskmirror", flag.ContinueOnError)
	}

	var bindings []flagBinding
	str := func(name, field, usage string, target *string) {
		v := fs.String(name, *target, usage)
		bindings = append(bindings, flagBinding{name, field, func(*Config) { *target = *v }})
	}
	boolean := func(name, field, usage string, target *bool) {
		v := fs.Bool(name, *target, usage)
		bindings = append(bindings, flagBinding{name, field, func(*Config) { *target = *v }})
	}
	integer := func(name, field, usage string, target *int) {
		v := fs.Int(name, *target, usage)
		bindings = append(bindings, flagBinding{name, field, func(*Config) { *target = *v }})
	}
	duration := func(name, field, usage string, target *time.Duration) {
		v := fs.Duration(name, *target, usage)
		bindings = append(bindings, flagBinding{name, field, func(*Config) { *target = *v }})
	}

	// List selection
	str("list", "list_id", "Task list id to mirror", &cfg.ListID)
	integer("max-results", "max_results", "Maximum tasks per poll", &cfg.MaxResults)
	boolean("show-completed", "show_completed", "Include completed tasks", &cfg.ShowCompleted)
	boolean("show-hidden", "show_hidden", "Include hidden tasks", &cfg.ShowHidden)

	// Polling
	duration("interval", "update_interval", "Poll interval", &cfg.UpdateInterval)
	duration("timeout", "request_timeout", "Timeout for one backend request", &cfg.RequestTimeout)

	// Display
	str("header", "header", "Header shown above the list (empty for none)", &cfg.Header)
	str("date-format", "date_format", "Go time layout for due dates", &cfg.DateFormat)
	boolean("date-ordinal", "date_ordinal", "Append st/nd/rd/th to the day of month", &cfg.DateOrdinal)
	duration("animation-duration", "animation_duration", "Reorder animation duration", &cfg.AnimationDuration)
	epsilon := fs.String("animation-epsilon", strconv.FormatFloat(cfg.AnimationEpsilon, 'f', -1, 64), "Minimum movement in cells that animates")
	bindings = append(bindings, flagBinding{"animation-epsilon", "animation_epsilon", nil})

	// Backend
	backend := string(cfg.Backend)
	str("backend", "backend", "Task backend (google, file)", &backend)
	str("credentials", "credentials_file", "OAuth client credentials file", &cfg.CredentialsFile)
	str("token", "token_file", "OAuth token file", &cfg.TokenFile)
	str("tasks-file", "tasks_file", "Task file for the file backend", &cfg.TasksFile)

	// Logging
	str("log-dir", "log_dir", "Log directory", &cfg.LogDir)
	str("log-level", "log_level", "Log level (debug, info, warn, error)", &cfg.LogLevel)
	str("log-format", "log_format", "Log format (text, json, logfmt)", &cfg.LogFormat)
	boolean("log-timestamps", "log_timestamps", "Show timestamps in logs", &cfg.LogTimestamps)
	boolean("log-caller", "log_caller", "Show caller location in logs", &cfg.LogCaller)

	if err := fs.Parse(args); err != nil {
		return err
	}

	byName := make(map[string]flagBinding, len(bindings))
	for _, b := range bindings {
		byName[b.name] = b
	}

	var applyErr error
	fs.Visit(func(f *flag.Flag) {
		b, ok := byName[f.Name]
		if !ok {
			return
		}
		switch f.Name {
		case "animation-epsilon":
			v, err := strconv.ParseFloat(*epsilon, 64)
			if err != nil {
				applyErr = fmt.Errorf("invalid -animation-epsilon %q: %w", *epsilon, err)
				return
			}
			cfg.AnimationEpsilon = v
		case "backend":
			b.apply(cfg)
			cfg.Backend = Backend(backend)
		default:
			b.apply(cfg)
		}
		if sources != nil {
			sources[b.field] = source
		}
	})
	return applyErr
}
