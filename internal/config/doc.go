// Package config handles configuration loading and defaults.
//
// Configuration is loaded from multiple sources in priority order:
// 1. Built-in defaults
// 2. User config file (~/.taskmirror/taskmirror.toml or OS-specific config directory)
// 3. Project config file (taskmirror.toml or .taskmirror.toml in the working directory)
// 4. A .env file in the working directory (only fills variables that are unset)
// 5. Environment variables (TASKMIRROR_*)
// 6. CLI flags
//
// Each level overrides the previous one, so CLI flags take precedence.
//
// User-level config locations:
// - ~/.taskmirror/taskmirror.toml (preferred)
// - Windows: %APPDATA%\taskmirror\taskmirror.toml
// - macOS: ~/Library/Application Support/taskmirror/taskmirror.toml
// - Linux/BSD: $XDG_CONFIG_HOME/taskmirror/taskmirror.toml or ~/.config/taskmirror/taskmirror.toml
package config
