package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# taskmirror configuration file
# Values can be overridden by TASKMIRROR_* environment variables or CLI flags

# Task list to mirror (required)
list_id = ""

# Maximum tasks fetched per poll
max_results = 10

# Include completed tasks (also includes hidden ones)
show_completed = true
show_hidden = false

# Poll interval and per-request timeout
update_interval = "10s"
request_timeout = "15s"

# Display
header = "Today's Tasks"
date_format = "Jan 2"   # Go time layout; due dates are shown in UTC
date_ordinal = true     # "May 1st" instead of "May 1"
animation_duration = "500ms"
animation_epsilon = 0.5 # cells

# Backend: "google" (Google Tasks) or "file" (local JSON task file)
backend = "google"
credentials_file = "credentials.json"
token_file = "token.json"
tasks_file = "tasks.json"

# Logging (the TUI owns the terminal, so logs go to log_dir)
log_dir = "~/.taskmirror"
log_level = "info"
log_format = "text"
log_timestamps = true
log_caller = false
`
}
