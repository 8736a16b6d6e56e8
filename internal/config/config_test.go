// Package config tests configuration loading.
package config

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// isolate points HOME and the working directory at fresh temp dirs so no
// real user or project config leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	for _, b := range envBindings() {
		t.Setenv(EnvPrefix+b.key, "")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	if cfg.MaxResults != DefaultMaxResults {
		t.Errorf("MaxResults: got %d, want %d", cfg.MaxResults, DefaultMaxResults)
	}
	if !cfg.ShowCompleted {
		t.Error("ShowCompleted: got false, want true")
	}
	if cfg.UpdateInterval != 10*time.Second {
		t.Errorf("UpdateInterval: got %s, want 10s", cfg.UpdateInterval)
	}
	if cfg.AnimationDuration != 500*time.Millisecond {
		t.Errorf("AnimationDuration: got %s, want 500ms", cfg.AnimationDuration)
	}
	if cfg.Backend != BackendGoogle {
		t.Errorf("Backend: got %q, want google", cfg.Backend)
	}
	if cfg.ListID != "" {
		t.Errorf("ListID: got %q, want empty", cfg.ListID)
	}
}

func TestLoadForcesShowHidden(t *testing.T) {
	isolate(t)
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-list", "L"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ShowHidden {
		t.Error("ShowHidden should be forced when ShowCompleted is set")
	}
	crit := cfg.Criteria()
	if crit.ListID != "L" || crit.MaxResults != 10 {
		t.Errorf("Criteria = %+v", crit)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "taskmirror.toml")

	content := []byte(`list_id = "abc"
max_results = 25
update_interval = "30s"
backend = "file"
`)
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{}
	if err := loadConfigFile(cfg, configFile); err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if cfg.ListID != "abc" {
		t.Errorf("ListID: got %q, want abc", cfg.ListID)
	}
	if cfg.MaxResults != 25 {
		t.Errorf("MaxResults: got %d, want 25", cfg.MaxResults)
	}
	if cfg.UpdateInterval != 30*time.Second {
		t.Errorf("UpdateInterval: got %s, want 30s", cfg.UpdateInterval)
	}
	if cfg.Backend != BackendFile {
		t.Errorf("Backend: got %q, want file", cfg.Backend)
	}
}

func TestLoadConfigFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskmirror.toml")
	if err := os.WriteFile(path, []byte("max_iterations = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	err := loadConfigFileWithSources(&Config{}, path, nil, SourceProjFile)
	if err == nil || !strings.Contains(err.Error(), "max_iterations") {
		t.Errorf("error = %v, want unknown key error", err)
	}
}

func TestLoadPriority(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "taskmirror.toml"), []byte(`list_id = "from-file"
max_results = 5
header = "File"
`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKMIRROR_MAX_RESULTS", "7")

	cws, err := LoadWithSources(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-header", "Flag"})
	if err != nil {
		t.Fatalf("LoadWithSources: %v", err)
	}
	cfg := cws.Config

	tests := []struct {
		field  string
		got    any
		want   any
		source ConfigSource
	}{
		{"list_id", cfg.ListID, "from-file", SourceProjFile},
		{"max_results", cfg.MaxResults, 7, SourceEnv},
		{"header", cfg.Header, "Flag", SourceFlag},
		{"date_format", cfg.DateFormat, DefaultDateFormat, SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("value: got %v, want %v", tt.got, tt.want)
			}
			if cws.Sources[tt.field] != tt.source {
				t.Errorf("source: got %q, want %q", cws.Sources[tt.field], tt.source)
			}
		})
	}
	if got := cws.GetConfigFile(); got != "taskmirror.toml" {
		t.Errorf("GetConfigFile: got %q", got)
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKMIRROR_LIST_ID=dotenv\nTASKMIRROR_HEADER=from-dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKMIRROR_HEADER", "from-env")
	// isolate set it to empty, which godotenv treats as present. The
	// t.Setenv cleanup restores the original value afterwards.
	os.Unsetenv("TASKMIRROR_LIST_ID")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListID != "dotenv" {
		t.Errorf("ListID: got %q, want dotenv", cfg.ListID)
	}
	if cfg.Header != "from-env" {
		t.Errorf("Header: got %q, want from-env", cfg.Header)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("TASKMIRROR_LIST_ID", "env-list")
	t.Setenv("TASKMIRROR_UPDATE_INTERVAL", "2500")
	t.Setenv("TASKMIRROR_ANIMATION_DURATION", "1s")
	t.Setenv("TASKMIRROR_ANIMATION_EPSILON", "0.25")
	t.Setenv("TASKMIRROR_SHOW_COMPLETED", "no")
	t.Setenv("TASKMIRROR_MAX_RESULTS", "not-a-number")

	cfg := &Config{}
	setDefaults(cfg)
	loadFromEnv(cfg)

	if cfg.ListID != "env-list" {
		t.Errorf("ListID: got %q", cfg.ListID)
	}
	if cfg.UpdateInterval != 2500*time.Millisecond {
		t.Errorf("UpdateInterval: got %s, want 2.5s", cfg.UpdateInterval)
	}
	if cfg.AnimationDuration != time.Second {
		t.Errorf("AnimationDuration: got %s", cfg.AnimationDuration)
	}
	if cfg.AnimationEpsilon != 0.25 {
		t.Errorf("AnimationEpsilon: got %v", cfg.AnimationEpsilon)
	}
	if cfg.ShowCompleted {
		t.Error("ShowCompleted: got true, want false")
	}
	if cfg.MaxResults != DefaultMaxResults {
		t.Errorf("MaxResults: got %d, want default for unparsable value", cfg.MaxResults)
	}
}

func TestParseFlags(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	args := []string{"-list", "X", "-interval", "1m", "-animation-epsilon", "1.5", "-backend", "file", "-show-completed=false"}
	if err := parseFlags(cfg, fs, args); err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if cfg.ListID != "X" || cfg.UpdateInterval != time.Minute || cfg.AnimationEpsilon != 1.5 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Backend != BackendFile {
		t.Errorf("Backend: got %q", cfg.Backend)
	}
	if cfg.ShowCompleted {
		t.Error("ShowCompleted should be false")
	}
	if cfg.Header != DefaultHeader {
		t.Errorf("unset flag changed Header to %q", cfg.Header)
	}
}

func TestParseFlagsBadEpsilon(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	if err := parseFlags(cfg, flag.NewFlagSet("test", flag.ContinueOnError), []string{"-animation-epsilon", "lots"}); err == nil {
		t.Error("expected error for invalid epsilon")
	}
}

func TestFinalizeConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad backend", func(c *Config) { c.Backend = "dropbox" }, true},
		{"zero interval", func(c *Config) { c.UpdateInterval = 0 }, true},
		{"negative results", func(c *Config) { c.MaxResults = -1 }, true},
		{"negative epsilon", func(c *Config) { c.AnimationEpsilon = -1 }, true},
		{"backend case", func(c *Config) { c.Backend = " FILE " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{ProjectRoot: t.TempDir()}
			setDefaults(cfg)
			tt.mutate(cfg)
			err := finalizeConfig(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("finalizeConfig error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && !filepath.IsAbs(cfg.TasksFile) {
				t.Errorf("TasksFile not absolute: %q", cfg.TasksFile)
			}
		})
	}
}

func TestBoolFromString(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true}, {"true", true}, {"YES", true}, {"on", true},
		{"0", false}, {"false", false}, {"", false}, {"maybe", false},
	}
	for _, tt := range tests {
		if got := boolFromString(tt.in); got != tt.want {
			t.Errorf("boolFromString(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"~", home},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}
	if runtime.GOOS == "windows" {
		t.Setenv("TASKMIRROR_TEST_HOME", home)
		tests = append(tests,
			struct{ input, want string }{`~\test`, filepath.Join(home, "test")},
			struct{ input, want string }{`%TASKMIRROR_TEST_HOME%\logs`, filepath.Join(home, "logs")},
		)
	} else {
		tests = append(tests, struct{ input, want string }{`~\test`, `~\test`})
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandPath(tt.input); got != tt.want {
				t.Errorf("expandPath(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandPercentVars(t *testing.T) {
	t.Setenv("TM_KNOWN", "v")
	tests := []struct{ in, want string }{
		{"%TM_KNOWN%/x", "v/x"},
		{"%TM_MISSING%/x", "%TM_MISSING%/x"},
		{"%TM_MISSING%%TM_KNOWN%", "%TM_MISSING%v"},
		{"100%", "100%"},
	}
	for _, tt := range tests {
		if got := expandPercentVars(tt.in); got != tt.want {
			t.Errorf("expandPercentVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPollIntervalFloor(t *testing.T) {
	cfg := &Config{UpdateInterval: 10 * time.Millisecond}
	if got := cfg.PollInterval(); got != time.Second {
		t.Errorf("PollInterval = %s, want 1s", got)
	}
}

func TestValueCoversEveryField(t *testing.T) {
	cfg := Default()
	cfg.ListID = "abc"
	for _, field := range Fields() {
		if field == "list_id" || field == "show_hidden" {
			continue
		}
		if cfg.Value(field) == "" && field != "credentials_file" && field != "token_file" {
			t.Errorf("Value(%q) is empty", field)
		}
	}
	if got := cfg.Value("list_id"); got != "abc" {
		t.Errorf("list_id = %q", got)
	}
	if got := cfg.Value("update_interval"); got != "10s" {
		t.Errorf("update_interval = %q", got)
	}
	if got := cfg.Value("nope"); got != "" {
		t.Errorf("unknown key = %q", got)
	}
}
