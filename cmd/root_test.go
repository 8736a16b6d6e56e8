// Package cmd provides tests for CLI command handlers.
package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nibzard/taskmirror/internal/filetasks"
	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/message"
)

// isolate runs the test in an empty project with no user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	t.Setenv("TASKMIRROR_LIST_ID", "")
	t.Setenv("TASKMIRROR_BACKEND", "")
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestRun tests the main Run function.
func TestRun(t *testing.T) {
	isolate(t)

	for _, args := range [][]string{{"--help"}, {"-h"}, {"help"}} {
		t.Run("help "+args[0], func(t *testing.T) {
			out, _, err := runCLI(t, args...)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(out, "Usage:") || !strings.Contains(out, "doctor") {
				t.Errorf("usage missing:\n%s", out)
			}
		})
	}

	for _, args := range [][]string{{"--version"}, {"-v"}, {"version"}} {
		t.Run("version "+args[0], func(t *testing.T) {
			out, _, err := runCLI(t, args...)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if out != "taskmirror version dev\n" {
				t.Errorf("got %q", out)
			}
		})
	}

	t.Run("unknown command returns error", func(t *testing.T) {
		_, stderr, err := runCLI(t, "unknown-command")
		if err == nil || !strings.Contains(err.Error(), "unknown command") {
			t.Errorf("expected 'unknown command' error, got %v", err)
		}
		if !strings.Contains(stderr, "Unknown command: unknown-command") {
			t.Errorf("stderr = %q", stderr)
		}
	})

	t.Run("run rejects extra arguments", func(t *testing.T) {
		_, _, err := runCLI(t, "run", "extra")
		if err == nil || !strings.Contains(err.Error(), "unexpected arguments") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("bad global flag", func(t *testing.T) {
		if _, _, err := runCLI(t, "-backend", "caldav", "version"); err == nil {
			t.Error("expected error for unknown backend")
		}
	})
}

func TestConfigCommand(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "taskmirror.toml"), []byte("header = \"Chores\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TASKMIRROR_LIST_ID", "from-env")

	out, _, err := runCLI(t, "-max-results", "3", "config")
	if err != nil {
		t.Fatal(err)
	}
	wantLines := map[string]string{
		"list_id":         "(environment)",
		"header":          "(project file)",
		"max_results":     "(flag)",
		"update_interval": "(default)",
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if want, ok := wantLines[fields[0]]; ok {
			if !strings.HasSuffix(line, want) {
				t.Errorf("%s: got %q, want source %s", fields[0], line, want)
			}
			delete(wantLines, fields[0])
		}
	}
	if len(wantLines) != 0 {
		t.Errorf("missing keys: %v\n%s", wantLines, out)
	}
	if !strings.Contains(out, "Config file: taskmirror.toml") {
		t.Errorf("config file not reported:\n%s", out)
	}
}

func TestConfigExample(t *testing.T) {
	isolate(t)
	out, _, err := runCLI(t, "config", "-example")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "list_id") || !strings.Contains(out, "backend") {
		t.Errorf("example config incomplete:\n%s", out)
	}
}

func TestInitCommand(t *testing.T) {
	dir := isolate(t)

	if _, _, err := runCLI(t, "init", "-tasks-file"); err != nil {
		t.Fatalf("init: %v", err)
	}
	configPath := filepath.Join(dir, configFileName)
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("expected %s to exist: %v", configPath, err)
	}
	if _, err := filetasks.Load(filepath.Join(dir, "tasks.json")); err != nil {
		t.Fatalf("sample task file invalid: %v", err)
	}

	if _, _, err := runCLI(t, "init"); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("second init: err = %v", err)
	}
	if _, _, err := runCLI(t, "init", "-force"); err != nil {
		t.Errorf("init -force: %v", err)
	}
}

func TestDoctorCommand(t *testing.T) {
	t.Run("missing list id fails", func(t *testing.T) {
		isolate(t)
		out, _, err := runCLI(t, "-backend", "file", "doctor")
		if err == nil || !strings.Contains(err.Error(), "failed") {
			t.Errorf("err = %v", err)
		}
		if !strings.Contains(out, "List id: not set") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("file backend passes", func(t *testing.T) {
		isolate(t)
		if _, _, err := runCLI(t, "init", "-tasks-file"); err != nil {
			t.Fatal(err)
		}
		out, _, err := runCLI(t, "-backend", "file", "-list", "today", "doctor", "-online")
		if err != nil {
			t.Fatalf("doctor: %v\n%s", err, out)
		}
		for _, want := range []string{"✅ Valid", "List today: 4 tasks", "Fetched 4 tasks (1 completed)", "All checks passed"} {
			if !strings.Contains(out, want) {
				t.Errorf("missing %q in:\n%s", want, out)
			}
		}
	})

	t.Run("unknown list in file", func(t *testing.T) {
		isolate(t)
		if _, _, err := runCLI(t, "init", "-tasks-file"); err != nil {
			t.Fatal(err)
		}
		out, _, err := runCLI(t, "-backend", "file", "-list", "nope", "doctor")
		if err == nil {
			t.Error("expected failure")
		}
		if !strings.Contains(out, "List nope not in file") {
			t.Errorf("output:\n%s", out)
		}
	})

	t.Run("google backend without credentials", func(t *testing.T) {
		isolate(t)
		out, _, err := runCLI(t, "-list", "abc", "doctor")
		if err == nil {
			t.Error("expected failure")
		}
		if !strings.Contains(out, "Credentials file:") || !strings.Contains(out, "Token file:") {
			t.Errorf("output:\n%s", out)
		}
	})
}

func TestListsCommandFileBackend(t *testing.T) {
	isolate(t)
	if _, _, err := runCLI(t, "init", "-tasks-file"); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, "-backend", "file", "-list", "today", "lists")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "* today") || !strings.Contains(out, "(4 tasks)") {
		t.Errorf("output:\n%s", out)
	}
}

func TestTailCommand(t *testing.T) {
	isolate(t)

	out, _, err := runCLI(t, "-log-dir", t.TempDir(), "tail")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No log files found.") {
		t.Errorf("output: %q", out)
	}

	out, _, err = runCLI(t, "-log-dir", t.TempDir(), "tail", "-list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No runs found.") {
		t.Errorf("output: %q", out)
	}

	base := t.TempDir()
	dir := isolateLogDir(t, base)
	if err := os.WriteFile(filepath.Join(dir, "20240301-120000.log"), []byte("one\ntwo\nthree\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, "-log-dir", base, "tail", "-n", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "three\n") || strings.Contains(out, "two") {
		t.Errorf("output: %q", out)
	}
}

func isolateLogDir(t *testing.T, base string) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir, err := logging.FindLogDir(base, wd)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestHelperCommandServesStream(t *testing.T) {
	isolate(t)
	if _, _, err := runCLI(t, "init", "-tasks-file"); err != nil {
		t.Fatal(err)
	}

	req, err := message.Encode(message.ModuleReady{})
	if err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	err = run(context.Background(), []string{"-backend", "file", "helper"}, bytes.NewReader(append(req, '\n')), &stdout, &stderr)
	if err != nil {
		t.Fatalf("helper: %v (stderr %s)", err, stderr.String())
	}
	reply, err := message.Decode(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		t.Fatalf("decode %q: %v", stdout.String(), err)
	}
	if _, ok := reply.(message.ServiceReady); !ok {
		t.Errorf("reply = %#v", reply)
	}
}
