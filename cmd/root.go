// Package cmd implements the CLI command structure for taskmirror.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nibzard/taskmirror/internal/config"
	"github.com/nibzard/taskmirror/internal/display"
	"github.com/nibzard/taskmirror/internal/filetasks"
	"github.com/nibzard/taskmirror/internal/gtasks"
	"github.com/nibzard/taskmirror/internal/helper"
	"github.com/nibzard/taskmirror/internal/logging"
	"github.com/nibzard/taskmirror/internal/tasks"
	"github.com/nibzard/taskmirror/internal/ui"
	"github.com/nibzard/taskmirror/internal/widget"
)

// Version is set via ldflags at build time.
var Version = "dev"

// configFileName is the project config written by init.
const configFileName = "taskmirror.toml"

// Run executes the taskmirror CLI.
func Run(ctx context.Context, args []string) error {
	return run(ctx, args, os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	// Create a flag set for global options
	fs := flag.NewFlagSet("taskmirror", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		printUsage(fs, stderr)
	}
	help := fs.Bool("help", false, "Show help")
	fs.BoolVar(help, "h", false, "Show help")
	showVersion := fs.Bool("version", false, "Show version")
	fs.BoolVar(showVersion, "v", false, "Show version")

	cws, err := config.LoadWithSources(fs, args)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := cws.Config
	if *help {
		printUsage(fs, stdout)
		return nil
	}
	if *showVersion {
		return versionCommand(stdout)
	}

	// Determine the subcommand; no args or a leading flag means "run"
	subcommand := "run"
	remainingArgs := fs.Args()
	globalArgs := args[:len(args)-len(remainingArgs)]
	if len(remainingArgs) > 0 && !strings.HasPrefix(remainingArgs[0], "-") {
		subcommand = remainingArgs[0]
		remainingArgs = remainingArgs[1:]
	}

	switch subcommand {
	case "run":
		return runCommand(ctx, cfg, globalArgs, remainingArgs)
	case "helper":
		return helperCommand(ctx, cfg, remainingArgs, stdin, stdout, stderr)
	case "doctor":
		return doctorCommand(ctx, cfg, remainingArgs, stdout)
	case "lists":
		return listsCommand(ctx, cfg, remainingArgs, stdout)
	case "config":
		return configCommand(cws, remainingArgs, stdout)
	case "init":
		return initCommand(cfg, remainingArgs, stdout)
	case "tail":
		return tailCommand(ctx, cfg, remainingArgs, stdout)
	case "version":
		return versionCommand(stdout)
	case "help":
		printUsage(fs, stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", subcommand)
		printUsage(fs, stderr)
		return fmt.Errorf("unknown command: %s", subcommand)
	}
}

// runCommand mounts the task widget and drives the display until the user
// quits.
func runCommand(ctx context.Context, cfg *config.Config, globalArgs, args []string) error {
	fs := flag.NewFlagSet("taskmirror run", flag.ContinueOnError)
	spawn := fs.Bool("helper-process", false, "Run the backend helper in a child process")
	name := fs.String("name", display.Kind, "Widget mount name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	runLog, err := logging.NewRunLogger(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("creating run log: %w", err)
	}
	defer runLog.Close()
	logger := logging.New(runLog.Writer(), logging.OptionsFromStrings(cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller))
	logger.Info("starting", "version", Version, "run", runLog.RunID, "backend", cfg.Backend, "list", cfg.ListID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var link *helper.Link
	if *spawn {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locating executable: %w", err)
		}
		childArgs := append(append([]string{}, globalArgs...), "helper")
		link, err = helper.Spawn(ctx, logging.Component(logger, "helper"), exe, childArgs...)
		if err != nil {
			return err
		}
	} else {
		h := helper.New(authenticator(cfg),
			helper.WithLogger(logging.Component(logger, "helper")),
			helper.WithTimeout(cfg.RequestTimeout),
		)
		link = helper.InProcess(ctx, h)
	}
	defer func() {
		if err := link.Close(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("helper exited", "err", err)
		}
	}()

	reg := widget.NewRegistry()
	if err := display.Register(reg); err != nil {
		return err
	}
	w, err := reg.Build(display.Kind, widget.Env{
		Name:   *name,
		Config: cfg,
		Logger: logger,
		Link:   link,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", *name, err)
	}

	host := ui.NewHost([]ui.Mount{{Widget: w, Source: link}}, ui.WithLogger(logging.Component(logger, "host")))
	err = ui.Run(ctx, host)
	logger.Info("stopped", "err", err)
	return err
}

// helperCommand serves helper messages on stdin/stdout. It is started by
// "run -helper-process"; logs go to stderr, which the parent forwards.
func helperCommand(ctx context.Context, cfg *config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	opts := logging.OptionsFromStrings(cfg.LogLevel, "logfmt", false, cfg.LogCaller)
	logger := logging.New(stderr, opts)
	h := helper.New(authenticator(cfg), helper.WithLogger(logger), helper.WithTimeout(cfg.RequestTimeout))
	return helper.Serve(ctx, h, stdin, stdout, logger)
}

// authenticator returns the service factory for the configured backend.
func authenticator(cfg *config.Config) helper.Authenticator {
	if !cfg.UsesGoogle() {
		path := cfg.TasksFile
		return func(context.Context) (tasks.Service, error) {
			store, err := filetasks.Open(path)
			if err != nil {
				return nil, err
			}
			return store, nil
		}
	}
	credentials, token := cfg.CredentialsFile, cfg.TokenFile
	return func(ctx context.Context) (tasks.Service, error) {
		client, err := gtasks.Authenticate(ctx, credentials, token)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

// doctorCommand checks config, backend files, and the log directory.
func doctorCommand(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("taskmirror doctor", flag.ContinueOnError)
	online := fs.Bool("online", false, "Also contact the backend and fetch the list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	fmt.Fprintln(w, "Taskmirror Doctor")
	fmt.Fprintln(w, "=================")
	fmt.Fprintln(w)

	allOK := true

	fmt.Fprintln(w, "Config:")
	if cfg.ListID == "" {
		fmt.Fprintln(w, "  ❌ List id: not set (list_id or TASKMIRROR_LIST_ID)")
		allOK = false
	} else {
		fmt.Fprintf(w, "  ✅ List id: %s\n", cfg.ListID)
	}
	fmt.Fprintf(w, "  ✅ Backend: %s\n", cfg.Backend)
	fmt.Fprintf(w, "  ✅ Poll interval: %s\n", cfg.PollInterval())
	fmt.Fprintln(w)

	if cfg.UsesGoogle() {
		if !checkGoogleFiles(cfg, w) {
			allOK = false
		}
	} else if !checkTasksFile(cfg, w) {
		allOK = false
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Log directory: %s\n", cfg.LogDir)
	if _, err := os.Stat(cfg.LogDir); err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(w, "  ⚠️  Not found (will be created on run)")
		} else {
			fmt.Fprintf(w, "  ❌ Error: %v\n", err)
			allOK = false
		}
	} else {
		fmt.Fprintln(w, "  ✅ OK")
	}
	fmt.Fprintln(w)

	if *online && cfg.ListID != "" {
		fmt.Fprintln(w, "Backend:")
		if err := checkOnline(ctx, cfg, w); err != nil {
			fmt.Fprintf(w, "  ❌ %v\n", err)
			allOK = false
		}
		fmt.Fprintln(w)
	}

	if allOK {
		fmt.Fprintln(w, "✅ All checks passed!")
		return nil
	}
	fmt.Fprintln(w, "⚠️  Some checks failed. The display will not show tasks until they are fixed.")
	return fmt.Errorf("doctor checks failed")
}

func checkGoogleFiles(cfg *config.Config, w io.Writer) bool {
	ok := true
	fmt.Fprintf(w, "Credentials file: %s\n", cfg.CredentialsFile)
	if !checkFile(cfg.CredentialsFile, w, "  ❌ Not found (download an OAuth client from the Google Cloud console)") {
		ok = false
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Token file: %s\n", cfg.TokenFile)
	tok, err := gtasks.LoadToken(cfg.TokenFile)
	switch {
	case err != nil:
		fmt.Fprintf(w, "  ❌ %v\n", err)
		ok = false
	case tok.RefreshToken == "" && !tok.Valid():
		fmt.Fprintln(w, "  ❌ Token expired and has no refresh token")
		ok = false
	case tok.RefreshToken == "":
		fmt.Fprintln(w, "  ⚠️  No refresh token; access stops when the token expires")
	default:
		fmt.Fprintln(w, "  ✅ OK")
	}
	return ok
}

func checkTasksFile(cfg *config.Config, w io.Writer) bool {
	fmt.Fprintf(w, "Tasks file: %s\n", cfg.TasksFile)
	if !checkFile(cfg.TasksFile, w, "  ❌ Not found (create one with 'taskmirror init -tasks-file')") {
		return false
	}
	f, err := filetasks.Load(cfg.TasksFile)
	if err != nil {
		fmt.Fprintf(w, "  ❌ %v\n", err)
		return false
	}
	fmt.Fprintln(w, "  ✅ Valid")
	if cfg.ListID == "" {
		return true
	}
	for _, l := range f.Lists {
		if l.ID == cfg.ListID {
			fmt.Fprintf(w, "  ✅ List %s: %d tasks\n", l.ID, len(l.Tasks))
			return true
		}
	}
	fmt.Fprintf(w, "  ❌ List %s not in file\n", cfg.ListID)
	return false
}

func checkFile(path string, w io.Writer, missing string) bool {
	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		fmt.Fprintln(w, missing)
		return false
	case err != nil:
		fmt.Fprintf(w, "  ❌ Error: %v\n", err)
		return false
	case info.IsDir():
		fmt.Fprintln(w, "  ❌ Error: path is a directory")
		return false
	}
	fmt.Fprintln(w, "  ✅ OK")
	return true
}

func checkOnline(ctx context.Context, cfg *config.Config, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	svc, err := authenticator(cfg)(ctx)
	if err != nil {
		return err
	}
	snap, err := svc.List(ctx, cfg.Criteria())
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "  ✅ Fetched %d tasks (%d completed)\n", len(snap.Tasks), snap.CountByStatus(tasks.StatusCompleted))
	return nil
}

// listsCommand prints the task lists the backend knows about, to help pick
// a list id.
func listsCommand(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	marker := func(id string) string {
		if id == cfg.ListID {
			return "*"
		}
		return " "
	}

	if !cfg.UsesGoogle() {
		f, err := filetasks.Load(cfg.TasksFile)
		if err != nil {
			return err
		}
		for _, l := range f.Lists {
			fmt.Fprintf(w, "%s %-28s %s (%d tasks)\n", marker(l.ID), l.ID, l.Title, len(l.Tasks))
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	client, err := gtasks.Authenticate(ctx, cfg.CredentialsFile, cfg.TokenFile)
	if err != nil {
		return err
	}
	lists, err := client.Lists(ctx)
	if err != nil {
		return err
	}
	for _, l := range lists {
		fmt.Fprintf(w, "%s %-28s %s\n", marker(l.ID), l.ID, l.Title)
	}
	return nil
}

// configCommand prints the resolved configuration and where each value
// came from.
func configCommand(cws *config.ConfigWithSources, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("taskmirror config", flag.ContinueOnError)
	example := fs.Bool("example", false, "Print an example config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *example {
		fmt.Fprint(w, config.ExampleConfig())
		return nil
	}

	if f := cws.GetConfigFile(); f != "" {
		fmt.Fprintf(w, "Config file: %s\n\n", f)
	} else {
		fmt.Fprintln(w, "Config file: (none)")
		fmt.Fprintln(w)
	}
	for _, field := range config.Fields() {
		v := cws.Config.Value(field)
		if v == "" {
			v = `""`
		}
		fmt.Fprintf(w, "%-20s %-40s (%s)\n", field, v, cws.Sources[field])
	}
	return nil
}

// initCommand writes a starter config and, on request, a sample task file.
func initCommand(cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("taskmirror init", flag.ContinueOnError)
	force := fs.Bool("force", false, "Overwrite existing files")
	withTasks := fs.Bool("tasks-file", false, "Also write a sample task file for the file backend")
	if err := fs.Parse(args); err != nil {
		return err
	}

	configPath := filepath.Join(cfg.ProjectRoot, configFileName)
	if err := writeNew(configPath, []byte(config.ExampleConfig()), *force); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", configPath)

	if !*withTasks {
		return nil
	}
	if _, err := os.Stat(cfg.TasksFile); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", cfg.TasksFile)
	}
	if err := filetasks.Example(cfg.ListID).Save(cfg.TasksFile); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", cfg.TasksFile)
	return nil
}

func writeNew(path string, data []byte, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// tailCommand tails the latest log file.
func tailCommand(ctx context.Context, cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("taskmirror tail", flag.ContinueOnError)
	follow := fs.Bool("f", false, "Follow the log (like tail -f)")
	fs.BoolVar(follow, "follow", false, "Follow the log (like tail -f)")
	n := fs.Int("n", 0, "Number of lines to show (0 = all)")
	list := fs.Bool("list", false, "List recorded runs instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logDir, err := logging.FindLogDir(cfg.LogDir, cfg.ProjectRoot)
	if err != nil {
		return fmt.Errorf("finding log directory: %w", err)
	}

	if *list {
		runs, err := logging.FindRuns(logDir)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(w, "No runs found.")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s  %8d  %s\n", r.RunID, r.ModTime.Format("2006-01-02 15:04:05"), r.Size, r.Path)
		}
		return nil
	}

	logPath, err := logging.FindLatestLog(logDir)
	if err != nil {
		return fmt.Errorf("finding latest log: %w", err)
	}
	if logPath == "" {
		fmt.Fprintln(w, "No log files found.")
		return nil
	}

	fmt.Fprintf(w, "Tailing: %s\n", logPath)
	if *follow {
		fmt.Fprintln(w, "(Ctrl+C to stop)")
	}
	fmt.Fprintln(w)

	return logging.TailLog(w, logPath, *n, *follow, ctx.Done())
}

// versionCommand prints version information.
func versionCommand(w io.Writer) error {
	fmt.Fprintf(w, "taskmirror version %s\n", Version)
	return nil
}

// printUsage prints the usage message.
func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprintln(w, "Taskmirror - a task list for your smart display")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  taskmirror [options] [command] [command options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run       Show the task list (default command)")
	fmt.Fprintln(w, "  doctor    Check config, credentials, and the task file")
	fmt.Fprintln(w, "  lists     Show the task lists the backend knows about")
	fmt.Fprintln(w, "  config    Show resolved configuration and value sources")
	fmt.Fprintln(w, "  init      Write a starter taskmirror.toml")
	fmt.Fprintln(w, "  tail      Tail the latest log file")
	fmt.Fprintln(w, "  version   Show version information")
	fmt.Fprintln(w, "  help      Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global Options:")
	fs.SetOutput(w)
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run Options:")
	fmt.Fprintln(w, "  -helper-process")
	fmt.Fprintln(w, "        Run the backend helper in a child process")
	fmt.Fprintln(w, "  -name string")
	fmt.Fprintln(w, "        Widget mount name (default \"tasks\")")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Doctor Options:")
	fmt.Fprintln(w, "  -online")
	fmt.Fprintln(w, "        Also contact the backend and fetch the list")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config Options:")
	fmt.Fprintln(w, "  -example")
	fmt.Fprintln(w, "        Print an example config file")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Init Options:")
	fmt.Fprintln(w, "  -force")
	fmt.Fprintln(w, "        Overwrite existing files")
	fmt.Fprintln(w, "  -tasks-file")
	fmt.Fprintln(w, "        Also write a sample task file for the file backend")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Tail Options:")
	fmt.Fprintln(w, "  -f, --follow")
	fmt.Fprintln(w, "        Follow the log (like tail -f)")
	fmt.Fprintln(w, "  -n int")
	fmt.Fprintln(w, "        Number of lines to show (0 = all)")
	fmt.Fprintln(w, "  -list")
	fmt.Fprintln(w, "        List recorded runs instead")
}
