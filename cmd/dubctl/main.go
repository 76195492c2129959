// Command dubctl drives the incremental dubbing pipeline: it turns a
// Chinese-language video into an English-dubbed, subtitled one, rerunning
// only the phases whose inputs actually changed.
//
// Usage:
//
//	dubctl run <video> [--from PHASE] [--to PHASE] [--rerun PHASE,...]
//	dubctl bless <video> <phase>
//	dubctl mcp-serve
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrWong99/dubctl/internal/app"
	"github.com/MrWong99/dubctl/internal/config"
	"github.com/MrWong99/dubctl/internal/mcpsrv"
	"github.com/MrWong99/dubctl/internal/observe"
	"github.com/MrWong99/dubctl/internal/pipeline"
	"github.com/MrWong99/dubctl/internal/workspace"
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	configPath := flag.String("config", "dubctl.yaml", "path to the YAML configuration file")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "dubctl: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "dubctl: %v\n", err)
		}
		return 1
	}

	slog.SetDefault(newLogger(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg)

	switch cmd, rest := args[0], args[1:]; cmd {
	case "run":
		return cmdRun(ctx, application, rest)
	case "bless":
		return cmdBless(ctx, application, rest)
	case "mcp-serve":
		return cmdMCPServe(ctx, application, cfg)
	default:
		fmt.Fprintf(os.Stderr, "dubctl: unknown command %q\n\n", cmd)
		usage()
		return 2
	}
}

func cmdRun(ctx context.Context, application *app.App, args []string) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	from := fs.String("from", "", "first phase to consider")
	to := fs.String("to", "", "last phase to execute")
	rerun := fs.String("rerun", "", "comma-separated phases to rerun regardless of fingerprints")
	// The video may precede the flags, as in the usage line; flag parsing
	// alone stops at the first non-flag argument.
	var positional []string
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional, args = []string{args[0]}, args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	positional = append(positional, fs.Args()...)
	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "dubctl: run requires exactly one video argument")
		return 2
	}

	var forced []string
	if *rerun != "" {
		forced = strings.Split(*rerun, ",")
	}
	for _, name := range append([]string{*from, *to}, forced...) {
		if name != "" && !knownPhase(name) {
			fmt.Fprintf(os.Stderr, "dubctl: unknown phase %q (valid: %s)\n", name, strings.Join(pipeline.Names(), ", "))
			return 2
		}
	}

	err := application.Run(ctx, positional[0], app.RunOptions{From: *from, To: *to, Forced: forced})
	if err != nil {
		if errors.Is(err, workspace.ErrLocked) {
			fmt.Fprintln(os.Stderr, "dubctl: workspace is locked by another process")
		} else {
			fmt.Fprintf(os.Stderr, "dubctl: %v\n", err)
		}
		return 1
	}
	return 0
}

func cmdBless(ctx context.Context, application *app.App, args []string) int {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "dubctl: bless requires <video> <phase>")
		return 2
	}
	video, phaseName := args[0], args[1]
	if !knownPhase(phaseName) {
		fmt.Fprintf(os.Stderr, "dubctl: unknown phase %q (valid: %s)\n", phaseName, strings.Join(pipeline.Names(), ", "))
		return 2
	}

	if err := application.Bless(ctx, video, phaseName); err != nil {
		fmt.Fprintf(os.Stderr, "dubctl: %v\n", err)
		return 1
	}
	fmt.Printf("blessed %s\n", phaseName)
	return 0
}

func cmdMCPServe(ctx context.Context, application *app.App, cfg *config.Config) int {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "dubctl"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dubctl: init telemetry: %v\n", err)
		return 1
	}
	defer shutdown(context.Background())

	srv := mcpsrv.New(application)
	if err := srv.Serve(ctx, cfg.MCP.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "dubctl: %v\n", err)
		return 1
	}
	return 0
}

func knownPhase(name string) bool {
	for _, k := range pipeline.Names() {
		if name == k {
			return true
		}
	}
	return false
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func usage() {
	fmt.Fprintf(os.Stderr, `dubctl — incremental video dubbing pipeline

Usage:
  dubctl [--config FILE] run <video> [--from PHASE] [--to PHASE] [--rerun PHASE,...]
  dubctl [--config FILE] bless <video> <phase>
  dubctl [--config FILE] mcp-serve

Phases (in order): %s
`, strings.Join(pipeline.Names(), ", "))
}
