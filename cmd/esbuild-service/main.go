// Command esbuild-service drives a shared esbuild service process: it serves
// a TypeScript front end during development, transpiles files, prepares a
// production front end, runs esbuild once, or exposes it as MCP tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	esbuild "github.com/wagiedev/esbuild-service-go"
	"github.com/wagiedev/esbuild-service-go/internal/config"
)

var (
	configPath       string
	esbuildVersion   string
	workDir          string
	executablePath   string
	logLevel         string
	skipVersionCheck bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "esbuild-service",
		Short:         "Drive esbuild through its service protocol",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default: search "+config.FileName+")")
	flags.StringVar(&esbuildVersion, "esbuild-version", "", "esbuild version (default "+esbuild.DefaultVersion+")")
	flags.StringVar(&workDir, "work-dir", "", "Working directory of the esbuild process")
	flags.StringVar(&executablePath, "executable", "", "Explicit path to the esbuild executable")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&skipVersionCheck, "skip-version-check", false, "Do not compare the esbuild version")

	rootCmd.AddCommand(
		newServeCommand(),
		newTransformCommand(),
		newPrepareCommand(),
		newRunCommand(),
		newMCPCommand(),
	)

	return rootCmd
}

// environment is what every subcommand needs after flags were parsed.
type environment struct {
	file    *config.File
	log     *slog.Logger
	options []esbuild.Option
}

// loadEnvironment reads the config file and applies flag overrides.
func loadEnvironment(cmd *cobra.Command) (*environment, error) {
	var (
		file *config.File
		err  error
	)

	if configPath != "" {
		file, err = config.Load(configPath)
	} else {
		file, err = config.LoadWithDefaults()
	}

	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("esbuild-version") {
		file.Version = esbuildVersion
	}

	if flags.Changed("work-dir") {
		file.WorkDir = workDir
	}

	if flags.Changed("executable") {
		file.Executable = executablePath
	}

	if flags.Changed("log-level") {
		file.LogLevel = logLevel
	}

	if flags.Changed("skip-version-check") {
		file.SkipVersionCheck = skipVersionCheck
	}

	if err := file.Validate(); err != nil {
		return nil, err
	}

	log := newLogger(file.LogLevel)

	return &environment{
		file: file,
		log:  log,
		options: []esbuild.Option{
			esbuild.WithOptions(file.Options()),
			esbuild.WithLogger(log),
		},
	}, nil
}

// newLogger writes text logs to stderr; stdout carries command output.
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

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
