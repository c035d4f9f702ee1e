package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/dshills/prsignal/internal/config"
)

// version is overridden at build time with -ldflags "-X ...cli.version=...".
var version = "0.1.0"

// Exit codes
const (
	ExitSuccess      = 0
	ExitFindings     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

// Global flags
var (
	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "prsignal",
	Short: "Pull request risk and complexity signals",
	Long: "prsignal classifies the files a change touches by risk, estimates the complexity of the added code " +
		"and flags code smells, with deterministic exit codes for CI gating.",
}

// Run executes the root command and returns an exit code.
func Run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	exitCode = ExitSuccess
	setContext(rootCmd, ctx)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// setContext gives every command in the tree ctx. Cobra only passes the
// root context to subcommands that have none, so a second Run would
// otherwise inherit the first run's cancelled context.
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, sub := range cmd.Commands() {
		setContext(sub, ctx)
	}
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// logger is replaced by loadConfig once the log settings are known.
var logger = slog.New(slog.DiscardHandler)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print prsignal version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "prsignal version %s\n", version)
	},
}

// loadConfig resolves the effective config and configures the logger.
func loadConfig(overrides map[string]string) (config.Config, error) {
	if overrides == nil {
		overrides = map[string]string{}
	}
	if flagLogLevel != "" {
		overrides["logLevel"] = flagLogLevel
	}
	if flagLogFormat != "" {
		overrides["logFormat"] = flagLogFormat
	}

	cfg, err := config.Load(flagConfig, overrides)
	if err != nil {
		return config.Config{}, err
	}
	logger = newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, nil
}

func newLogger(level, format string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// fail reports err on stderr and records the exit code.
func fail(cmd *cobra.Command, code int, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	exitCode = code
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: .prsignal.yaml or the user config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)
}
