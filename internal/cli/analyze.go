package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/prsignal/internal/config"
	"github.com/dshills/prsignal/internal/gitctx"
	"github.com/dshills/prsignal/internal/metrics"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/output"
	"github.com/dshills/prsignal/internal/review"
	"github.com/dshills/prsignal/internal/risk"
)

// Shared analysis flags
var (
	flagFormat       string
	flagOut          string
	flagFailOn       string
	flagRules        string
	flagIgnore       string
	flagMetrics      string
	flagRunInfo      bool
	flagPaths        string
	flagContextLines int
	flagMaxDiffBytes int
)

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	cmd.Flags().StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	cmd.Flags().StringVar(&flagFailOn, "fail-on", "", "Fail on severity threshold (none, low, medium, high)")
	cmd.Flags().StringVar(&flagRules, "rules", "", "Custom rules file (YAML or JSON)")
	cmd.Flags().StringVar(&flagIgnore, "ignore", "", "Extra ignore globs (comma-separated)")
	cmd.Flags().StringVar(&flagMetrics, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&flagRunInfo, "run-info", false, "Include the run id and timings in text and JSON output")
}

func addGitFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&flagPaths, "paths", "", "Limit the diff to these pathspecs (comma-separated)")
	cmd.Flags().IntVar(&flagContextLines, "context-lines", 0, "Number of context lines in diff")
	cmd.Flags().IntVar(&flagMaxDiffBytes, "max-diff-bytes", 0, "Maximum diff size in bytes (0 = unlimited)")
}

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagRules != "" {
		m["rulesFile"] = flagRules
	}
	if flagMetrics != "" {
		m["metricsFile"] = flagMetrics
	}
	return m
}

func buildDiffOpts() gitctx.DiffOptions {
	return gitctx.DiffOptions{
		ContextLines: flagContextLines,
		MaxDiffBytes: flagMaxDiffBytes,
		Paths:        splitComma(flagPaths),
		Logger:       logger,
	}
}

func splitComma(s string) []string {
	return config.SplitList(s)
}

// analysisOptions merges config, the rules file and flags into engine
// options. Malformed custom patterns are logged and kept; they never match.
func analysisOptions(cfg config.Config) (review.Options, error) {
	opts := review.Options{
		CustomRules:    append([]risk.Rule(nil), cfg.CustomPatterns...),
		IgnorePatterns: append(append([]string(nil), cfg.IgnorePatterns...), splitComma(flagIgnore)...),
		Version:        version,
	}

	rf, err := risk.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return review.Options{}, fmt.Errorf("loading rules: %w", err)
	}
	if rf != nil {
		opts.CustomRules = append(opts.CustomRules, rf.Rules...)
		opts.IgnorePatterns = append(opts.IgnorePatterns, rf.Ignore...)
		logger.Debug("loaded rules file", "path", cfg.RulesFile, "rules", len(rf.Rules), "ignore", len(rf.Ignore))
	}

	for _, e := range risk.Invalid(opts.CustomRules) {
		logger.Warn("custom rule will never match", "error", e)
	}
	return opts, nil
}

// runAnalysis runs the engine over in, writes the report and sets the exit
// code. It returns nil when the run failed.
func runAnalysis(cmd *cobra.Command, in review.Input, cfg config.Config) *review.Report {
	opts, err := analysisOptions(cfg)
	if err != nil {
		fail(cmd, ExitUsageError, err)
		return nil
	}

	report, err := review.Run(cmd.Context(), in, opts)
	if err != nil {
		fail(cmd, ExitRuntimeError, err)
		return nil
	}
	logger.Info("analysis complete",
		"run_id", report.RunID,
		"files", report.Inputs.Files,
		"high", report.Summary.Counts.High,
		"medium", report.Summary.Counts.Medium,
		"low", report.Summary.Counts.Low,
		"total_ms", report.Timing.TotalMs,
	)

	if err := writeReport(cmd, report, cfg.Format); err != nil {
		fail(cmd, ExitRuntimeError, fmt.Errorf("writing output: %w", err))
		return nil
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile, report); err != nil {
			logger.Warn("metrics not written", "path", cfg.MetricsFile, "error", err)
		} else {
			logger.Debug("metrics written", "path", cfg.MetricsFile)
		}
	}

	if report.Exceeds(cfg.FailOn) {
		exitCode = ExitFindings
	}
	return report
}

// writeReport writes to --out when given, otherwise to the command's stdout.
func writeReport(cmd *cobra.Command, report *review.Report, format string) error {
	w, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	switch w := w.(type) {
	case *output.TextWriter:
		w.RunInfo = flagRunInfo
	case *output.JSONWriter:
		w.RunInfo = flagRunInfo
	}
	if flagOut != "" && flagOut != "-" {
		return output.WriteTo(w, report, flagOut)
	}
	return w.Write(cmd.OutOrStdout(), report)
}

// runGit gathers a local change set with gather and analyses it.
func runGit(cmd *cobra.Command, gather func(context.Context, gitctx.DiffOptions) (gitctx.DiffResult, error)) error {
	cfg, err := loadConfig(buildOverrides())
	if err != nil {
		return err
	}

	start := time.Now()
	diff, err := gather(cmd.Context(), buildDiffOpts())
	if err != nil {
		fail(cmd, ExitRuntimeError, err)
		return nil
	}

	in := review.Input{
		Files: diff.Files,
		Diff:  diff.Diff,
		Mode:  diff.Mode,
		Range: diff.Range,
		Repo: review.RepoInfo{
			Root:   diff.Repo.Root,
			Head:   diff.Repo.Head,
			Branch: diff.Repo.Branch,
		},
		GatherMs: time.Since(start).Milliseconds(),
	}
	runAnalysis(cmd, in, cfg)
	return nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyse a change set",
	Long:  "Analyse a change set for risky files, complexity and code smells. Use subcommands to choose the source.",
}

var analyzeUnstagedCmd = &cobra.Command{
	Use:   "unstaged",
	Short: "Analyse unstaged changes (working tree vs index)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, gitctx.Unstaged)
	},
}

var analyzeStagedCmd = &cobra.Command{
	Use:   "staged",
	Short: "Analyse staged changes (index vs HEAD)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, gitctx.Staged)
	},
}

var (
	flagParent string
)

var analyzeCommitCmd = &cobra.Command{
	Use:   "commit <sha>",
	Short: "Analyse a specific commit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, func(ctx context.Context, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
			return gitctx.Commit(ctx, args[0], flagParent, opts)
		})
	},
}

var (
	flagMergeBase bool
)

var analyzeRangeCmd = &cobra.Command{
	Use:   "range <revRange>",
	Short: "Analyse a revision range (e.g., origin/main..HEAD)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGit(cmd, func(ctx context.Context, opts gitctx.DiffOptions) (gitctx.DiffResult, error) {
			return gitctx.Range(ctx, args[0], flagMergeBase, opts)
		})
	},
}

var (
	flagFilesPath string
	flagDiffPath  string
)

var analyzeInputCmd = &cobra.Command{
	Use:   "input",
	Short: "Analyse a supplied file list and diff",
	Long: "Analyse a changed-file list (JSON array of {filename, status, additions, deletions}, " +
		"the GitHub pull request files shape) and a unified diff. Use --diff - to read the diff from stdin. " +
		"Without --files the list is derived from the diff.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFilesPath == "" && flagDiffPath == "" {
			return errors.New("at least one of --files or --diff is required")
		}
		cfg, err := loadConfig(buildOverrides())
		if err != nil {
			return err
		}

		start := time.Now()
		in := review.Input{Mode: "input"}
		if flagFilesPath != "" {
			files, err := readFiles(flagFilesPath)
			if err != nil {
				fail(cmd, ExitRuntimeError, err)
				return nil
			}
			in.Files = files
		}
		if flagDiffPath != "" {
			diff, err := readDiff(cmd.InOrStdin(), flagDiffPath)
			if err != nil {
				fail(cmd, ExitRuntimeError, err)
				return nil
			}
			in.Diff = diff
		}
		in.GatherMs = time.Since(start).Milliseconds()

		runAnalysis(cmd, in, cfg)
		return nil
	},
}

func readFiles(path string) ([]model.ChangedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading files list: %w", err)
	}
	var files []model.ChangedFile
	if err := json.Unmarshal(data, &files); err != nil {
		return nil, fmt.Errorf("parsing files list: %w", err)
	}
	for i, f := range files {
		if strings.TrimSpace(f.Filename) == "" {
			return nil, fmt.Errorf("parsing files list: entry %d has no filename", i)
		}
	}
	return files, nil
}

func readDiff(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("reading diff: %w", err)
	}
	return string(data), nil
}

func init() {
	analyzeCmd.AddCommand(analyzeUnstagedCmd)
	analyzeCmd.AddCommand(analyzeStagedCmd)
	analyzeCmd.AddCommand(analyzeCommitCmd)
	analyzeCmd.AddCommand(analyzeRangeCmd)
	analyzeCmd.AddCommand(analyzeInputCmd)

	for _, cmd := range []*cobra.Command{
		analyzeUnstagedCmd,
		analyzeStagedCmd,
		analyzeCommitCmd,
		analyzeRangeCmd,
		analyzeInputCmd,
	} {
		addAnalysisFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{
		analyzeUnstagedCmd,
		analyzeStagedCmd,
		analyzeCommitCmd,
		analyzeRangeCmd,
	} {
		addGitFlags(cmd)
	}

	// Commit-specific flags
	analyzeCommitCmd.Flags().StringVar(&flagParent, "parent", "", "Override parent SHA (for merge commits)")

	// Range-specific flags
	analyzeRangeCmd.Flags().BoolVar(&flagMergeBase, "merge-base", true, "Use merge base for branch comparisons")

	// Input-specific flags
	analyzeInputCmd.Flags().StringVar(&flagFilesPath, "files", "", "JSON file with the changed-file list")
	analyzeInputCmd.Flags().StringVar(&flagDiffPath, "diff", "", "Unified diff file, or - for stdin")
}
