package review

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/prsignal/internal/analysis"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/risk"
	"github.com/dshills/prsignal/internal/unidiff"
)

// Tool is the name reported in every Report.
const Tool = "prsignal"

// Input is one change set to analyse.
type Input struct {
	Files    []model.ChangedFile
	Diff     string
	Mode     string
	Range    string
	Repo     RepoInfo
	GatherMs int64
}

// Options configures a run.
type Options struct {
	CustomRules    []risk.Rule
	IgnorePatterns []string
	Version        string
}

// Run analyses in. When in.Files is empty the file list is derived from the
// diff. The only error returned is a cancelled context.
func Run(ctx context.Context, in Input, opts Options) (*Report, error) {
	start := time.Now()

	files := in.Files
	if len(files) == 0 {
		files = unidiff.Changes(in.Diff)
	}
	diffs := unidiff.Parse(in.Diff)
	rules := risk.Rules(opts.CustomRules)

	var (
		riskReport     *risk.Report
		analysisReport *analysis.Report
		riskMs         int64
		analysisMs     int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		t := time.Now()
		riskReport = risk.Classify(files, rules, opts.IgnorePatterns)
		riskMs = time.Since(t).Milliseconds()
		return nil
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		t := time.Now()
		analysisReport = analysis.AnalyzeMap(files, diffs, opts.IgnorePatterns)
		analysisMs = time.Since(t).Milliseconds()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}

	return &Report{
		Tool:    Tool,
		Version: version,
		RunID:   uuid.NewString(),
		Repo:    in.Repo,
		Inputs: InputInfo{
			Mode:      in.Mode,
			Range:     in.Range,
			Files:     len(files),
			DiffBytes: len(in.Diff),
		},
		Summary:    ComputeSummary(riskReport, analysisReport),
		Risk:       riskReport,
		Complexity: analysisReport,
		Timing: Timing{
			GatherMs:   in.GatherMs,
			RiskMs:     riskMs,
			AnalysisMs: analysisMs,
			TotalMs:    time.Since(start).Milliseconds() + in.GatherMs,
		},
	}, nil
}
