package review

import (
	"github.com/dshills/prsignal/internal/analysis"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/risk"
)

// RepoInfo contains repository metadata.
type RepoInfo struct {
	Root   string `json:"root,omitempty"`
	Head   string `json:"head,omitempty"`
	Branch string `json:"branch,omitempty"`
	Owner  string `json:"owner,omitempty"`
	Name   string `json:"name,omitempty"`
	PR     int    `json:"pr,omitempty"`
}

// InputInfo describes what was analysed.
type InputInfo struct {
	Mode      string `json:"mode"`
	Range     string `json:"range,omitempty"`
	Files     int    `json:"files"`
	DiffBytes int    `json:"diffBytes"`
}

// SeverityCounts holds counts by severity level.
type SeverityCounts struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Summary combines risk findings and analysis warnings.
type Summary struct {
	Counts          SeverityCounts `json:"counts"`
	HighestSeverity model.Severity `json:"highestSeverity,omitempty"`
}

// Timing contains durations in milliseconds.
type Timing struct {
	GatherMs   int64 `json:"gatherMs"`
	RiskMs     int64 `json:"riskMs"`
	AnalysisMs int64 `json:"analysisMs"`
	TotalMs    int64 `json:"totalMs"`
}

// Report is the top-level output structure.
type Report struct {
	Tool       string           `json:"tool"`
	Version    string           `json:"version"`
	RunID      string           `json:"runId"`
	Repo       RepoInfo         `json:"repo"`
	Inputs     InputInfo        `json:"inputs"`
	Summary    Summary          `json:"summary"`
	Risk       *risk.Report     `json:"risk"`
	Complexity *analysis.Report `json:"complexity"`
	Timing     Timing           `json:"timing"`
}

// Exceeds reports whether any risk finding or warning is at or above the
// threshold. "none" or an empty threshold never exceeds.
func (r *Report) Exceeds(threshold string) bool {
	return model.MeetsThreshold(r.Summary.HighestSeverity, threshold)
}

// ComputeSummary counts risk findings and analysis warnings by severity.
func ComputeSummary(rr *risk.Report, ar *analysis.Report) Summary {
	var s Summary
	add := func(sev model.Severity) {
		switch sev {
		case model.SeverityLow:
			s.Counts.Low++
		case model.SeverityMedium:
			s.Counts.Medium++
		case model.SeverityHigh:
			s.Counts.High++
		}
		s.HighestSeverity = model.MaxSeverity(s.HighestSeverity, sev)
	}
	if rr != nil {
		for _, f := range rr.Files {
			add(f.Severity)
		}
	}
	if ar != nil {
		for _, w := range ar.Warnings {
			add(w.Severity)
		}
	}
	return s
}
