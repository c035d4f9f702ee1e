package analysis

import (
	"fmt"

	"github.com/dshills/prsignal/internal/complexity"
	"github.com/dshills/prsignal/internal/glob"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/smell"
	"github.com/dshills/prsignal/internal/unidiff"
)

// LargeAdditionThreshold is the number of added lines above which a file
// gets a size warning.
const LargeAdditionThreshold = 300

// WarningType classifies a warning.
type WarningType string

const (
	WarningSize       WarningType = "size"
	WarningComplexity WarningType = "complexity"
	WarningNesting    WarningType = "nesting"
	WarningFormatting WarningType = "formatting"
)

// WarningTypes lists every warning type in emission order.
var WarningTypes = []WarningType{WarningSize, WarningComplexity, WarningNesting, WarningFormatting}

// Warning is a single complexity or size finding for one file.
type Warning struct {
	Type     WarningType    `json:"type"`
	Severity model.Severity `json:"severity"`
	Filename string         `json:"filename"`
	Message  string         `json:"message"`
}

// LargeFile is a file whose additions exceed LargeAdditionThreshold.
type LargeFile struct {
	Filename  string `json:"filename"`
	Additions int    `json:"additions"`
}

// ComplexFile is a file whose added text exceeded a complexity or nesting
// threshold.
type ComplexFile struct {
	Filename   string `json:"filename"`
	Complexity int    `json:"complexity"`
	MaxNesting int    `json:"maxNesting"`
}

// CodeSmell is a smell detected in one file.
type CodeSmell struct {
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Message  string `json:"message"`
}

// Stats aggregates the analysed files.
type Stats struct {
	TotalAdditions  int        `json:"totalAdditions"`
	TotalDeletions  int        `json:"totalDeletions"`
	LargestFile     *LargeFile `json:"largestFile,omitempty"`
	AverageFileSize float64    `json:"averageFileSize"`
	FilesAnalyzed   int        `json:"filesAnalyzed"`
}

// Summary holds the report counts.
type Summary struct {
	Warnings     int `json:"warnings"`
	High         int `json:"high"`
	Medium       int `json:"medium"`
	Low          int `json:"low"`
	LargeFiles   int `json:"largeFiles"`
	ComplexFiles int `json:"complexFiles"`
	CodeSmells   int `json:"codeSmells"`
}

// Report is the output of Analyze.
type Report struct {
	Warnings     []Warning     `json:"warnings"`
	LargeFiles   []LargeFile   `json:"largeFiles"`
	ComplexFiles []ComplexFile `json:"complexFiles"`
	CodeSmells   []CodeSmell   `json:"codeSmells"`
	Stats        Stats         `json:"stats"`
	Details      []string      `json:"details"`
	Summary      Summary       `json:"summary"`
}

// Analyze parses diffText and analyses files against it.
func Analyze(files []model.ChangedFile, diffText string, ignore []string) *Report {
	return AnalyzeMap(files, unidiff.Parse(diffText), ignore)
}

// AnalyzeMap analyses files using an already parsed diff. Ignored files and
// files that are not source code are skipped. Files without an entry in
// diffs only get the size check.
func AnalyzeMap(files []model.ChangedFile, diffs unidiff.FileMap, ignore []string) *Report {
	report := &Report{
		Warnings:     []Warning{},
		LargeFiles:   []LargeFile{},
		ComplexFiles: []ComplexFile{},
		CodeSmells:   []CodeSmell{},
		Details:      []string{},
	}

	for _, f := range files {
		if glob.MatchAny(f.Filename, ignore) || !complexity.IsCodeFile(f.Filename) {
			continue
		}

		report.Stats.FilesAnalyzed++
		report.Stats.TotalAdditions += f.Additions
		report.Stats.TotalDeletions += f.Deletions
		if report.Stats.LargestFile == nil || f.Additions > report.Stats.LargestFile.Additions {
			report.Stats.LargestFile = &LargeFile{Filename: f.Filename, Additions: f.Additions}
		}

		if f.Additions > LargeAdditionThreshold {
			report.addWarning(WarningSize, model.SeverityMedium, f.Filename,
				fmt.Sprintf("%d lines added, above the %d-line threshold; consider splitting the change", f.Additions, LargeAdditionThreshold))
			report.LargeFiles = append(report.LargeFiles, LargeFile{Filename: f.Filename, Additions: f.Additions})
		}

		text, ok := diffs[f.Filename]
		if !ok {
			continue
		}
		report.scan(f.Filename, text)
	}

	if report.Stats.FilesAnalyzed > 0 {
		report.Stats.AverageFileSize = float64(report.Stats.TotalAdditions) / float64(report.Stats.FilesAnalyzed)
	}
	report.Summary.LargeFiles = len(report.LargeFiles)
	report.Summary.ComplexFiles = len(report.ComplexFiles)
	report.Summary.CodeSmells = len(report.CodeSmells)
	report.Details = buildDetails(report)
	return report
}

func (r *Report) scan(filename, text string) {
	est := complexity.Compute(filename, text)
	if est.TooComplex() {
		r.addWarning(WarningComplexity, model.SeverityHigh, filename,
			fmt.Sprintf("Estimated cyclomatic complexity %d exceeds %d", est.Complexity, complexity.MaxCyclomaticComplexity))
	}
	if est.TooDeep() {
		r.addWarning(WarningNesting, model.SeverityMedium, filename,
			fmt.Sprintf("Nesting depth %d exceeds %d", est.MaxNesting, complexity.MaxNestingDepth))
	}
	if est.LongLines > 0 {
		r.addWarning(WarningFormatting, model.SeverityLow, filename,
			fmt.Sprintf("%d %s longer than %d characters", est.LongLines, plural(est.LongLines, "line"), complexity.MaxLineLength))
	}
	if est.TooComplex() || est.TooDeep() {
		r.ComplexFiles = append(r.ComplexFiles, ComplexFile{Filename: filename, Complexity: est.Complexity, MaxNesting: est.MaxNesting})
	}

	for _, s := range smell.Detect(text) {
		r.CodeSmells = append(r.CodeSmells, CodeSmell{Filename: filename, Type: s.Type, Count: s.Count, Message: s.Message})
	}
}

func (r *Report) addWarning(typ WarningType, sev model.Severity, filename, msg string) {
	r.Warnings = append(r.Warnings, Warning{Type: typ, Severity: sev, Filename: filename, Message: msg})
	r.Summary.Warnings++
	switch sev {
	case model.SeverityHigh:
		r.Summary.High++
	case model.SeverityMedium:
		r.Summary.Medium++
	case model.SeverityLow:
		r.Summary.Low++
	}
}

func buildDetails(r *Report) []string {
	details := []string{}
	if n := len(r.LargeFiles); n > 0 {
		details = append(details, fmt.Sprintf("📏 %d large %s (more than %d added lines)", n, plural(n, "file"), LargeAdditionThreshold))
	}
	if n := len(r.ComplexFiles); n > 0 {
		details = append(details, fmt.Sprintf("🧩 %d complex %s", n, plural(n, "file")))
	}

	totals := map[string]int{}
	for _, s := range r.CodeSmells {
		totals[s.Type] += s.Count
	}
	for _, e := range smell.Catalogue() {
		if n := totals[e.Type]; n > 0 {
			details = append(details, fmt.Sprintf("🔍 %s: %d %s", e.Type, n, plural(n, "occurrence")))
		}
	}

	if len(r.Warnings) == 0 && len(r.CodeSmells) == 0 {
		details = append(details, "✅ No complexity issues or code smells detected")
	}
	return details
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
