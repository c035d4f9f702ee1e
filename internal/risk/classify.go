package risk

import (
	"fmt"

	"github.com/dshills/prsignal/internal/glob"
	"github.com/dshills/prsignal/internal/model"
)

// Finding is the merged result of every rule that matched one file.
type Finding struct {
	Filename   string           `json:"filename"`
	Status     model.FileStatus `json:"status"`
	Additions  int              `json:"additions"`
	Deletions  int              `json:"deletions"`
	Severity   model.Severity   `json:"severity"`
	Categories []string         `json:"categories"`
	Messages   []string         `json:"messages"`
	Patterns   []string         `json:"patterns"`
}

// Summary holds the per-severity counts of a risk report.
type Summary struct {
	TotalFiles int `json:"totalFiles"`
	High       int `json:"high"`
	Medium     int `json:"medium"`
	Low        int `json:"low"`
}

// Report is the output of Classify.
type Report struct {
	Files           []Finding           `json:"files"`
	HighRiskCount   int                 `json:"highRiskCount"`
	MediumRiskCount int                 `json:"mediumRiskCount"`
	LowRiskCount    int                 `json:"lowRiskCount"`
	ByCategory      map[string][]string `json:"byCategory"`
	CategoryOrder   []string            `json:"categoryOrder"`
	Details         []string            `json:"details"`
	Summary         Summary             `json:"summary"`
}

// Classify evaluates every non-ignored file against rules in order and merges
// the matches into one Finding per file. Files matching no rule are omitted.
func Classify(files []model.ChangedFile, rules []Rule, ignore []string) *Report {
	report := &Report{
		Files:      []Finding{},
		ByCategory: map[string][]string{},
		Details:    []string{},
	}

	for _, f := range files {
		if glob.MatchAny(f.Filename, ignore) {
			continue
		}
		finding, ok := classifyFile(f, rules)
		if !ok {
			continue
		}

		switch finding.Severity {
		case model.SeverityHigh:
			report.HighRiskCount++
		case model.SeverityMedium:
			report.MediumRiskCount++
		case model.SeverityLow:
			report.LowRiskCount++
		}
		for _, cat := range finding.Categories {
			if _, seen := report.ByCategory[cat]; !seen {
				report.CategoryOrder = append(report.CategoryOrder, cat)
			}
			report.ByCategory[cat] = append(report.ByCategory[cat], f.Filename)
		}
		report.Files = append(report.Files, finding)
	}

	report.Summary = Summary{
		TotalFiles: len(report.Files),
		High:       report.HighRiskCount,
		Medium:     report.MediumRiskCount,
		Low:        report.LowRiskCount,
	}
	report.Details = buildDetails(report)
	return report
}

func classifyFile(f model.ChangedFile, rules []Rule) (Finding, bool) {
	finding := Finding{
		Filename:  f.Filename,
		Status:    f.Status,
		Additions: f.Additions,
		Deletions: f.Deletions,
	}
	seen := make(map[string]bool)
	matched := 0

	for _, r := range rules {
		if !glob.Match(f.Filename, r.Pattern) {
			continue
		}
		matched++
		finding.Severity = mergeSeverity(finding.Severity, r.Severity)
		if !seen[r.Category] {
			seen[r.Category] = true
			finding.Categories = append(finding.Categories, r.Category)
		}
		finding.Messages = append(finding.Messages, r.Message)
		finding.Patterns = append(finding.Patterns, r.Pattern)
	}
	return finding, matched > 0
}

// mergeSeverity folds one matched rule into the running maximum. A rule
// without a recognised severity counts as medium.
func mergeSeverity(current, next model.Severity) model.Severity {
	if model.SeverityRank(next) == 0 {
		next = model.SeverityMedium
	}
	return model.MaxSeverity(current, next)
}

var severityIcons = map[model.Severity]string{
	model.SeverityHigh:   "🔴",
	model.SeverityMedium: "🟠",
	model.SeverityLow:    "🟡",
}

var categoryIcons = map[string]string{
	"security":       "🔒",
	"database":       "🗄️",
	"infrastructure": "🏗️",
	"dependencies":   "📦",
	"api":            "🔌",
	"configuration":  "⚙️",
}

// CategoryIcon returns the display icon for a category; unknown categories
// get a generic folder icon.
func CategoryIcon(category string) string {
	if icon, ok := categoryIcons[category]; ok {
		return icon
	}
	return "📁"
}

// SeverityIcon returns the display icon for a severity level.
func SeverityIcon(s model.Severity) string {
	if icon, ok := severityIcons[s]; ok {
		return icon
	}
	return "⚪"
}

func buildDetails(r *Report) []string {
	details := []string{}
	counts := map[model.Severity]int{
		model.SeverityHigh:   r.HighRiskCount,
		model.SeverityMedium: r.MediumRiskCount,
		model.SeverityLow:    r.LowRiskCount,
	}
	for _, sev := range model.Severities {
		n := counts[sev]
		if n == 0 {
			continue
		}
		details = append(details, fmt.Sprintf("%s %d %s-risk %s", SeverityIcon(sev), n, sev, plural(n, "file", "files")))
	}
	for _, cat := range r.CategoryOrder {
		n := len(r.ByCategory[cat])
		details = append(details, fmt.Sprintf("%s %s: %d %s", CategoryIcon(cat), cat, n, plural(n, "file", "files")))
	}
	return details
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
