package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/dshills/prsignal/internal/config"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report. The first
// line is Marker, an HTML comment used to find the comment again.
type MarkdownWriter struct {
	Marker string
}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}
	marker := m.Marker
	if marker == "" {
		marker = config.DefaultMarker
	}
	counts := report.Summary.Counts
	total := counts.High + counts.Medium + counts.Low

	ew.println(marker)
	ew.printf("## prsignal report\n\n")

	ew.printf("| Severity | Count |\n")
	ew.printf("|----------|-------|\n")
	ew.printf("| %s High | %d |\n", mdSeverityIcon(model.SeverityHigh), counts.High)
	ew.printf("| %s Medium | %d |\n", mdSeverityIcon(model.SeverityMedium), counts.Medium)
	ew.printf("| %s Low | %d |\n", mdSeverityIcon(model.SeverityLow), counts.Low)
	ew.printf("| **Total** | **%d** |\n\n", total)

	if rr := report.Risk; rr != nil {
		ew.printf("### Risk\n\n")
		if len(rr.Files) == 0 {
			ew.printf("No risky files detected. :white_check_mark:\n\n")
		} else {
			for _, d := range rr.Details {
				ew.printf("- %s\n", d)
			}
			ew.printf("\n<details>\n<summary>Risky files (%d)</summary>\n\n", len(rr.Files))
			ew.printf("| Severity | File | Categories | Reason |\n")
			ew.printf("|----------|------|------------|--------|\n")
			for _, f := range rr.Files {
				ew.printf("| %s | `%s` | %s | %s |\n",
					mdSeverityIcon(f.Severity), f.Filename,
					strings.Join(f.Categories, ", "), mdEscape(strings.Join(f.Messages, "; ")))
			}
			ew.printf("\n</details>\n\n")
		}
	}

	if ar := report.Complexity; ar != nil {
		ew.printf("### Complexity\n\n")
		for _, d := range ar.Details {
			ew.printf("- %s\n", d)
		}
		ew.println("")

		if len(ar.Warnings) > 0 {
			ew.printf("<details>\n<summary>Warnings (%d)</summary>\n\n", len(ar.Warnings))
			ew.printf("| Severity | Type | File | Message |\n")
			ew.printf("|----------|------|------|---------|\n")
			for _, wn := range ar.Warnings {
				ew.printf("| %s | %s | `%s` | %s |\n",
					mdSeverityIcon(wn.Severity), wn.Type, wn.Filename, mdEscape(wn.Message))
			}
			ew.printf("\n</details>\n\n")
		}

		if len(ar.CodeSmells) > 0 {
			ew.printf("<details>\n<summary>Code smells (%d)</summary>\n\n", len(ar.CodeSmells))
			ew.printf("| Smell | File | Count | Message |\n")
			ew.printf("|-------|------|-------|---------|\n")
			for _, s := range ar.CodeSmells {
				ew.printf("| %s | `%s` | %d | %s |\n", s.Type, s.Filename, s.Count, mdEscape(s.Message))
			}
			ew.printf("\n</details>\n\n")
		}
	}

	// The comment is rewritten on every push; keep it a function of the
	// inputs so unchanged results produce an unchanged body.
	ew.printf("*prsignal %s analysed %d files", report.Version, report.Inputs.Files)
	if head := report.Repo.Head; head != "" {
		ew.printf(" at `%s`", head[:min(len(head), 7)])
	}
	ew.printf("*\n")

	return ew.err
}

func mdSeverityIcon(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return ":red_circle:"
	case model.SeverityMedium:
		return ":orange_circle:"
	case model.SeverityLow:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

// mdEscape keeps cell text inside its table column.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// Comment renders the markdown report with marker as its first line.
func Comment(report *review.Report, marker string) (string, error) {
	var sb strings.Builder
	if err := (&MarkdownWriter{Marker: marker}).Write(&sb, report); err != nil {
		return "", fmt.Errorf("rendering comment: %w", err)
	}
	return sb.String(), nil
}
