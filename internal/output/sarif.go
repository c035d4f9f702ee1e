package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/review"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/main/sarif-2.1/schema/sarif-schema-2.1.0.json"
	toolURI      = "https://github.com/dshills/prsignal"
)

// SARIFWriter outputs risk findings, warnings and code smells as SARIF v2.1.0
// results.
type SARIFWriter struct{}

func (s *SARIFWriter) Write(w io.Writer, report *review.Report) error {
	sarif := buildSARIF(report)
	data, err := json.MarshalIndent(sarif, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling SARIF: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing SARIF: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}

// SARIF schema types (v2.1.0)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	ShortDescription sarifMessage        `json:"shortDescription"`
	DefaultConfig    sarifDefaultConfig  `json:"defaultConfiguration"`
	Properties       sarifRuleProperties `json:"properties,omitempty"`
}

type sarifDefaultConfig struct {
	Level string `json:"level"`
}

type sarifRuleProperties struct {
	Tags []string `json:"tags,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

// sarifBuilder collects results and registers each rule once, in first-seen
// order.
type sarifBuilder struct {
	rules   []sarifRule
	seen    map[string]bool
	results []sarifResult
}

func (b *sarifBuilder) add(rule sarifRule, level, message, path string) {
	if !b.seen[rule.ID] {
		b.seen[rule.ID] = true
		b.rules = append(b.rules, rule)
	}
	b.results = append(b.results, sarifResult{
		RuleID:  rule.ID,
		Level:   level,
		Message: sarifMessage{Text: message},
		Locations: []sarifLocation{{
			PhysicalLocation: sarifPhysicalLocation{
				ArtifactLocation: sarifArtifactLocation{URI: path},
			},
		}},
	})
}

func buildSARIF(report *review.Report) sarifLog {
	b := &sarifBuilder{seen: map[string]bool{}, results: []sarifResult{}}

	if rr := report.Risk; rr != nil {
		for _, f := range rr.Files {
			category := "risk"
			if len(f.Categories) > 0 {
				category = f.Categories[0]
			}
			level := severityToLevel(f.Severity)
			b.add(sarifRule{
				ID:               "prsignal/risk/" + category,
				Name:             category,
				ShortDescription: sarifMessage{Text: "Change touches " + category + " files"},
				DefaultConfig:    sarifDefaultConfig{Level: level},
				Properties:       sarifRuleProperties{Tags: []string{"risk", category}},
			}, level, strings.Join(f.Messages, "; "), f.Filename)
		}
	}

	if ar := report.Complexity; ar != nil {
		for _, wn := range ar.Warnings {
			level := severityToLevel(wn.Severity)
			b.add(sarifRule{
				ID:               "prsignal/" + string(wn.Type),
				Name:             string(wn.Type),
				ShortDescription: sarifMessage{Text: "Added code exceeds the " + string(wn.Type) + " threshold"},
				DefaultConfig:    sarifDefaultConfig{Level: level},
				Properties:       sarifRuleProperties{Tags: []string{"complexity", string(wn.Type)}},
			}, level, wn.Message, wn.Filename)
		}
		for _, s := range ar.CodeSmells {
			b.add(sarifRule{
				ID:               "prsignal/smell/" + s.Type,
				Name:             s.Type,
				ShortDescription: sarifMessage{Text: s.Message},
				DefaultConfig:    sarifDefaultConfig{Level: "note"},
				Properties:       sarifRuleProperties{Tags: []string{"smell"}},
			}, "note", fmt.Sprintf("%s (%d occurrence(s))", s.Message, s.Count), s.Filename)
		}
	}

	return sarifLog{
		Version: sarifVersion,
		Schema:  sarifSchema,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           review.Tool,
						Version:        report.Version,
						InformationURI: toolURI,
						Rules:          b.rules,
					},
				},
				Results: b.results,
			},
		},
	}
}

// severityToLevel maps a severity to a SARIF level.
func severityToLevel(s model.Severity) string {
	switch s {
	case model.SeverityHigh:
		return "error"
	case model.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
