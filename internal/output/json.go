package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/prsignal/internal/review"
)

// JSONWriter outputs the report as indented JSON. HTML is not escaped so
// file names and messages stay readable.
type JSONWriter struct {
	// RunInfo keeps runId and timing. Without it identical inputs encode to
	// identical bytes.
	RunInfo bool
}

// stableReport hides the per-run fields of the embedded report; the
// shallower fields win during encoding.
type stableReport struct {
	*review.Report
	RunID  string         `json:"runId,omitempty"`
	Timing *review.Timing `json:"timing,omitempty"`
}

func (j *JSONWriter) Write(w io.Writer, report *review.Report) error {
	var v any = report
	if !j.RunInfo {
		v = stableReport{Report: report}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
