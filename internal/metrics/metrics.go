package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/prsignal/internal/analysis"
	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/review"
	"github.com/dshills/prsignal/internal/smell"
)

const namespace = "prsignal"

// Recorder holds the gauges for one run on its own registry.
type Recorder struct {
	reg *prometheus.Registry

	info            *prometheus.GaugeVec
	changedFiles    prometheus.Gauge
	filesAnalyzed   prometheus.Gauge
	addedLines      prometheus.Gauge
	deletedLines    prometheus.Gauge
	riskFiles       *prometheus.GaugeVec
	categoryFiles   *prometheus.GaugeVec
	warnings        *prometheus.GaugeVec
	smells          *prometheus.GaugeVec
	highestSeverity prometheus.Gauge
	duration        *prometheus.GaugeVec
}

// New creates a Recorder with every labelled series initialised to zero.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	r := &Recorder{
		reg: reg,
		info: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_info",
			Help:      "Metadata of the last run; always 1",
		}, []string{"version", "mode", "run_id"}),
		changedFiles: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "changed_files",
			Help:      "Number of changed files in the input",
		}),
		filesAnalyzed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "files_analyzed",
			Help:      "Number of source files analysed for complexity",
		}),
		addedLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "added_lines",
			Help:      "Lines added across analysed files",
		}),
		deletedLines: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deleted_lines",
			Help:      "Lines deleted across analysed files",
		}),
		riskFiles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_files",
			Help:      "Risky files by severity",
		}, []string{"severity"}),
		categoryFiles: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_category_files",
			Help:      "Risky files by category",
		}, []string{"category"}),
		warnings: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "warnings",
			Help:      "Complexity warnings by type",
		}, []string{"type"}),
		smells: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "code_smells",
			Help:      "Code smell occurrences by type",
		}, []string{"type"}),
		highestSeverity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "highest_severity",
			Help:      "Rank of the highest severity seen (0 none, 1 low, 2 medium, 3 high)",
		}),
		duration: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per stage",
		}, []string{"stage"}),
	}

	for _, sev := range model.Severities {
		r.riskFiles.WithLabelValues(string(sev)).Set(0)
	}
	for _, typ := range analysis.WarningTypes {
		r.warnings.WithLabelValues(string(typ)).Set(0)
	}
	for _, e := range smell.Catalogue() {
		r.smells.WithLabelValues(e.Type).Set(0)
	}
	return r
}

// Registry returns the registry the gauges are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Observe sets every gauge from report. Observing the same report twice
// leaves the gauges unchanged.
func (r *Recorder) Observe(report *review.Report) {
	r.info.WithLabelValues(report.Version, report.Inputs.Mode, report.RunID).Set(1)
	r.changedFiles.Set(float64(report.Inputs.Files))
	r.highestSeverity.Set(float64(model.SeverityRank(report.Summary.HighestSeverity)))

	if rr := report.Risk; rr != nil {
		r.riskFiles.WithLabelValues(string(model.SeverityHigh)).Set(float64(rr.HighRiskCount))
		r.riskFiles.WithLabelValues(string(model.SeverityMedium)).Set(float64(rr.MediumRiskCount))
		r.riskFiles.WithLabelValues(string(model.SeverityLow)).Set(float64(rr.LowRiskCount))
		for cat, files := range rr.ByCategory {
			r.categoryFiles.WithLabelValues(cat).Set(float64(len(files)))
		}
	}

	if ar := report.Complexity; ar != nil {
		r.filesAnalyzed.Set(float64(ar.Stats.FilesAnalyzed))
		r.addedLines.Set(float64(ar.Stats.TotalAdditions))
		r.deletedLines.Set(float64(ar.Stats.TotalDeletions))
		warnings := map[analysis.WarningType]int{}
		for _, w := range ar.Warnings {
			warnings[w.Type]++
		}
		for typ, n := range warnings {
			r.warnings.WithLabelValues(string(typ)).Set(float64(n))
		}
		smells := map[string]int{}
		for _, s := range ar.CodeSmells {
			smells[s.Type] += s.Count
		}
		for typ, n := range smells {
			r.smells.WithLabelValues(typ).Set(float64(n))
		}
	}

	r.duration.WithLabelValues("gather").Set(millis(report.Timing.GatherMs))
	r.duration.WithLabelValues("risk").Set(millis(report.Timing.RiskMs))
	r.duration.WithLabelValues("analysis").Set(millis(report.Timing.AnalysisMs))
	r.duration.WithLabelValues("total").Set(millis(report.Timing.TotalMs))
}

func millis(ms int64) float64 {
	return float64(ms) / 1000
}

// WriteTextfile records report and writes it atomically to path.
func WriteTextfile(path string, report *review.Report) error {
	r := New()
	r.Observe(report)
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
