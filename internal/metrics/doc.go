// Package metrics exports a run's report as Prometheus gauges in the
// node_exporter textfile collector format, so scheduled CI runs can be
// scraped and graphed over time.
package metrics
