// Package review runs a complete analysis of one change set.
//
// Run parses the diff once and runs the risk classifier and the complexity
// analysis concurrently over the same read-only inputs, then wraps both
// results in a Report with a run ID, input metadata, a combined severity
// summary and timings. Report.Exceeds drives the CLI's fail-on exit code.
package review
