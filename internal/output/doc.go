// Package output formats analysis reports for display or machine consumption.
//
// Four formats are supported:
//   - text: colourised terminal tables (default)
//   - json: the full structured report
//   - markdown: a PR comment led by a hidden marker so it can be updated in place
//   - sarif: SARIF v2.1.0 for upload to code scanning dashboards
//
// Use [GetWriter] to obtain a [Writer] for a format string, or [WriteReport]
// to pick the destination as well.
package output
