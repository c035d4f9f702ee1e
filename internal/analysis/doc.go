// Package analysis combines size heuristics with the complexity and smell
// scans of each changed code file into a single report of warnings and
// statistics.
package analysis
