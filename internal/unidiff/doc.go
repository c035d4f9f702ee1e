// Package unidiff extracts the added lines of each file from unified diff
// text. It is tolerant of malformed input: sections it cannot attribute to a
// file are skipped and the rest of the diff is still returned.
package unidiff
