// Package smell scans added diff text for maintainability and security
// smells: leftover TODO markers, debug statements, focused tests, lint
// suppressions, hardcoded passwords and secrets, and async callbacks passed to
// forEach.
//
// Secret detection reuses regex heuristics for common secret shapes (API
// keys, JWTs, private key blocks, AWS keys, bearer tokens and
// provider-specific tokens). Overlapping matches from different heuristics
// are counted once.
package smell
