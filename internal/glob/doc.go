// Package glob matches repository-relative paths against shell-style glob
// patterns extended with "**".
//
// "*" matches any run of characters (including none) inside one path
// segment, "**" matches zero or more whole segments. Matching is
// case-sensitive. A malformed pattern never matches and never panics, so a
// single bad user-supplied rule cannot stop an analysis run.
package glob
