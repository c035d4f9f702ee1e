// Prsignal reports the risk and complexity signals of a code change.
//
// It classifies changed files by risk category and severity, estimates the
// cyclomatic complexity and nesting of added code, and flags common code
// smells, with deterministic exit codes suitable for CI gating and git hooks.
//
// Usage:
//
//	prsignal analyze staged                     # analyse staged changes
//	prsignal analyze range origin/main..HEAD    # analyse a revision range
//	prsignal analyze input --files f.json --diff pr.diff
//	prsignal github owner/repo#123 --comment    # analyse a PR and update its comment
//	prsignal rules list                         # show the effective risk rules
//	prsignal cache clear                        # drop cached PR snapshots
//
// See https://github.com/dshills/prsignal for full documentation.
package main
