// Package risk classifies changed files into severity-tagged risk categories.
//
// Each file is evaluated against an ordered rule list (the built-in defaults
// followed by caller-supplied custom rules). Every matching rule contributes
// its category, message and pattern to the file's finding, and the finding's
// severity is the maximum over all matched rules, so a security or compliance
// match can never be downgraded by a lower-severity rule on the same file.
//
// Custom rules can be loaded from a YAML or JSON rules file (load.go), which is
// validated against an embedded JSON schema before use.
package risk
