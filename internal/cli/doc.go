// Package cli wires together the Cobra command tree for the prsignal binary.
//
// It defines the root command and all subcommands (analyze, github, rules,
// config, cache, hook, version), binds flags, reads configuration, gathers change
// sets from git or GitHub, runs the analysis engine and returns deterministic
// exit codes for CI gating.
package cli
