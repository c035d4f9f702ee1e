// Package config loads and merges prsignal configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags (the overrides map passed to [Load])
//  2. Environment variables (PRSIGNAL_FORMAT, PRSIGNAL_FAIL_ON, GITHUB_TOKEN, etc.)
//  3. Config file (--config, ./.prsignal.yaml, or $XDG_CONFIG_HOME/prsignal/config.yaml)
//  4. Built-in defaults
//
// Use [Load] to obtain a validated [Config], [Save] to write one back as YAML,
// and [SetField] to update a single key.
package config
