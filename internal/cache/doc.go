// Package cache stores pull request snapshots on disk so repeated runs
// against the same head commit skip the GitHub API.
//
// Entries are JSON files named by the SHA-256 of their key under the user
// cache directory ($XDG_CACHE_HOME/prsignal by default) and expire after a
// configurable TTL.
package cache
