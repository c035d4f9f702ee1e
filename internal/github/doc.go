// Package github fetches pull-request inputs from the GitHub REST API and
// keeps a single prsignal comment on the PR up to date.
//
// The client wraps google/go-github with an oauth2 token source. The changed
// files (with status and line counts) and the raw diff are what the analysis
// consumes; [Client.UpsertComment] finds the previous report by its hidden
// marker and edits it in place instead of posting a new one.
//
// The repository can be detected from the local git remote, and PR
// references may be given as a number, owner/repo#N, or a PR URL.
package github
