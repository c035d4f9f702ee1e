// Package gitctx gathers local change sets from a git repository.
//
// It supports four modes (unstaged, staged, commit and range) by shelling out
// to git. Each mode returns the unified diff together with the changed-file
// list, built from `git diff --numstat` for line counts and
// `git diff --name-status` for the change type.
package gitctx
