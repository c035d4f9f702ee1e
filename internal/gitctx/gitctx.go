package gitctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dshills/prsignal/internal/model"
)

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	// Dir is the working directory for git; empty means the current one.
	Dir          string
	ContextLines int
	MaxDiffBytes int
	// Paths limits the diff to these pathspecs.
	Paths  []string
	Logger *slog.Logger
}

func (o DiffOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// DiffResult holds the collected diff and metadata.
type DiffResult struct {
	Diff  string
	Files []model.ChangedFile
	Mode  string
	Range string
	Repo  RepoMeta
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta(ctx context.Context, opts DiffOptions) (RepoMeta, error) {
	root, err := gitOutput(ctx, opts, "rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput(ctx, opts, "rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput(ctx, opts, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the diff of working tree vs index.
func Unstaged(ctx context.Context, opts DiffOptions) (DiffResult, error) {
	return collect(ctx, opts, "unstaged", "", []string{"diff"})
}

// Staged returns the diff of index vs HEAD.
func Staged(ctx context.Context, opts DiffOptions) (DiffResult, error) {
	return collect(ctx, opts, "staged", "", []string{"diff", "--cached"})
}

// Commit returns the diff for a specific commit vs its parent. Without an
// explicit parent, sha~1 is used, falling back to git show for a root commit.
func Commit(ctx context.Context, sha, parent string, opts DiffOptions) (DiffResult, error) {
	if parent != "" {
		return collect(ctx, opts, "commit", sha, []string{"diff", parent, sha})
	}
	res, err := collect(ctx, opts, "commit", sha, []string{"diff", sha + "~1", sha})
	if err == nil {
		return res, nil
	}
	opts.logger().Debug("falling back to git show", "sha", sha, "err", err)
	res, err = collect(ctx, opts, "commit", sha, []string{"show", "--format=", sha})
	if err != nil {
		return DiffResult{}, fmt.Errorf("git show %s: %w", sha, err)
	}
	return res, nil
}

// Range returns the combined diff for a revision range. With mergeBase, a
// two-dot range is compared from the merge base.
func Range(ctx context.Context, revRange string, mergeBase bool, opts DiffOptions) (DiffResult, error) {
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	return collect(ctx, opts, "range", revRange, []string{"diff", diffRange})
}

func collect(ctx context.Context, opts DiffOptions, mode, rangeStr string, base []string) (DiffResult, error) {
	flags := []string{"--no-renames"}
	if opts.ContextLines > 0 {
		flags = append(flags, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	diff, err := gitOutput(ctx, opts, buildArgs(base, flags, opts.Paths)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git %s: %w", strings.Join(base, " "), err)
	}

	numstat, err := gitOutput(ctx, opts, buildArgs(base, []string{"--numstat", "--no-renames"}, opts.Paths)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git %s --numstat: %w", strings.Join(base, " "), err)
	}
	nameStatus, err := gitOutput(ctx, opts, buildArgs(base, []string{"--name-status", "--no-renames"}, opts.Paths)...)
	if err != nil {
		return DiffResult{}, fmt.Errorf("git %s --name-status: %w", strings.Join(base, " "), err)
	}

	meta, err := GetRepoMeta(ctx, opts)
	if err != nil {
		opts.logger().Debug("repository metadata unavailable", "err", err)
		meta = RepoMeta{}
	}

	if opts.MaxDiffBytes > 0 && len(diff) > opts.MaxDiffBytes {
		opts.logger().Warn("diff truncated", "bytes", len(diff), "limit", opts.MaxDiffBytes)
		diff = diff[:opts.MaxDiffBytes] + "\n... (diff truncated at max-diff-bytes limit)\n"
	}

	return DiffResult{
		Diff:  diff,
		Files: mergeStats(parseNameStatus(nameStatus), parseNumstat(numstat)),
		Mode:  mode,
		Range: rangeStr,
		Repo:  meta,
	}, nil
}

func buildArgs(base, flags, paths []string) []string {
	args := append([]string{}, base...)
	args = append(args, flags...)
	args = append(args, "--")
	return append(args, paths...)
}

type lineCounts struct {
	added, deleted int
}

// parseNumstat reads "added<TAB>deleted<TAB>path" lines. Binary files
// report "-" for both counts and are recorded as zero.
func parseNumstat(out string) map[string]lineCounts {
	counts := map[string]lineCounts{}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}
		a, _ := strconv.Atoi(parts[0])
		d, _ := strconv.Atoi(parts[1])
		counts[parts[2]] = lineCounts{added: a, deleted: d}
	}
	return counts
}

type nameStatus struct {
	status model.FileStatus
	path   string
}

// parseNameStatus reads "<code><TAB>path" lines in git's order.
func parseNameStatus(out string) []nameStatus {
	var entries []nameStatus
	for _, line := range strings.Split(out, "\n") {
		code, path, ok := strings.Cut(line, "\t")
		if !ok || code == "" {
			continue
		}
		entries = append(entries, nameStatus{status: statusFromCode(code), path: path})
	}
	return entries
}

func statusFromCode(code string) model.FileStatus {
	switch code[0] {
	case 'A', 'C':
		return model.StatusAdded
	case 'D':
		return model.StatusRemoved
	case 'R':
		return model.StatusRenamed
	default:
		return model.StatusModified
	}
}

func mergeStats(entries []nameStatus, counts map[string]lineCounts) []model.ChangedFile {
	files := make([]model.ChangedFile, 0, len(entries))
	for _, e := range entries {
		c := counts[e.path]
		files = append(files, model.ChangedFile{
			Filename:  e.path,
			Status:    e.status,
			Additions: c.added,
			Deletions: c.deleted,
		})
	}
	return files
}

func gitOutput(ctx context.Context, opts DiffOptions, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = opts.Dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	opts.logger().Debug("running git", "args", args)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return string(out), nil
}
