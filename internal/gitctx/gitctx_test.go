package gitctx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prsignal/internal/model"
)

func TestParseNumstat(t *testing.T) {
	out := "3\t1\tmain.go\n-\t-\tlogo.png\n10\t0\tdocs/a b.md\nmalformed\n"
	got := parseNumstat(out)

	assert.Equal(t, map[string]lineCounts{
		"main.go":     {added: 3, deleted: 1},
		"logo.png":    {},
		"docs/a b.md": {added: 10},
	}, got)
}

func TestParseNameStatus(t *testing.T) {
	out := "M\tmain.go\nA\tnew.go\nD\told.go\nR100\tx.go\nT\tlink\n\n"
	got := parseNameStatus(out)

	assert.Equal(t, []nameStatus{
		{model.StatusModified, "main.go"},
		{model.StatusAdded, "new.go"},
		{model.StatusRemoved, "old.go"},
		{model.StatusRenamed, "x.go"},
		{model.StatusModified, "link"},
	}, got)
}

func TestMergeStats(t *testing.T) {
	entries := []nameStatus{{model.StatusModified, "b.go"}, {model.StatusAdded, "a.go"}}
	counts := map[string]lineCounts{"a.go": {added: 5}, "b.go": {added: 1, deleted: 2}}

	assert.Equal(t, []model.ChangedFile{
		{Filename: "b.go", Status: model.StatusModified, Additions: 1, Deletions: 2},
		{Filename: "a.go", Status: model.StatusAdded, Additions: 5},
	}, mergeStats(entries, counts))
}

func TestBuildArgs(t *testing.T) {
	args := buildArgs([]string{"diff", "--cached"}, []string{"-U5"}, []string{"src/"})
	assert.Equal(t, []string{"diff", "--cached", "-U5", "--", "src/"}, args)
}

// setupTestRepo creates a temp git repo with one commit.
func setupTestRepo(t *testing.T) (string, func(args ...string)) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@test.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@test.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v\n%s", args, out)
	}

	run("init", "-q")
	run("checkout", "-q", "-b", "main")
	write(t, dir, "main.go", "package main\n\nfunc main() {}\n")
	write(t, dir, "util.go", "package main\n\nfunc helper() {}\n")
	run("add", "-A")
	run("commit", "-q", "-m", "init")
	return dir, run
}

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStagedAndUnstaged(t *testing.T) {
	dir, run := setupTestRepo(t)
	ctx := context.Background()
	opts := DiffOptions{Dir: dir}

	write(t, dir, "main.go", "package main\n\nfunc main() {\n\t// TODO\n}\n")
	write(t, dir, ".env", "SECRET=1\n")
	run("add", ".env")

	staged, err := Staged(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, "staged", staged.Mode)
	assert.Equal(t, []model.ChangedFile{{Filename: ".env", Status: model.StatusAdded, Additions: 1}}, staged.Files)
	assert.Contains(t, staged.Diff, "+SECRET=1")
	assert.Equal(t, "main", staged.Repo.Branch)

	unstaged, err := Unstaged(ctx, opts)
	require.NoError(t, err)
	require.Len(t, unstaged.Files, 1)
	assert.Equal(t, "main.go", unstaged.Files[0].Filename)
	assert.Equal(t, model.StatusModified, unstaged.Files[0].Status)
	assert.Equal(t, 3, unstaged.Files[0].Additions)
	assert.Equal(t, 1, unstaged.Files[0].Deletions)
}

func TestCommitAndRange(t *testing.T) {
	dir, run := setupTestRepo(t)
	ctx := context.Background()
	opts := DiffOptions{Dir: dir}

	run("rm", "-q", "util.go")
	write(t, dir, "migrations/001.sql", "CREATE TABLE t();\n")
	run("add", "-A")
	run("commit", "-q", "-m", "second")

	res, err := Commit(ctx, "HEAD", "", opts)
	require.NoError(t, err)
	assert.Equal(t, "commit", res.Mode)
	assert.ElementsMatch(t, []model.ChangedFile{
		{Filename: "migrations/001.sql", Status: model.StatusAdded, Additions: 1},
		{Filename: "util.go", Status: model.StatusRemoved, Deletions: 3},
	}, res.Files)

	rng, err := Range(ctx, "HEAD~1..HEAD", true, opts)
	require.NoError(t, err)
	assert.Equal(t, "HEAD~1..HEAD", rng.Range)
	assert.Len(t, rng.Files, 2)
}

func TestCommit_RootCommitFallsBackToShow(t *testing.T) {
	dir, _ := setupTestRepo(t)

	res, err := Commit(context.Background(), "HEAD", "", DiffOptions{Dir: dir})
	require.NoError(t, err)
	assert.Len(t, res.Files, 2)
	assert.True(t, strings.Contains(res.Diff, "+func helper() {}"))
}

func TestTruncation(t *testing.T) {
	dir, _ := setupTestRepo(t)
	write(t, dir, "main.go", strings.Repeat("x", 500)+"\n")

	res, err := Unstaged(context.Background(), DiffOptions{Dir: dir, MaxDiffBytes: 50})
	require.NoError(t, err)
	assert.Contains(t, res.Diff, "truncated")
	require.Len(t, res.Files, 1)
}

func TestNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	_, err := GetRepoMeta(context.Background(), DiffOptions{Dir: t.TempDir()})
	assert.Error(t, err)
}
