package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prsignal/internal/config"
	"github.com/dshills/prsignal/internal/review"
)

// resetFlags resets all package-level flag variables to their defaults.
func resetFlags() {
	flagConfig = ""
	flagLogLevel = ""
	flagLogFormat = ""
	flagFormat = ""
	flagOut = ""
	flagFailOn = ""
	flagRules = ""
	flagIgnore = ""
	flagMetrics = ""
	flagRunInfo = false
	flagPaths = ""
	flagContextLines = 0
	flagMaxDiffBytes = 0
	flagParent = ""
	flagMergeBase = true
	flagFilesPath = ""
	flagDiffPath = ""
	flagGHOwner = ""
	flagGHRepo = ""
	flagGHComment = false
	flagGHNoCache = false
	flagCacheJSON = false
	hookType = "pre-commit"
	hookFailOn = "high"
	hookFormat = "text"
}

// isolate points config lookup at empty temp directories.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PRSIGNAL_GITHUB_TOKEN", "")
	t.Setenv("GITHUB_API_URL", "")
	t.Setenv("PRSIGNAL_GITHUB_API_URL", "")
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	resetFlags()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
		logger = slog.New(slog.DiscardHandler)
	})

	code := Run()
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const envDiff = `diff --git a/.env b/.env
new file mode 100644
--- /dev/null
+++ b/.env
@@ -0,0 +1,1 @@
+API_KEY=changeme
diff --git a/main.go b/main.go
--- a/main.go
+++ b/main.go
@@ -1,1 +1,3 @@
 package main
+// TODO: wire flags
+func main() {}
`

const envFiles = `[
  {"filename": ".env", "status": "added", "additions": 1, "deletions": 0},
  {"filename": "main.go", "status": "modified", "additions": 2, "deletions": 0}
]`

func decodeReport(t *testing.T, data string) review.Report {
	t.Helper()
	var r review.Report
	require.NoError(t, json.Unmarshal([]byte(data), &r))
	return r
}

// --- helpers ---

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitComma(tt.input))
		})
	}
}

func TestBuildOverrides(t *testing.T) {
	resetFlags()
	assert.Empty(t, buildOverrides())

	flagFormat = "json"
	flagFailOn = "high"
	flagRules = "rules.yaml"
	flagMetrics = "out.prom"
	t.Cleanup(resetFlags)

	assert.Equal(t, map[string]string{
		"format":      "json",
		"failOn":      "high",
		"rulesFile":   "rules.yaml",
		"metricsFile": "out.prom",
	}, buildOverrides())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("info", "json", &buf)
	l.Debug("hidden")
	l.Info("shown", "k", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)

	buf.Reset()
	l = newLogger("bogus", "text", &buf)
	l.Info("dropped")
	l.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestGHExitCode(t *testing.T) {
	assert.Equal(t, ExitRuntimeError, ghExitCode(io.EOF))
}

// --- commands ---

func TestVersion(t *testing.T) {
	isolate(t)
	code, stdout, _ := execute(t, "", "version")
	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, "prsignal version "+version+"\n", stdout)
}

func TestAnalyzeInput_JSON(t *testing.T) {
	dir := isolate(t)
	files := writeFile(t, dir, "files.json", envFiles)
	diff := writeFile(t, dir, "pr.diff", envDiff)

	code, stdout, stderr := execute(t, "", "analyze", "input", "--files", files, "--diff", diff, "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	r := decodeReport(t, stdout)
	assert.Equal(t, "prsignal", r.Tool)
	assert.Equal(t, "input", r.Inputs.Mode)
	assert.Equal(t, 2, r.Inputs.Files)
	require.NotNil(t, r.Risk)
	assert.Equal(t, 1, r.Risk.HighRiskCount)
	require.NotNil(t, r.Complexity)
	require.Len(t, r.Complexity.CodeSmells, 1)
	assert.Equal(t, "todo", r.Complexity.CodeSmells[0].Type)
}

func TestAnalyzeInput_FailOn(t *testing.T) {
	dir := isolate(t)
	diff := writeFile(t, dir, "pr.diff", envDiff)

	code, _, _ := execute(t, "", "analyze", "input", "--diff", diff, "--fail-on", "high", "--format", "json")
	assert.Equal(t, ExitFindings, code)

	code, _, _ = execute(t, "", "analyze", "input", "--diff", diff, "--fail-on", "high", "--format", "json", "--ignore", ".env")
	assert.Equal(t, ExitSuccess, code)
}

func TestAnalyzeInput_Stdin(t *testing.T) {
	isolate(t)
	code, stdout, stderr := execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	r := decodeReport(t, stdout)
	assert.Equal(t, 2, r.Inputs.Files)
	assert.Equal(t, len(envDiff), r.Inputs.DiffBytes)
}

func TestRun_Repeated(t *testing.T) {
	isolate(t)
	for i := 0; i < 3; i++ {
		code, stdout, stderr := execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "json")
		require.Equal(t, ExitSuccess, code, "run %d: %s", i, stderr)
		assert.Equal(t, 2, decodeReport(t, stdout).Inputs.Files)
	}
}

func TestAnalyzeInput_StableJSON(t *testing.T) {
	isolate(t)
	_, first, _ := execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "json")
	_, second, _ := execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "json")
	assert.Equal(t, first, second)
	assert.NotContains(t, first, `"runId"`)

	code, withInfo, stderr := execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "json", "--run-info")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.NotEmpty(t, decodeReport(t, withInfo).RunID)
}

func TestSetContext_ReachesSubcommands(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setContext(rootCmd, ctx)
	assert.Equal(t, ctx, analyzeInputCmd.Context())
	assert.Equal(t, ctx, cacheShowCmd.Context())
}

func TestAnalyzeInput_OutFile(t *testing.T) {
	dir := isolate(t)
	diff := writeFile(t, dir, "pr.diff", envDiff)
	out := filepath.Join(dir, "report.sarif")

	code, stdout, _ := execute(t, "", "analyze", "input", "--diff", diff, "--format", "sarif", "--out", out)
	require.Equal(t, ExitSuccess, code)
	assert.Empty(t, stdout)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": "2.1.0"`)
}

func TestAnalyzeInput_Usage(t *testing.T) {
	isolate(t)
	code, _, _ := execute(t, "", "analyze", "input")
	assert.Equal(t, ExitUsageError, code)

	code, _, _ = execute(t, envDiff, "analyze", "input", "--diff", "-", "--format", "xml")
	assert.Equal(t, ExitUsageError, code)
}

func TestAnalyzeInput_MissingFile(t *testing.T) {
	dir := isolate(t)
	code, _, stderr := execute(t, "", "analyze", "input", "--files", filepath.Join(dir, "nope.json"))
	assert.Equal(t, ExitRuntimeError, code)
	assert.Contains(t, stderr, "reading files list")
}

func TestAnalyzeInput_RulesFile(t *testing.T) {
	dir := isolate(t)
	rules := writeFile(t, dir, "rules.yaml", `
rules:
  - pattern: "**/*.go"
    category: golang
    severity: low
    message: Go code changed
ignore:
  - ".env"
`)
	diff := writeFile(t, dir, "pr.diff", envDiff)

	code, stdout, stderr := execute(t, "", "analyze", "input", "--diff", diff, "--rules", rules, "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	r := decodeReport(t, stdout)
	require.Len(t, r.Risk.Files, 1)
	assert.Equal(t, "main.go", r.Risk.Files[0].Filename)
	assert.Equal(t, []string{"golang"}, r.Risk.Files[0].Categories)
}

func TestAnalyzeInput_BadRulesFile(t *testing.T) {
	dir := isolate(t)
	rules := writeFile(t, dir, "rules.yaml", "rules:\n  - pattern: x\n")
	diff := writeFile(t, dir, "pr.diff", envDiff)

	code, _, stderr := execute(t, "", "analyze", "input", "--diff", diff, "--rules", rules)
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "loading rules")
}

func TestAnalyzeInput_MetricsFile(t *testing.T) {
	dir := isolate(t)
	diff := writeFile(t, dir, "pr.diff", envDiff)
	prom := filepath.Join(dir, "prsignal.prom")

	code, _, _ := execute(t, "", "analyze", "input", "--diff", diff, "--format", "json", "--metrics-file", prom)
	require.Equal(t, ExitSuccess, code)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `prsignal_risk_files{severity="high"} 1`)
}

func TestAnalyzeInput_ConfigFile(t *testing.T) {
	dir := isolate(t)
	writeFile(t, dir, ".prsignal.yaml", "format: json\nfailOn: medium\n")
	diff := writeFile(t, dir, "pr.diff", envDiff)

	code, stdout, _ := execute(t, "", "analyze", "input", "--diff", diff)
	assert.Equal(t, ExitFindings, code)
	assert.True(t, json.Valid([]byte(stdout)))
}

func TestReadFiles_EmptyFilename(t *testing.T) {
	path := writeFile(t, t.TempDir(), "files.json", `[{"filename": ""}]`)
	_, err := readFiles(path)
	assert.ErrorContains(t, err, "entry 0 has no filename")
}

func TestAnalyzeStaged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := isolate(t)
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "test@example.com"},
		{"config", "user.name", "Test"},
	} {
		require.NoError(t, exec.Command("git", args...).Run())
	}
	writeFile(t, dir, "schema.sql", "CREATE TABLE t (id int);\n")
	require.NoError(t, exec.Command("git", "add", "schema.sql").Run())

	code, stdout, stderr := execute(t, "", "analyze", "staged", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	r := decodeReport(t, stdout)
	assert.Equal(t, "staged", r.Inputs.Mode)
	require.Len(t, r.Risk.Files, 1)
	assert.Equal(t, "schema.sql", r.Risk.Files[0].Filename)
	assert.Equal(t, []string{"database"}, r.Risk.Files[0].Categories)
}

func TestRulesList(t *testing.T) {
	isolate(t)
	code, stdout, _ := execute(t, "", "rules", "list")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "**/.env*")
	assert.Contains(t, stdout, "security")
	assert.Contains(t, stdout, "Lockfile updated")
}

func TestRulesCheck(t *testing.T) {
	dir := isolate(t)
	good := writeFile(t, dir, "good.yaml", "rules:\n  - pattern: \"**/*.tf\"\n    category: infra\n")
	bad := writeFile(t, dir, "bad.yaml", "rules:\n  - pattern: \"[\"\n    category: broken\n")

	code, stdout, _ := execute(t, "", "rules", "check", good)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 rules, 0 ignore patterns OK")

	code, _, stderr := execute(t, "", "rules", "check", bad)
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "malformed pattern")
}

func TestConfigInitSetShow(t *testing.T) {
	isolate(t)

	code, stdout, _ := execute(t, "", "config", "init")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Config file created at")

	path, err := config.ConfigPath()
	require.NoError(t, err)
	assert.FileExists(t, path)

	code, _, stderr := execute(t, "", "config", "init")
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stderr, "already exists")

	code, stdout, _ = execute(t, "", "config", "set", "failOn", "high")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "Set failOn = high\n", stdout)

	code, _, _ = execute(t, "", "config", "set", "failOn", "critical")
	assert.Equal(t, ExitUsageError, code)

	t.Setenv("GITHUB_TOKEN", "secret-token")
	code, stdout, _ = execute(t, "", "config", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "failOn: high")
	assert.NotContains(t, stdout, "secret-token")
}

// --- github ---

type fakeGitHub struct {
	status    int
	posted    string
	authHdr   string
	fileCalls atomic.Int32
}

func (f *fakeGitHub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/repos/acme/api/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		f.authHdr = r.Header.Get("Authorization")
		if f.status != 0 {
			w.WriteHeader(f.status)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "diff") {
			fmt.Fprint(w, envDiff)
			return
		}
		fmt.Fprint(w, `{"number":7,"title":"Config","head":{"sha":"abc123","ref":"feature"},"base":{"ref":"main"}}`)
	})
	mux.HandleFunc("/api/v3/repos/acme/api/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		f.fileCalls.Add(1)
		if f.status != 0 {
			w.WriteHeader(f.status)
			fmt.Fprint(w, `{"message":"Bad credentials"}`)
			return
		}
		fmt.Fprint(w, envFiles)
	})
	mux.HandleFunc("/api/v3/repos/acme/api/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `[]`)
			return
		}
		var body struct {
			Body string `json:"body"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		f.posted = body.Body
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":1,"html_url":"https://github.example/acme/api/pull/7#issuecomment-1"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHub_Comment(t *testing.T) {
	isolate(t)
	fake := &fakeGitHub{}
	srv := fake.server(t)
	t.Setenv("PRSIGNAL_GITHUB_TOKEN", "tok")
	t.Setenv("PRSIGNAL_GITHUB_API_URL", srv.URL)

	code, stdout, stderr := execute(t, "", "github", "acme/api#7", "--comment", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	r := decodeReport(t, stdout)
	assert.Equal(t, "github", r.Inputs.Mode)
	assert.Equal(t, "main...feature", r.Inputs.Range)
	assert.Equal(t, review.RepoInfo{Head: "abc123", Branch: "feature", Owner: "acme", Name: "api", PR: 7}, r.Repo)
	assert.Equal(t, 1, r.Risk.HighRiskCount)

	assert.Equal(t, "Bearer tok", fake.authHdr)
	assert.True(t, strings.HasPrefix(fake.posted, config.DefaultMarker+"\n"))
	assert.Contains(t, stderr, "Created comment on PR #7")
}

func TestGitHub_Unauthorized(t *testing.T) {
	isolate(t)
	fake := &fakeGitHub{status: http.StatusUnauthorized}
	srv := fake.server(t)
	t.Setenv("PRSIGNAL_GITHUB_TOKEN", "bad")
	t.Setenv("PRSIGNAL_GITHUB_API_URL", srv.URL)

	code, _, stderr := execute(t, "", "github", "acme/api#7")
	assert.Equal(t, ExitAuthError, code)
	assert.Contains(t, stderr, "authentication failed")
}

func TestGitHub_NoToken(t *testing.T) {
	isolate(t)
	code, _, _ := execute(t, "", "github", "acme/api#7")
	assert.Equal(t, ExitAuthError, code)
}

func TestGitHub_BadRef(t *testing.T) {
	isolate(t)
	code, _, stderr := execute(t, "", "github", "not-a-pr")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "invalid pull request reference")
}

func TestGitHub_SnapshotCached(t *testing.T) {
	isolate(t)
	fake := &fakeGitHub{}
	srv := fake.server(t)
	t.Setenv("PRSIGNAL_GITHUB_TOKEN", "tok")
	t.Setenv("PRSIGNAL_GITHUB_API_URL", srv.URL)

	code, first, stderr := execute(t, "", "github", "acme/api#7", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)
	code, second, stderr := execute(t, "", "github", "acme/api#7", "--format", "json")
	require.Equal(t, ExitSuccess, code, stderr)

	assert.EqualValues(t, 1, fake.fileCalls.Load())
	assert.Equal(t, decodeReport(t, first).Risk, decodeReport(t, second).Risk)

	code, _, stderr = execute(t, "", "github", "acme/api#7", "--no-cache")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.EqualValues(t, 2, fake.fileCalls.Load())
}

// --- cache ---

func TestCacheShowClear(t *testing.T) {
	isolate(t)
	fake := &fakeGitHub{}
	srv := fake.server(t)
	t.Setenv("PRSIGNAL_GITHUB_TOKEN", "tok")
	t.Setenv("PRSIGNAL_GITHUB_API_URL", srv.URL)

	code, _, stderr := execute(t, "", "github", "acme/api#7")
	require.Equal(t, ExitSuccess, code, stderr)

	code, stdout, _ := execute(t, "", "cache", "show", "--json")
	require.Equal(t, ExitSuccess, code)
	var stats struct {
		Entries int `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &stats))
	assert.Equal(t, 1, stats.Entries)

	code, stdout, _ = execute(t, "", "cache", "clear")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Cache cleared (1 entries).")

	code, stdout, _ = execute(t, "", "cache", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Entries:   0 (0 expired)")
}

func TestCacheShow_Disabled(t *testing.T) {
	isolate(t)
	t.Setenv("PRSIGNAL_CACHE_ENABLED", "false")
	code, stdout, _ := execute(t, "", "cache", "show")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Cache is disabled.")
}
