package analysis

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/prsignal/internal/model"
	"github.com/dshills/prsignal/internal/unidiff"
)

func changed(name string, additions, deletions int) model.ChangedFile {
	return model.ChangedFile{Filename: name, Status: model.StatusModified, Additions: additions, Deletions: deletions}
}

// gitDiff builds a single-file diff whose added lines are lines.
func gitDiff(name string, lines ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff --git a/%s b/%s\n--- a/%s\n+++ b/%s\n@@ -0,0 +1,%d @@\n", name, name, name, name, len(lines))
	for _, l := range lines {
		b.WriteString("+" + l + "\n")
	}
	return b.String()
}

func TestAnalyze_LargeAddition(t *testing.T) {
	r := Analyze([]model.ChangedFile{changed("src/big.go", 350, 0)}, "", nil)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, WarningSize, r.Warnings[0].Type)
	assert.Equal(t, model.SeverityMedium, r.Warnings[0].Severity)
	assert.Equal(t, []LargeFile{{Filename: "src/big.go", Additions: 350}}, r.LargeFiles)
	assert.Equal(t, Summary{Warnings: 1, Medium: 1, LargeFiles: 1}, r.Summary)
	assert.Equal(t, []string{"📏 1 large file (more than 300 added lines)"}, r.Details)
}

func TestAnalyze_ThresholdIsExclusive(t *testing.T) {
	r := Analyze([]model.ChangedFile{changed("a.go", LargeAdditionThreshold, 0)}, "", nil)
	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.LargeFiles)
}

func TestAnalyze_ComplexityWarning(t *testing.T) {
	d := gitDiff("src/rules.js",
		"if (a && b || c) {",
		"  if (d && e) {",
		"    if (f || g && h) {}",
		"  }",
		"}",
		"if (i) {}",
		"while (j && k) {}",
	)
	r := Analyze([]model.ChangedFile{changed("src/rules.js", 7, 0)}, d, nil)

	require.Len(t, r.Warnings, 1)
	w := r.Warnings[0]
	assert.Equal(t, WarningComplexity, w.Type)
	assert.Equal(t, model.SeverityHigh, w.Severity)
	assert.Equal(t, "src/rules.js", w.Filename)
	assert.Contains(t, w.Message, "12")
	assert.Equal(t, []ComplexFile{{Filename: "src/rules.js", Complexity: 12, MaxNesting: 3}}, r.ComplexFiles)
	assert.Equal(t, 1, r.Summary.High)
}

func TestAnalyze_NestingAndFormatting(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, strings.Repeat("\t", i)+"{")
	}
	lines = append(lines, "x := \""+strings.Repeat("a", 200)+"\"")
	r := Analyze([]model.ChangedFile{changed("deep.go", len(lines), 0)}, gitDiff("deep.go", lines...), nil)

	require.Len(t, r.Warnings, 2)
	assert.Equal(t, WarningNesting, r.Warnings[0].Type)
	assert.Equal(t, model.SeverityMedium, r.Warnings[0].Severity)
	assert.Equal(t, WarningFormatting, r.Warnings[1].Type)
	assert.Equal(t, model.SeverityLow, r.Warnings[1].Severity)
	assert.Len(t, r.ComplexFiles, 1)
}

func TestAnalyze_SmellsAndDetails(t *testing.T) {
	d := gitDiff("web/app.js",
		"// TODO: handle errors",
		"console.log(user)",
		"console.log(order)",
	) + gitDiff("web/util.js", "// FIXME", "debugger;")
	files := []model.ChangedFile{changed("web/app.js", 3, 0), changed("web/util.js", 2, 0)}
	r := Analyze(files, d, nil)

	assert.Empty(t, r.Warnings)
	assert.Equal(t, []CodeSmell{
		{Filename: "web/app.js", Type: "todo", Count: 1, Message: r.CodeSmells[0].Message},
		{Filename: "web/app.js", Type: "console-log", Count: 2, Message: r.CodeSmells[1].Message},
		{Filename: "web/util.js", Type: "todo", Count: 1, Message: r.CodeSmells[2].Message},
		{Filename: "web/util.js", Type: "debugger", Count: 1, Message: r.CodeSmells[3].Message},
	}, r.CodeSmells)
	assert.Equal(t, []string{
		"🔍 todo: 2 occurrences",
		"🔍 console-log: 2 occurrences",
		"🔍 debugger: 1 occurrence",
	}, r.Details)
	assert.Equal(t, 4, r.Summary.CodeSmells)
}

func TestAnalyze_CleanChangeGetsPositiveLine(t *testing.T) {
	d := gitDiff("main.go", "func add(a, b int) int {", "\treturn a + b", "}")
	r := Analyze([]model.ChangedFile{changed("main.go", 3, 1)}, d, nil)

	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.CodeSmells)
	assert.Equal(t, []string{"✅ No complexity issues or code smells detected"}, r.Details)
}

func TestAnalyze_IgnoredFilesAbsent(t *testing.T) {
	d := gitDiff("vendor/lib/x.go", "// TODO", strings.Repeat("if a && b ", 20))
	files := []model.ChangedFile{changed("vendor/lib/x.go", 900, 0), changed("main.go", 1, 0)}
	r := Analyze(files, d, []string{"**/vendor/**"})

	for _, w := range r.Warnings {
		assert.NotEqual(t, "vendor/lib/x.go", w.Filename)
	}
	assert.Empty(t, r.LargeFiles)
	assert.Empty(t, r.CodeSmells)
	assert.Equal(t, 1, r.Stats.FilesAnalyzed)
	assert.Equal(t, "main.go", r.Stats.LargestFile.Filename)
}

func TestAnalyze_SkipsNonCodeFiles(t *testing.T) {
	d := gitDiff("README.md", "TODO: write docs")
	r := Analyze([]model.ChangedFile{changed("README.md", 500, 0)}, d, nil)

	assert.Empty(t, r.Warnings)
	assert.Empty(t, r.CodeSmells)
	assert.Equal(t, 0, r.Stats.FilesAnalyzed)
	assert.Nil(t, r.Stats.LargestFile)
	assert.Zero(t, r.Stats.AverageFileSize)
}

func TestAnalyze_Stats(t *testing.T) {
	files := []model.ChangedFile{
		changed("a.go", 10, 4),
		changed("b.go", 40, 1),
		changed("c.go", 40, 0),
		changed("notes.txt", 1000, 0),
	}
	r := Analyze(files, "", nil)

	assert.Equal(t, 90, r.Stats.TotalAdditions)
	assert.Equal(t, 5, r.Stats.TotalDeletions)
	assert.Equal(t, 3, r.Stats.FilesAnalyzed)
	assert.Equal(t, 30.0, r.Stats.AverageFileSize)
	require.NotNil(t, r.Stats.LargestFile)
	assert.Equal(t, LargeFile{Filename: "b.go", Additions: 40}, *r.Stats.LargestFile)
}

func TestAnalyze_MissingDiffEntryOnlySizeChecked(t *testing.T) {
	d := gitDiff("other.go", "// TODO")
	r := AnalyzeMap([]model.ChangedFile{changed("big.go", 301, 0)}, unidiff.Parse(d), nil)

	require.Len(t, r.Warnings, 1)
	assert.Equal(t, WarningSize, r.Warnings[0].Type)
	assert.Empty(t, r.CodeSmells)
}

func TestAnalyze_Idempotent(t *testing.T) {
	d := gitDiff("x.go", "// TODO", "if a && b {")
	files := []model.ChangedFile{changed("x.go", 400, 2)}
	assert.Equal(t, Analyze(files, d, nil), Analyze(files, d, nil))
}

func TestAnalyze_CountsMatchWarnings(t *testing.T) {
	var branches []string
	for i := 0; i < 12; i++ {
		branches = append(branches, "if x || y {}")
	}
	d := gitDiff("a.go", branches...) + gitDiff("b.py", strings.Repeat("x", 160))
	files := []model.ChangedFile{changed("a.go", 500, 0), changed("b.py", 1, 0)}
	r := Analyze(files, d, nil)

	counts := map[model.Severity]int{}
	for _, w := range r.Warnings {
		counts[w.Severity]++
	}
	assert.Equal(t, counts[model.SeverityHigh], r.Summary.High)
	assert.Equal(t, counts[model.SeverityMedium], r.Summary.Medium)
	assert.Equal(t, counts[model.SeverityLow], r.Summary.Low)
	assert.Equal(t, len(r.Warnings), r.Summary.Warnings)
}
