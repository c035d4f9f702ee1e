package smell

import (
	"regexp"
	"sort"
)

// Smell is one catalogue entry that matched at least once.
type Smell struct {
	Type    string `json:"type"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Entry describes a catalogue rule.
type Entry struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type rule struct {
	Entry
	patterns []*regexp.Regexp
}

// secretPatterns are regex heuristics for common secret types.
var secretPatterns = []*regexp.Regexp{
	// Generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?([A-Za-z0-9/+=_-]{20,})["']?`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// AWS secret access keys
	regexp.MustCompile(`(?i)(aws[_-]?secret[_-]?access[_-]?key)\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
	// Secrets and tokens in assignments
	regexp.MustCompile(`(?i)(secret|token|credential)\s*[:=]\s*["']([^"']{8,})["']`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// JWTs
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// GitHub tokens
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Anthropic and OpenAI API keys
	regexp.MustCompile(`sk-ant-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[A-Za-z0-9]{20,}`),
}

var catalogue = []rule{
	{
		Entry{"todo", "TODO/FIXME markers left in code"},
		[]*regexp.Regexp{regexp.MustCompile(`\b(?:TODO|FIXME|HACK|XXX)\b`)},
	},
	{
		Entry{"console-log", "console statements should be removed before merging"},
		[]*regexp.Regexp{regexp.MustCompile(`\bconsole\.(?:log|debug|info|warn|error|trace)\s*\(`)},
	},
	{
		Entry{"debugger", "debugger statements or breakpoints left in code"},
		[]*regexp.Regexp{regexp.MustCompile(`\bdebugger\b|\bpdb\.set_trace\(|\bbreakpoint\(\)|\bbinding\.pry\b`)},
	},
	{
		Entry{"print", "print statements look like leftover debugging output"},
		[]*regexp.Regexp{regexp.MustCompile(`(?m)^\s*print\s*\(|\bfmt\.Print(?:ln|f)?\(|\bSystem\.out\.print(?:ln)?\(|\bvar_dump\(`)},
	},
	{
		Entry{"focused-test", "focused tests (.only) skip the rest of the suite"},
		[]*regexp.Regexp{regexp.MustCompile(`\b(?:describe|it|test|context)\.only\s*\(|\bf(?:describe|it)\s*\(`)},
	},
	{
		Entry{"lint-disable", "lint rules disabled inline"},
		[]*regexp.Regexp{regexp.MustCompile(`eslint-disable|//\s*nolint|#\s*noqa|@ts-ignore|@ts-nocheck|pylint:\s*disable|rubocop:disable`)},
	},
	{
		Entry{"hardcoded-password", "possible hardcoded password"},
		[]*regexp.Regexp{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[:=]\s*["'][^"']{3,}["']`)},
	},
	{
		Entry{"hardcoded-secret", "possible hardcoded API key, token or private key"},
		secretPatterns,
	},
	{
		Entry{"async-foreach", "async callback in forEach is not awaited"},
		[]*regexp.Regexp{regexp.MustCompile(`\.forEach\(\s*async\b`)},
	},
}

// Catalogue returns the rule entries in detection order.
func Catalogue() []Entry {
	out := make([]Entry, len(catalogue))
	for i, r := range catalogue {
		out[i] = r.Entry
	}
	return out
}

// Message returns the catalogue message for a smell type.
func Message(typ string) string {
	for _, r := range catalogue {
		if r.Type == typ {
			return r.Message
		}
	}
	return ""
}

// Detect runs every catalogue rule over text and returns one Smell per rule
// that matched, in catalogue order.
func Detect(text string) []Smell {
	if text == "" {
		return nil
	}
	var out []Smell
	for _, r := range catalogue {
		if n := countMatches(text, r.patterns); n > 0 {
			out = append(out, Smell{Type: r.Type, Count: n, Message: r.Message})
		}
	}
	return out
}

// countMatches counts match spans across patterns, merging spans that
// overlap so one secret found by two heuristics counts once.
func countMatches(text string, patterns []*regexp.Regexp) int {
	if len(patterns) == 1 {
		return len(patterns[0].FindAllStringIndex(text, -1))
	}
	var spans [][]int
	for _, p := range patterns {
		spans = append(spans, p.FindAllStringIndex(text, -1)...)
	}
	if len(spans) == 0 {
		return 0
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })

	count, end := 1, spans[0][1]
	for _, s := range spans[1:] {
		if s[0] < end {
			if s[1] > end {
				end = s[1]
			}
			continue
		}
		count++
		end = s[1]
	}
	return count
}
