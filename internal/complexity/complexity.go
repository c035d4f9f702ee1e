package complexity

import (
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/src-d/enry/v2"
)

// Thresholds shared with the analysis warnings.
const (
	MaxCyclomaticComplexity = 10
	MaxNestingDepth         = 4
	MaxLineLength           = 150
)

// Strategy keys.
const (
	StrategyCLike  = "clike"
	StrategyPython = "python"

	DefaultStrategy = StrategyCLike
)

// Estimate is the result for one file's added text.
type Estimate struct {
	Complexity int `json:"complexity"`
	MaxNesting int `json:"maxNesting"`
	LongLines  int `json:"longLines"`
}

// TooComplex reports whether the complexity exceeds MaxCyclomaticComplexity.
func (e Estimate) TooComplex() bool { return e.Complexity > MaxCyclomaticComplexity }

// TooDeep reports whether the nesting exceeds MaxNestingDepth.
func (e Estimate) TooDeep() bool { return e.MaxNesting > MaxNestingDepth }

type strategy struct {
	tokens *regexp.Regexp
	opens  func(line string) bool
	closes func(line string) bool

	// leadingClose reports a line that closes a block before opening one,
	// such as "} else {". Nil when the strategy has no such lines.
	leadingClose func(line string) bool
}

var (
	clikeTokens  = regexp.MustCompile(`\b(?:if|for|while|case|catch)\b|&&|\|\||\?`)
	pythonTokens = regexp.MustCompile(`\b(?:if|elif|else|for|while|try|except|and|or)\b`)
	pythonDedent = regexp.MustCompile(`^\s*(?:return|pass|break|continue)\b`)
)

var strategies = map[string]strategy{
	StrategyCLike: {
		tokens:       clikeTokens,
		opens:        func(line string) bool { return strings.Contains(line, "{") },
		closes:       func(line string) bool { return strings.Contains(line, "}") },
		leadingClose: func(line string) bool { return strings.HasPrefix(strings.TrimSpace(line), "}") },
	},
	StrategyPython: {
		tokens: pythonTokens,
		opens:  func(line string) bool { return strings.HasSuffix(strings.TrimSpace(line), ":") },
		closes: pythonDedent.MatchString,
	},
}

// extensions maps a lower-cased file extension to its strategy key.
// Extensions missing here use DefaultStrategy.
var extensions = map[string]string{
	".go":    StrategyCLike,
	".js":    StrategyCLike,
	".jsx":   StrategyCLike,
	".mjs":   StrategyCLike,
	".cjs":   StrategyCLike,
	".ts":    StrategyCLike,
	".tsx":   StrategyCLike,
	".java":  StrategyCLike,
	".kt":    StrategyCLike,
	".scala": StrategyCLike,
	".c":     StrategyCLike,
	".h":     StrategyCLike,
	".cc":    StrategyCLike,
	".cpp":   StrategyCLike,
	".cxx":   StrategyCLike,
	".hpp":   StrategyCLike,
	".cs":    StrategyCLike,
	".php":   StrategyCLike,
	".swift": StrategyCLike,
	".rs":    StrategyCLike,
	".dart":  StrategyCLike,
	".py":    StrategyPython,
	".pyw":   StrategyPython,
	".pyi":   StrategyPython,
}

func extOf(filename string) string {
	return strings.ToLower(path.Ext(filename))
}

// StrategyFor returns the strategy key used for filename.
func StrategyFor(filename string) string {
	if key, ok := extensions[extOf(filename)]; ok {
		return key
	}
	return DefaultStrategy
}

// IsCodeFile reports whether filename looks like source code: either its
// extension has a strategy, or enry classifies it as a programming language.
func IsCodeFile(filename string) bool {
	if _, ok := extensions[extOf(filename)]; ok {
		return true
	}
	lang := enry.GetLanguage(path.Base(filename), nil)
	if lang == "" {
		return false
	}
	return enry.GetLanguageType(lang) == enry.Programming
}

// Compute estimates the complexity of addedText using the strategy selected
// by filename's extension.
func Compute(filename, addedText string) Estimate {
	s := strategies[StrategyFor(filename)]

	est := Estimate{Complexity: len(s.tokens.FindAllStringIndex(addedText, -1)) + 1}
	if addedText == "" {
		return est
	}

	depth := 0
	for _, line := range strings.Split(addedText, "\n") {
		closedFirst := s.leadingClose != nil && s.leadingClose(line)
		if closedFirst && depth > 0 {
			depth--
		}
		if s.opens(line) {
			depth++
			if depth > est.MaxNesting {
				est.MaxNesting = depth
			}
		}
		if !closedFirst && s.closes(line) && depth > 0 {
			depth--
		}
		if utf8.RuneCountInString(line) > MaxLineLength {
			est.LongLines++
		}
	}
	return est
}
