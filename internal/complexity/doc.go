// Package complexity estimates cyclomatic complexity, nesting depth and
// overlong lines from the added text of a diff.
//
// The estimate is lexical: a language-selected token pattern is counted over
// the raw text, and nesting follows braces (or a trailing colon and dedent
// keywords for indentation-based languages). No parsing is attempted, so the
// numbers are approximations meant for flagging changes worth a closer look.
package complexity
