// Package lang holds the language-specific front ends used by the scanner:
// language detection, a light lexer that separates code from comments and
// string literals, import extraction, and module-ID resolution.
//
// The lexer is deliberately shallow. It never fails: input it cannot
// tokenize (an unterminated string, for instance) produces a Source marked
// Degraded whose lines fall back to raw text, so line-based matching still
// runs.
package lang

import (
	"path/filepath"
	"strings"
)

// Language identifies a source language.
type Language string

const (
	Unknown    Language = ""
	Python     Language = "python"
	JavaScript Language = "javascript"
	TypeScript Language = "typescript"
	Go         Language = "go"
)

var extensions = map[string]Language{
	".py":  Python,
	".pyi": Python,
	".js":  JavaScript,
	".jsx": JavaScript,
	".mjs": JavaScript,
	".cjs": JavaScript,
	".ts":  TypeScript,
	".tsx": TypeScript,
	".mts": TypeScript,
	".cts": TypeScript,
	".go":  Go,
}

// Detect returns the language for a file path by extension.
func Detect(path string) Language {
	return extensions[strings.ToLower(filepath.Ext(path))]
}

// IsScript reports whether l is JavaScript or TypeScript, which share
// module syntax.
func (l Language) IsScript() bool {
	return l == JavaScript || l == TypeScript
}

// String returns the language name, or "unknown".
func (l Language) String() string {
	if l == Unknown {
		return "unknown"
	}
	return string(l)
}
