package lang

import (
	"sort"
	"strings"
	"unicode"
)

// Line is one source line in three views. Code has comments blanked,
// Masked additionally blanks string contents (quotes are kept). Blanked
// runes become spaces so columns are preserved across views.
type Line struct {
	No     int
	Raw    string
	Code   string
	Masked string

	// InString is set when the line begins inside a multi-line string.
	InString bool
}

// Literal is a string literal found by the lexer.
type Literal struct {
	Value  string
	Line   int
	Column int

	// Prefix holds Python string prefix letters (f, rb, ...).
	Prefix string

	// Interpolated is set for f-strings and template literals that embed
	// expressions.
	Interpolated bool
}

// Source is lexed source text.
type Source struct {
	Path     string
	Lang     Language
	Lines    []Line
	Literals []Literal

	// Degraded is set when lexing hit an unterminated construct. Code and
	// Masked then equal Raw on every line.
	Degraded bool
}

// LiteralsOn returns the literals that start on line no.
func (s *Source) LiteralsOn(no int) []Literal {
	i := sort.Search(len(s.Literals), func(i int) bool { return s.Literals[i].Line >= no })
	j := i
	for j < len(s.Literals) && s.Literals[j].Line == no {
		j++
	}
	return s.Literals[i:j]
}

type syntax struct {
	lineComment  string
	blockComment bool
	quotes       string
	triple       bool // ''' and """
	rawQuote     rune // quote with no escapes (Go raw strings)
	multiQuote   rune // single-char quote allowed to span lines
	prefixes     bool // Python string prefixes
	interpolate  func(prefix string, quote rune, value string) bool
}

var syntaxes = map[Language]*syntax{
	Python: {
		lineComment: "#",
		quotes:      `'"`,
		triple:      true,
		prefixes:    true,
		interpolate: func(prefix string, _ rune, value string) bool {
			return strings.ContainsAny(prefix, "fF") && strings.Contains(value, "{")
		},
	},
	JavaScript: jsSyntax,
	TypeScript: jsSyntax,
	Go: {
		lineComment:  "//",
		blockComment: true,
		quotes:       "\"'`",
		rawQuote:     '`',
		multiQuote:   '`',
	},
}

var jsSyntax = &syntax{
	lineComment:  "//",
	blockComment: true,
	quotes:       "\"'`",
	multiQuote:   '`',
	interpolate: func(_ string, quote rune, value string) bool {
		return quote == '`' && strings.Contains(value, "${")
	},
}

// Lex splits text into lines and literals for lang. Unknown languages get
// raw lines only.
func Lex(path string, lang Language, text string) *Source {
	src := &Source{Path: path, Lang: lang}
	runes := []rune(text)

	syn := syntaxes[lang]
	if syn == nil {
		src.Lines = splitLines(runes, runes, runes, nil)
		return src
	}

	lx := newLexer(runes, syn)
	lx.run()
	src.Literals = lx.literals
	src.Degraded = lx.degraded
	if lx.degraded {
		src.Lines = splitLines(runes, runes, runes, nil)
	} else {
		src.Lines = splitLines(runes, lx.code, lx.masked, lx.inString)
	}
	return src
}

type lexer struct {
	runes      []rune
	code       []rune
	masked     []rune
	lineStarts []int
	inString   map[int]bool
	literals   []Literal
	degraded   bool
	syn        *syntax
}

func newLexer(runes []rune, syn *syntax) *lexer {
	lx := &lexer{
		runes:      runes,
		code:       append([]rune(nil), runes...),
		masked:     append([]rune(nil), runes...),
		lineStarts: []int{0},
		inString:   map[int]bool{},
		syn:        syn,
	}
	for i, r := range runes {
		if r == '\n' {
			lx.lineStarts = append(lx.lineStarts, i+1)
		}
	}
	return lx
}

// position returns the 1-based line and column of rune offset i.
func (lx *lexer) position(i int) (int, int) {
	line := sort.Search(len(lx.lineStarts), func(k int) bool { return lx.lineStarts[k] > i })
	return line, i - lx.lineStarts[line-1] + 1
}

func (lx *lexer) hasPrefix(i int, s string) bool {
	for _, r := range s {
		if i >= len(lx.runes) || lx.runes[i] != r {
			return false
		}
		i++
	}
	return true
}

func (lx *lexer) blank(from, to int, code bool) {
	for j := from; j < to && j < len(lx.runes); j++ {
		if lx.runes[j] == '\n' || lx.runes[j] == '\r' {
			continue
		}
		if code {
			lx.code[j] = ' '
		}
		lx.masked[j] = ' '
	}
}

func (lx *lexer) run() {
	n := len(lx.runes)
	for i := 0; i < n; {
		r := lx.runes[i]
		switch {
		case lx.syn.lineComment != "" && lx.hasPrefix(i, lx.syn.lineComment):
			j := i
			for j < n && lx.runes[j] != '\n' {
				j++
			}
			lx.blank(i, j, true)
			i = j
		case lx.syn.blockComment && lx.hasPrefix(i, "/*"):
			end := n
			if k := indexRunes(lx.runes, i+2, "*/"); k >= 0 {
				end = k + 2
			} else {
				lx.degraded = true
			}
			lx.blank(i, end, true)
			i = end
		case strings.ContainsRune(lx.syn.quotes, r):
			i = lx.lexString(i)
		default:
			i++
		}
	}
}

// lexString consumes the string literal opening at i and returns the
// offset after it.
func (lx *lexer) lexString(i int) int {
	n := len(lx.runes)
	quote := lx.runes[i]
	delim := string(quote)
	if lx.syn.triple && lx.hasPrefix(i, strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	multiline := len(delim) == 3 || quote == lx.syn.multiQuote
	raw := quote == lx.syn.rawQuote

	start := i
	prefix := ""
	if lx.syn.prefixes {
		prefix, start = lx.stringPrefix(i)
	}

	contentStart := i + len([]rune(delim))
	j := contentStart
	closed := false
	for j < n {
		c := lx.runes[j]
		if c == '\\' && !raw {
			j += 2
			continue
		}
		if lx.hasPrefix(j, delim) {
			closed = true
			break
		}
		if c == '\n' && !multiline {
			break
		}
		j++
	}
	if j > n {
		j = n
	}

	for k := contentStart; k < j; k++ {
		if lx.runes[k] == '\n' {
			line, _ := lx.position(k)
			lx.inString[line+1] = true
		}
	}
	lx.blank(contentStart, j, false)

	value := string(lx.runes[contentStart:j])
	line, col := lx.position(start)
	lit := Literal{Value: value, Line: line, Column: col, Prefix: prefix}
	if lx.syn.interpolate != nil {
		lit.Interpolated = lx.syn.interpolate(prefix, quote, value)
	}
	lx.literals = append(lx.literals, lit)

	if !closed {
		lx.degraded = true
		return j
	}
	return j + len([]rune(delim))
}

// stringPrefix returns Python prefix letters directly before offset i and
// the offset where the literal therefore starts.
func (lx *lexer) stringPrefix(i int) (string, int) {
	start := i
	for start > 0 && i-start < 2 && strings.ContainsRune("rRbBfFuU", lx.runes[start-1]) {
		start--
	}
	if start > 0 && isIdentRune(lx.runes[start-1]) {
		return "", i
	}
	return string(lx.runes[start:i]), start
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func indexRunes(runes []rune, from int, s string) int {
	target := []rune(s)
outer:
	for i := from; i+len(target) <= len(runes); i++ {
		for k, r := range target {
			if runes[i+k] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}

func splitLines(raw, code, masked []rune, inString map[int]bool) []Line {
	var lines []Line
	start := 0
	no := 1
	emit := func(end int) {
		lines = append(lines, Line{
			No:       no,
			Raw:      strings.TrimSuffix(string(raw[start:end]), "\r"),
			Code:     strings.TrimSuffix(string(code[start:end]), "\r"),
			Masked:   strings.TrimSuffix(string(masked[start:end]), "\r"),
			InString: inString[no],
		})
	}
	for i, r := range raw {
		if r == '\n' {
			emit(i)
			start = i + 1
			no++
		}
	}
	if start < len(raw) {
		emit(len(raw))
	}
	return lines
}
