package sast

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/warden/internal/lang"
)

// lineRule matches a per-language pattern against Masked lines. The hit
// column is the start of capture group 1 when the pattern has one. accept,
// when set, gets the line and the match byte offsets and may veto it.
func lineRule(patterns map[lang.Language]*regexp.Regexp, accept func(src *lang.Source, ln lang.Line, m []int) bool) Matcher {
	return func(src *lang.Source) []Hit {
		re := patterns[src.Lang]
		if re == nil {
			return nil
		}
		var hits []Hit
		for _, ln := range src.Lines {
			if ln.InString {
				continue
			}
			for _, m := range re.FindAllStringSubmatchIndex(ln.Masked, -1) {
				if accept != nil && !accept(src, ln, m) {
					continue
				}
				hits = append(hits, Hit{Line: ln.No, Column: runeColumn(ln.Masked, matchStart(ln.Masked, m))})
				break
			}
		}
		return hits
	}
}

// runeColumn converts a byte offset into a 1-based rune column.
func runeColumn(s string, off int) int {
	return utf8.RuneCountInString(s[:off]) + 1
}

func matchStart(s string, m []int) int {
	if len(m) > 2 && m[2] >= 0 {
		return m[2]
	}
	return m[0] + len(s[m[0]:m[1]]) - len(strings.TrimLeftFunc(s[m[0]:m[1]], unicode.IsSpace))
}

// group returns capture group n of match m, or "".
func group(s string, m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return s[m[2*n]:m[2*n+1]]
}

// literalAt returns the literal starting at the 1-based rune column col
// of line no.
func literalAt(src *lang.Source, no, col int) (lang.Literal, bool) {
	for _, lit := range src.LiteralsOn(no) {
		if lit.Column == col {
			return lit, true
		}
	}
	return lang.Literal{}, false
}

// literalEnd returns the rune index just past the closing delimiter of lit
// in the masked runes of its line, or len(masked) when it closes on a
// later line.
func literalEnd(src *lang.Source, masked []rune, lit lang.Literal) int {
	i := lit.Column - 1 + utf8.RuneCountInString(lit.Prefix)
	if i >= len(masked) {
		return len(masked)
	}
	delim := string(masked[i])
	if src.Lang == lang.Python && strings.HasPrefix(string(masked[i:]), strings.Repeat(delim, 3)) {
		delim = strings.Repeat(delim, 3)
	}
	rest := string(masked[i+utf8.RuneCountInString(delim):])
	k := strings.Index(rest, delim)
	if k < 0 {
		return len(masked)
	}
	return i + utf8.RuneCountInString(delim) + utf8.RuneCountInString(rest[:k]) + utf8.RuneCountInString(delim)
}

// composed reports whether lit is combined with run-time values: an
// interpolating literal, or one directly concatenated or formatted.
func composed(src *lang.Source, ln lang.Line, lit lang.Literal) bool {
	if lit.Interpolated {
		return true
	}
	masked := []rune(ln.Masked)
	end := literalEnd(src, masked, lit)
	after := strings.TrimLeftFunc(string(masked[end:]), unicode.IsSpace)
	before := strings.TrimRightFunc(string(masked[:min(lit.Column-1, len(masked))]), unicode.IsSpace)
	switch {
	case strings.HasPrefix(after, "+"), strings.HasSuffix(before, "+"):
		return true
	case src.Lang == lang.Python && (strings.HasPrefix(after, "%") || strings.HasPrefix(after, ".format")):
		return true
	}
	return false
}

// firstArg locates the first argument of the call whose opening
// parenthesis ends at byte offset open in ln.Masked. It returns the
// argument's rune index, or -1 for an empty call or one continued on the
// next line.
func firstArg(ln lang.Line, open int) int {
	masked := []rune(ln.Masked)
	i := utf8.RuneCountInString(ln.Masked[:open])
	for i < len(masked) && unicode.IsSpace(masked[i]) {
		i++
	}
	if i == len(masked) || masked[i] == ')' {
		return -1
	}
	return i
}

// dynamicAt reports whether the expression starting at rune index i of
// the line is built at run time: anything but a plain literal.
func dynamicAt(src *lang.Source, ln lang.Line, i int) bool {
	if i < 0 {
		return false
	}
	lit, ok := literalAt(src, ln.No, i+1)
	if !ok {
		return true
	}
	return composed(src, ln, lit)
}

// dynamicArg reports whether the first argument of the call whose opening
// parenthesis ends at byte offset open is built at run time. A call
// continued on the next line is treated as static.
func dynamicArg(src *lang.Source, ln lang.Line, open int) bool {
	return dynamicAt(src, ln, firstArg(ln, open))
}

// composedArg reports whether the first argument is a literal combined
// with run-time values. Plain identifiers do not count.
func composedArg(src *lang.Source, ln lang.Line, open int) bool {
	i := firstArg(ln, open)
	if i < 0 {
		return false
	}
	lit, ok := literalAt(src, ln.No, i+1)
	return ok && composed(src, ln, lit)
}

// argLiteral returns the first argument when it is a literal.
func argLiteral(src *lang.Source, ln lang.Line, open int) (lang.Literal, bool) {
	i := firstArg(ln, open)
	if i < 0 {
		return lang.Literal{}, false
	}
	return literalAt(src, ln.No, i+1)
}

// literalRule reports lines holding a literal accepted by accept. At most
// one hit is reported per line.
func literalRule(accept func(src *lang.Source, ln lang.Line, lit lang.Literal) bool) Matcher {
	return func(src *lang.Source) []Hit {
		var hits []Hit
		for _, ln := range src.Lines {
			if ln.InString {
				continue
			}
			for _, lit := range src.LiteralsOn(ln.No) {
				if accept(src, ln, lit) {
					hits = append(hits, Hit{Line: ln.No, Column: lit.Column})
					break
				}
			}
		}
		return hits
	}
}

// anyOf concatenates the hits of several matchers, keeping the first hit
// per line.
func anyOf(matchers ...Matcher) Matcher {
	return func(src *lang.Source) []Hit {
		seen := map[int]bool{}
		var hits []Hit
		for _, m := range matchers {
			for _, h := range m(src) {
				if !seen[h.Line] {
					seen[h.Line] = true
					hits = append(hits, h)
				}
			}
		}
		return hits
	}
}

// forLangs builds a pattern map sharing one expression across languages.
func forLangs(expr string, langs ...lang.Language) map[lang.Language]*regexp.Regexp {
	re := regexp.MustCompile(expr)
	m := make(map[lang.Language]*regexp.Regexp, len(langs))
	for _, l := range langs {
		m[l] = re
	}
	return m
}
