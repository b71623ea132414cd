package sast

import (
	"math"
	"regexp"
	"strings"

	"github.com/roach88/warden/internal/lang"
)

// GodClassMethods is the method count above which a class is reported.
const GodClassMethods = 20

const (
	entropyMinLength = 20
	entropyThreshold = 4.0
)

var tokenCharset = regexp.MustCompile(`^[A-Za-z0-9+/=_\-]+$`)

// shannon returns the Shannon entropy of s in bits per rune.
func shannon(s string) float64 {
	counts := make(map[rune]int)
	total := 0
	for _, r := range s {
		counts[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}

// highEntropy reports whether s looks like a random token: long enough,
// token charset only, mixing letters and digits, and with high entropy.
func highEntropy(s string) bool {
	if len(s) < entropyMinLength || !tokenCharset.MatchString(s) {
		return false
	}
	if !strings.ContainsAny(s, "0123456789") || !strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return false
	}
	return shannon(s) >= entropyThreshold
}

var (
	classDecl  = regexp.MustCompile(`^(\s*)(class)\s+\w+`)
	methodDecl = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+\w+`)
)

func indentOf(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// godClass reports Python classes with more than limit direct methods.
// Methods are the defs at the class body's first indentation level.
func godClass(limit int) Matcher {
	return func(src *lang.Source) []Hit {
		var hits []Hit
		lines := src.Lines
		for i, ln := range lines {
			m := classDecl.FindStringSubmatchIndex(ln.Masked)
			if m == nil || ln.InString {
				continue
			}
			classIndent := m[3] - m[2]
			bodyIndent := -1
			methods := 0
			for _, body := range lines[i+1:] {
				if body.InString || strings.TrimSpace(body.Masked) == "" {
					continue
				}
				indent := indentOf(body.Masked)
				if indent <= classIndent {
					break
				}
				if bodyIndent < 0 {
					bodyIndent = indent
				}
				if indent == bodyIndent && methodDecl.MatchString(body.Masked) {
					methods++
				}
			}
			if methods > limit {
				hits = append(hits, Hit{Line: ln.No, Column: runeColumn(ln.Masked, m[4])})
			}
		}
		return hits
	}
}
