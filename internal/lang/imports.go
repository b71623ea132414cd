package lang

import (
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

// Reference is one import statement target.
type Reference struct {
	Module string
	Line   int
	Column int

	// Level counts leading dots of a Python relative import.
	Level int

	// Names lists the names bound by a Python from-import.
	Names []string
}

// Relative reports whether the reference is resolved against the
// importing file rather than a package root.
func (r Reference) Relative() bool {
	return r.Level > 0 || strings.HasPrefix(r.Module, "./") || strings.HasPrefix(r.Module, "../") || r.Module == "." || r.Module == ".."
}

// Imports extracts import references from lexed source.
func Imports(src *Source) []Reference {
	switch src.Lang {
	case Python:
		return pythonImports(src)
	case JavaScript, TypeScript:
		return jsImports(src)
	case Go:
		return goImports(src)
	default:
		return nil
	}
}

var (
	pyImportRe = regexp.MustCompile(`^\s*import\s+(.+)$`)
	pyFromRe   = regexp.MustCompile(`^\s*from\s+(\.*)([\w.]*)\s+import\s+(.+)$`)
	pyIdentRe  = regexp.MustCompile(`^[A-Za-z_][\w.]*$`)
)

func pythonImports(src *Source) []Reference {
	var refs []Reference
	lines := src.Lines
	for i := 0; i < len(lines); i++ {
		ln := lines[i]
		if ln.InString {
			continue
		}
		text := ln.Masked
		offset := 0
		for _, stmt := range strings.Split(text, ";") {
			col := offset + leadingSpace(stmt) + 1
			offset += len([]rune(stmt)) + 1

			if m := pyFromRe.FindStringSubmatch(stmt); m != nil {
				level := len(m[1])
				module := m[2]
				if level == 0 && module == "__future__" {
					continue
				}
				names := m[3]
				// Parenthesised name lists may continue on following lines.
				if strings.Contains(names, "(") && !strings.Contains(names, ")") {
					for i+1 < len(lines) {
						i++
						names += " " + lines[i].Masked
						if strings.Contains(lines[i].Masked, ")") {
							break
						}
					}
				}
				refs = append(refs, Reference{
					Module: module,
					Line:   ln.No,
					Column: col,
					Level:  level,
					Names:  splitNames(names),
				})
				continue
			}
			if m := pyImportRe.FindStringSubmatch(stmt); m != nil {
				for _, part := range strings.Split(m[1], ",") {
					fields := strings.Fields(part)
					if len(fields) == 0 || !pyIdentRe.MatchString(fields[0]) {
						continue
					}
					refs = append(refs, Reference{Module: fields[0], Line: ln.No, Column: col})
				}
			}
		}
	}
	return refs
}

func splitNames(s string) []string {
	s = strings.NewReplacer("(", " ", ")", " ", "\\", " ").Replace(s)
	var names []string
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[0])
	}
	return names
}

func leadingSpace(s string) int {
	return len([]rune(s)) - len([]rune(strings.TrimLeft(s, " \t")))
}

var jsImportRes = []*regexp.Regexp{
	regexp.MustCompile(`^\s*import\s+(?:type\s+)?['"]([^'"]+)['"]`),
	regexp.MustCompile(`\bfrom\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

func jsImports(src *Source) []Reference {
	var refs []Reference
	for _, ln := range src.Lines {
		if ln.InString {
			continue
		}
		seen := map[int]bool{}
		for _, re := range jsImportRes {
			for _, m := range re.FindAllStringSubmatchIndex(ln.Code, -1) {
				if seen[m[2]] {
					continue
				}
				seen[m[2]] = true
				refs = append(refs, Reference{
					Module: ln.Code[m[2]:m[3]],
					Line:   ln.No,
					Column: len([]rune(ln.Code[:m[0]])) + leadingSpace(ln.Code[m[0]:m[1]]) + 1,
				})
			}
		}
	}
	sortReferences(refs)
	return refs
}

func sortReferences(refs []Reference) {
	for i := 1; i < len(refs); i++ {
		for j := i; j > 0 && (refs[j].Line < refs[j-1].Line ||
			refs[j].Line == refs[j-1].Line && refs[j].Column < refs[j-1].Column); j-- {
			refs[j], refs[j-1] = refs[j-1], refs[j]
		}
	}
}

var (
	goImportLineRe  = regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goImportOpenRe  = regexp.MustCompile(`^\s*import\s*\(`)
	goImportInnerRe = regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"`)
)

func goImports(src *Source) []Reference {
	text := rawText(src)
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, src.Path, text, parser.ImportsOnly)
	if err == nil {
		refs := make([]Reference, 0, len(f.Imports))
		for _, spec := range f.Imports {
			path, err := strconv.Unquote(spec.Path.Value)
			if err != nil {
				continue
			}
			pos := fset.Position(spec.Path.Pos())
			refs = append(refs, Reference{Module: path, Line: pos.Line, Column: pos.Column})
		}
		return refs
	}

	var refs []Reference
	inBlock := false
	for _, ln := range src.Lines {
		code := ln.Code
		switch {
		case inBlock:
			if strings.Contains(code, ")") && !goImportInnerRe.MatchString(code) {
				inBlock = false
				continue
			}
			if m := goImportInnerRe.FindStringSubmatchIndex(code); m != nil {
				refs = append(refs, Reference{Module: code[m[2]:m[3]], Line: ln.No, Column: len([]rune(code[:m[2]]))})
			}
		case goImportOpenRe.MatchString(code):
			inBlock = true
		default:
			if m := goImportLineRe.FindStringSubmatchIndex(code); m != nil {
				refs = append(refs, Reference{Module: code[m[2]:m[3]], Line: ln.No, Column: len([]rune(code[:m[2]]))})
			}
		}
	}
	return refs
}

func rawText(src *Source) string {
	var b strings.Builder
	for i, ln := range src.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ln.Raw)
	}
	return b.String()
}
