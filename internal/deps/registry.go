package deps

import (
	"bufio"
	"embed"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/roach88/warden/internal/ir"
)

// Rule IDs of registry findings.
const (
	RuleTyposquat = "DEP001"
	RuleUnknown   = "DEP002"
)

// MaxSuspiciousDistance is the largest edit distance still reported as a
// likely typosquat.
const MaxSuspiciousDistance = 2

// Class is the outcome of a registry check.
type Class string

const (
	ClassValid      Class = "valid"
	ClassSuspicious Class = "suspicious"
	ClassUnknown    Class = "unknown"
)

// Ecosystem names a package namespace.
type Ecosystem string

const (
	PyPI Ecosystem = "pypi"
	NPM  Ecosystem = "npm"
	Go   Ecosystem = "go"
)

// Ecosystems lists the supported namespaces.
var Ecosystems = []Ecosystem{Go, NPM, PyPI}

// Result is the classification of one name.
type Result struct {
	Name       string `json:"name"`
	Class      Class  `json:"class"`
	Distance   int    `json:"distance"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Normalize folds a package name for comparison: lower case, with PyPI's
// runs of '-', '_' and '.' collapsed to a single '-'.
func Normalize(eco Ecosystem, name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if eco != PyPI {
		return name
	}
	var b strings.Builder
	sep := false
	for _, r := range name {
		if r == '-' || r == '_' || r == '.' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('-')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Registry is a set of trusted names for one ecosystem plus a project
// allow-list. It is immutable after construction.
type Registry struct {
	eco     Ecosystem
	trusted []string
	set     map[string]bool
	allow   map[string]bool
}

// NewRegistry creates a registry. Allow-listed names are always valid.
func NewRegistry(eco Ecosystem, trusted, allow []string) *Registry {
	r := &Registry{
		eco:   eco,
		set:   make(map[string]bool, len(trusted)),
		allow: make(map[string]bool, len(allow)),
	}
	for _, name := range trusted {
		n := Normalize(eco, name)
		if n == "" || r.set[n] {
			continue
		}
		r.set[n] = true
		r.trusted = append(r.trusted, n)
	}
	slices.Sort(r.trusted)
	for _, name := range allow {
		r.allow[Normalize(eco, name)] = true
	}
	return r
}

// Ecosystem returns the registry's namespace.
func (r *Registry) Ecosystem() Ecosystem { return r.eco }

// Len returns the number of trusted names.
func (r *Registry) Len() int { return len(r.trusted) }

// With returns a registry with extra trusted and allowed names.
func (r *Registry) With(trusted, allow []string) *Registry {
	allowed := make([]string, 0, len(r.allow)+len(allow))
	for n := range r.allow {
		allowed = append(allowed, n)
	}
	return NewRegistry(r.eco, append(slices.Clone(r.trusted), trusted...), append(allowed, allow...))
}

// Check classifies name. Distance is the edit distance to the nearest
// trusted name; ties go to the lexicographically first entry.
func (r *Registry) Check(name string) Result {
	n := Normalize(r.eco, name)
	if r.allow[n] || r.set[n] {
		return Result{Name: name, Class: ClassValid}
	}

	best, nearest := -1, ""
	nl := utf8.RuneCountInString(n)
	for _, cand := range r.trusted {
		diff := utf8.RuneCountInString(cand) - nl
		if diff < 0 {
			diff = -diff
		}
		// Length difference is a lower bound on the distance, and a tie
		// with a later entry never wins.
		if best >= 0 && diff >= best {
			continue
		}
		d := levenshtein.ComputeDistance(n, cand)
		if best < 0 || d < best {
			best, nearest = d, cand
		}
	}

	switch {
	case best < 0:
		return Result{Name: name, Class: ClassUnknown}
	case best <= MaxSuspiciousDistance:
		return Result{Name: name, Class: ClassSuspicious, Distance: best, Suggestion: nearest}
	default:
		return Result{Name: name, Class: ClassUnknown, Distance: best}
	}
}

// Finding converts a non-valid result into a finding at file:line.
func Finding(res Result, file string, line, col int) (ir.Finding, bool) {
	var f ir.Finding
	switch res.Class {
	case ClassSuspicious:
		f = ir.Finding{
			RuleID:     RuleTyposquat,
			Category:   ir.CategoryTyposquat,
			Severity:   ir.SeverityHigh,
			Message:    fmt.Sprintf("package %q is %d edit(s) from trusted package %q", res.Name, res.Distance, res.Suggestion),
			Suggestion: fmt.Sprintf("did you mean %q?", res.Suggestion),
		}
	case ClassUnknown:
		f = ir.Finding{
			RuleID:   RuleUnknown,
			Category: ir.CategoryUnknownPackage,
			Severity: ir.SeverityInfo,
			Message:  fmt.Sprintf("package %q is not in the trusted registry", res.Name),
		}
	default:
		return ir.Finding{}, false
	}
	f.File = file
	f.Line = line
	f.Column = col
	f.ID = ir.MustFindingID(f)
	return f, true
}

//go:embed trusted/*.txt
var trustedFS embed.FS

// DefaultTrusted returns the embedded trusted list for eco.
func DefaultTrusted(eco Ecosystem) []string {
	data, err := trustedFS.ReadFile("trusted/" + string(eco) + ".txt")
	if err != nil {
		return nil
	}
	var names []string
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names
}

// DefaultRegistry returns the embedded registry for eco.
func DefaultRegistry(eco Ecosystem) *Registry {
	return NewRegistry(eco, DefaultTrusted(eco), nil)
}

// Set holds one registry per ecosystem.
type Set map[Ecosystem]*Registry

// NewSet builds the embedded registries extended with the project's
// registry settings, which apply to every ecosystem.
func NewSet(spec ir.RegistrySpec) Set {
	s := make(Set, len(Ecosystems))
	for _, eco := range Ecosystems {
		s[eco] = NewRegistry(eco, append(DefaultTrusted(eco), spec.Trusted...), spec.Allow)
	}
	return s
}

// Check classifies name in eco's registry. Names of ecosystems without a
// registry are valid.
func (s Set) Check(eco Ecosystem, name string) Result {
	r := s[eco]
	if r == nil {
		return Result{Name: name, Class: ClassValid}
	}
	return r.Check(name)
}
