// Package layers assigns files to architectural layers and reports
// references that cross layers in a direction the rules do not allow.
package layers

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/moby/patternmatcher"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/lang"
)

// Rule IDs of layer findings.
const (
	RuleViolation    = "LAYER001"
	RuleUnclassified = "LAYER002"
)

// Classifier maps files to layers. The first layer whose patterns match
// a file wins. It is safe for concurrent use.
type Classifier struct {
	defs     []ir.LayerDef
	matchers []*patternmatcher.PatternMatcher

	// patternmatcher compiles patterns lazily on first match.
	mu sync.Mutex
}

// NewClassifier compiles the path patterns of rules. A nil rule set
// classifies nothing.
func NewClassifier(rules *ir.LayerRules) (*Classifier, error) {
	c := &Classifier{}
	if rules == nil {
		return c, nil
	}
	for _, def := range rules.Layers {
		patterns := make([]string, len(def.Paths))
		for i, p := range def.Paths {
			patterns[i] = filepath.FromSlash(p)
		}
		pm, err := patternmatcher.New(patterns)
		if err != nil {
			return nil, fmt.Errorf("layer %q: %w", def.Name, err)
		}
		c.defs = append(c.defs, def)
		c.matchers = append(c.matchers, pm)
	}
	return c, nil
}

// Empty reports whether no layers are declared.
func (c *Classifier) Empty() bool { return len(c.defs) == 0 }

// Layer returns the layer of a slash-separated relative path.
func (c *Classifier) Layer(file string) (string, bool) {
	p := filepath.FromSlash(file)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pm := range c.matchers {
		ok, err := pm.MatchesOrParentMatches(p)
		if err == nil && ok {
			return c.defs[i].Name, true
		}
	}
	return "", false
}

// Names returns the declared layer names in order.
func (c *Classifier) Names() []string {
	out := make([]string, len(c.defs))
	for i, d := range c.defs {
		out[i] = d.Name
	}
	return out
}

// Target is a reference together with the project files it resolved to.
type Target struct {
	Ref   lang.Reference
	Files []string
}

// Enforcer checks references against each layer's allowed-target set.
type Enforcer struct {
	*Classifier
	allow map[string][]string
}

// NewEnforcer builds an enforcer for rules.
func NewEnforcer(rules *ir.LayerRules) (*Enforcer, error) {
	c, err := NewClassifier(rules)
	if err != nil {
		return nil, err
	}
	e := &Enforcer{Classifier: c, allow: make(map[string][]string)}
	for _, def := range c.defs {
		e.allow[def.Name] = def.Allow
	}
	return e, nil
}

// Allowed reports whether layer from may reference layer to.
func (e *Enforcer) Allowed(from, to string) bool {
	return from == to || slices.Contains(e.allow[from], to)
}

// Check reports every reference in file, which sits in layer, whose
// target layer is not allowed. Targets outside every layer are never
// violations. At most one finding is reported per reference and target
// layer.
func (e *Enforcer) Check(file, layer string, targets []Target) []ir.Finding {
	var out []ir.Finding
	for _, t := range targets {
		seen := map[string]bool{}
		for _, target := range t.Files {
			to, ok := e.Layer(target)
			if !ok || seen[to] || e.Allowed(layer, to) {
				continue
			}
			seen[to] = true
			out = append(out, e.violation(file, layer, to, t.Ref))
		}
	}
	return out
}

func (e *Enforcer) violation(file, from, to string, ref lang.Reference) ir.Finding {
	msg := fmt.Sprintf("layer %q must not reference layer %q (import %s)", from, to, refLabel(ref))
	suggestion := "allowed targets: none"
	if allowed := e.allow[from]; len(allowed) > 0 {
		suggestion = "allowed targets: " + strings.Join(allowed, ", ")
	}
	if via := e.skipped(from, to); via != "" {
		msg = fmt.Sprintf("layer %q skips layer %q to reach %q (import %s)", from, via, to, refLabel(ref))
		suggestion = fmt.Sprintf("go through layer %q", via)
	}
	f := ir.Finding{
		RuleID:     RuleViolation,
		Category:   ir.CategoryLayer,
		Severity:   ir.SeverityHigh,
		File:       file,
		Line:       ref.Line,
		Column:     ref.Column,
		Message:    msg,
		Suggestion: suggestion,
	}
	f.ID = ir.MustFindingID(f)
	return f
}

// skipped returns the first layer allowed from from, in declared order,
// through which to is reachable. Empty when none is.
func (e *Enforcer) skipped(from, to string) string {
	for _, via := range e.allow[from] {
		if via != from && e.reachable(via, to) {
			return via
		}
	}
	return ""
}

func (e *Enforcer) reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range e.allow[cur] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Unclassified returns the informational finding for a file outside
// every layer.
func Unclassified(file string) ir.Finding {
	f := ir.Finding{
		RuleID:     RuleUnclassified,
		Category:   ir.CategoryUnclassified,
		Severity:   ir.SeverityInfo,
		File:       file,
		Line:       1,
		Message:    "file matches no declared layer",
		Suggestion: "add its directory to a layer's paths",
	}
	f.ID = ir.MustFindingID(f)
	return f
}

func refLabel(ref lang.Reference) string {
	return strings.Repeat(".", ref.Level) + ref.Module
}
