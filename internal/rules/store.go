// Package rules is the rule store: the explicit registry of compiled
// features plus the project's layer, registry and pattern-rule settings.
//
// A Store is built all-or-nothing. Load reads every source under a config
// directory, validates everything, and returns a *compiler.ConfigError
// listing every problem if anything is wrong; nothing is partially
// registered. After construction a Store is read-only and safe to share.
package rules

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"facette.io/natsort"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/deps"
	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/graph"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/layers"
	"github.com/roach88/warden/internal/sast"
)

// ErrUnknownFeature is returned for names not in the store.
var ErrUnknownFeature = errors.New("unknown feature")

// Store holds compiled rule configuration.
type Store struct {
	tables   map[string]*engine.Table
	names    []string
	project  *ir.ProjectConfig
	warnings []compiler.FeatureWarning
	sources  []string
}

// New builds a store from feature specs and no project configuration.
func New(specs ...*ir.FeatureSpec) (*Store, error) {
	return NewWithProject(nil, specs...)
}

// NewWithProject builds a store from a project configuration and feature
// specs. A nil project means no layers, the embedded registries and every
// built-in rule.
func NewWithProject(project *ir.ProjectConfig, specs ...*ir.FeatureSpec) (*Store, error) {
	if project == nil {
		project = &ir.ProjectConfig{}
	}

	var errs []compiler.ValidationError
	errs = append(errs, compiler.ValidateProject(project, KnownRuleIDs())...)

	seen := make(map[string]string, len(specs))
	for _, spec := range specs {
		for _, e := range compiler.ValidateFeature(spec) {
			e.Field = qualify(spec, e.Field)
			errs = append(errs, e)
		}
		if prev, dup := seen[spec.Name]; dup && spec.Name != "" {
			errs = append(errs, compiler.ValidationError{
				Field:   "feature." + spec.Name,
				Message: fmt.Sprintf("feature %q already declared in %s", spec.Name, sourceLabel(prev)),
				Code:    compiler.ErrDuplicateFeature,
			})
			continue
		}
		seen[spec.Name] = spec.Source
	}
	if len(errs) > 0 {
		return nil, &compiler.ConfigError{Errors: errs}
	}

	s := &Store{
		tables:  make(map[string]*engine.Table, len(specs)),
		project: project,
	}
	for _, spec := range specs {
		table, err := engine.Compile(spec)
		if err != nil {
			return nil, &compiler.ConfigError{Source: spec.Source, Err: err}
		}
		s.tables[spec.Name] = table
		s.warnings = append(s.warnings, compiler.AnalyzeFeature(spec)...)
	}
	s.names = slices.Collect(maps.Keys(s.tables))
	natsort.Sort(s.names)
	return s, nil
}

func qualify(spec *ir.FeatureSpec, field string) string {
	if spec.Name == "" {
		return field
	}
	return "feature." + spec.Name + "." + field
}

func sourceLabel(src string) string {
	if src == "" {
		return "another spec"
	}
	return src
}

// KnownRuleIDs returns every rule ID that settings may reference.
func KnownRuleIDs() map[string]bool {
	ids := map[string]bool{
		deps.RuleTyposquat:      true,
		deps.RuleUnknown:        true,
		layers.RuleViolation:    true,
		layers.RuleUnclassified: true,
		graph.RuleCycle:         true,
	}
	for _, id := range sast.IDs(sast.DefaultRules()) {
		ids[id] = true
	}
	return ids
}

// FeatureNames returns the registered feature names in natural order.
func (s *Store) FeatureNames() []string {
	return slices.Clone(s.names)
}

// Features returns every feature spec in FeatureNames order.
func (s *Store) Features() []*ir.FeatureSpec {
	out := make([]*ir.FeatureSpec, len(s.names))
	for i, n := range s.names {
		out[i] = s.tables[n].Spec()
	}
	return out
}

// Feature returns the spec of the named feature.
func (s *Store) Feature(name string) (*ir.FeatureSpec, error) {
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return t.Spec(), nil
}

// Table returns the compiled transition table of the named feature.
func (s *Store) Table(name string) (*engine.Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFeature, name)
	}
	return t, nil
}

// NewMachine creates a machine for the named feature at its initial state.
func (s *Store) NewMachine(name string, opts ...engine.MachineOption) (*engine.Machine, error) {
	t, err := s.Table(name)
	if err != nil {
		return nil, err
	}
	return engine.New(t, opts...), nil
}

// Project returns the project configuration.
func (s *Store) Project() *ir.ProjectConfig { return s.project }

// Layers returns the layer rules, or nil when none are declared.
func (s *Store) Layers() *ir.LayerRules { return s.project.Layers }

// Registry returns the project's registry settings.
func (s *Store) Registry() ir.RegistrySpec { return s.project.Registry }

// RuleSettings returns the project's rule settings.
func (s *Store) RuleSettings() ir.RuleSettings { return s.project.Rules }

// PatternRules returns the built-in pattern rules with settings applied.
func (s *Store) PatternRules() []sast.Rule {
	return sast.Configure(sast.DefaultRules(), s.project.Rules)
}

// Warnings returns analysis warnings for the registered features.
func (s *Store) Warnings() []compiler.FeatureWarning {
	return slices.Clone(s.warnings)
}

// Sources returns the files the store was loaded from.
func (s *Store) Sources() []string {
	return slices.Clone(s.sources)
}
