package compiler

import (
	_ "embed"
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/warden/internal/ir"
)

//go:embed schema/project.cue
var projectSchema string

// projectFile mirrors #Project for decoding.
type projectFile struct {
	Layers []struct {
		Name  string   `json:"name"`
		Paths []string `json:"paths"`
		Allow []string `json:"allow"`
	} `json:"layers"`
	Registry struct {
		Trusted []string `json:"trusted"`
		Allow   []string `json:"allow"`
	} `json:"registry"`
	Rules struct {
		Disable  []string          `json:"disable"`
		Severity map[string]string `json:"severity"`
	} `json:"rules"`
}

// CompileProject compiles a warden.cue project file. The file is unified
// with the embedded #Project schema before decoding, so type errors carry
// CUE positions. Semantic checks are left to ValidateProject.
func CompileProject(data []byte, filename string) (*ir.ProjectConfig, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(projectSchema)
	if err := schemaValue.Err(); err != nil {
		return nil, fmt.Errorf("internal error: failed to compile project schema: %w", err)
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if err := userValue.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Project")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var pf projectFile
	if err := unified.Decode(&pf); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &ir.ProjectConfig{
		Registry: ir.RegistrySpec{
			Trusted: pf.Registry.Trusted,
			Allow:   pf.Registry.Allow,
		},
		Rules: ir.RuleSettings{
			Disable:  pf.Rules.Disable,
			Severity: make(map[string]ir.Severity, len(pf.Rules.Severity)),
		},
	}
	for id, sev := range pf.Rules.Severity {
		cfg.Rules.Severity[id] = ir.Severity(sev)
	}
	if pf.Layers != nil {
		cfg.Layers = &ir.LayerRules{Layers: make([]ir.LayerDef, len(pf.Layers))}
		for i, l := range pf.Layers {
			cfg.Layers.Layers[i] = ir.LayerDef{Name: l.Name, Paths: l.Paths, Allow: l.Allow}
		}
	}
	return cfg, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
