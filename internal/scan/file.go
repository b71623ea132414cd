package scan

import (
	"context"
	"os"
	"path/filepath"

	"github.com/roach88/warden/internal/graph"
	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/rules"
	"github.com/roach88/warden/internal/sast"
)

// ScanFile runs ruleset over one file. The error is an *ir.FileError when
// the file cannot be read or decoded.
func ScanFile(path string, ruleset []sast.Rule) ([]ir.Finding, error) {
	name := filepath.ToSlash(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ir.FileError{File: name, Kind: ir.FileErrorRead, Message: pathErrorText(err)}
	}
	text, err := decode(data)
	if err != nil {
		return nil, &ir.FileError{File: name, Kind: ir.FileErrorDecode, Message: err.Error()}
	}
	return sast.NewScanner(ruleset, nil).Scan(name, text), nil
}

// CheckLayers reports the layer findings for the tree under root.
func CheckLayers(ctx context.Context, root string, layerRules *ir.LayerRules) ([]ir.Finding, error) {
	store, err := rules.NewWithProject(&ir.ProjectConfig{Layers: layerRules})
	if err != nil {
		return nil, err
	}
	s, err := New(Config{Rules: store, Checks: CheckLayerRules})
	if err != nil {
		return nil, err
	}
	report, err := s.ScanProject(ctx, root)
	if err != nil {
		return nil, err
	}
	return report.Findings, nil
}

// BuildGraph returns the module graph of the tree under root without
// running any checks.
func (s *Scanner) BuildGraph(ctx context.Context, root string) (*graph.Graph, error) {
	narrow := *s
	narrow.checks = CheckCycles
	p, err := narrow.run(ctx, root)
	if err != nil {
		return nil, err
	}
	return p.graph, nil
}
