package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/warden/internal/ir"
)

// yamlFeature is the on-disk YAML shape. States and transitions are kept as
// nodes because two layouts are accepted for each:
//
//	states: {Pending: {description: ...}, Paid: {terminal: true}}
//	states: [Pending, Paid]
//
//	transitions: [{from: Pending, to: Paid}]
//	transitions: {Pending: [Paid, Cancelled], Paid: []}
type yamlFeature struct {
	Feature      string    `yaml:"feature"`
	Description  string    `yaml:"description"`
	InitialState string    `yaml:"initial_state"`
	Initial      string    `yaml:"initial"`
	AllowEmpty   bool      `yaml:"allow_empty"`
	States       yaml.Node `yaml:"states"`
	Transitions  yaml.Node `yaml:"transitions"`
}

type yamlState struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Terminal    bool   `yaml:"terminal"`
}

type yamlTransition struct {
	From        string `yaml:"from"`
	To          string `yaml:"to"`
	Description string `yaml:"description"`
}

// DecodeFeatureYAML compiles a YAML feature file. Unknown top-level keys are
// rejected. When the file omits the feature name, the name of the directory
// containing it is used (app/features/<name>/state.yaml).
func DecodeFeatureYAML(data []byte, filename string) (*ir.FeatureSpec, error) {
	var raw yamlFeature
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &CompileError{Field: "feature", Message: "file is empty", File: filename}
		}
		return nil, &CompileError{Field: "yaml", Message: err.Error(), File: filename}
	}

	spec := &ir.FeatureSpec{
		Name:         strings.TrimSpace(raw.Feature),
		InitialState: raw.InitialState,
		AllowEmpty:   raw.AllowEmpty,
		Source:       filename,
	}
	if spec.Name == "" && filename != "" {
		spec.Name = filepath.Base(filepath.Dir(filename))
	}
	if spec.InitialState == "" {
		spec.InitialState = raw.Initial
	}

	var err error
	if spec.States, err = decodeYAMLStates(&raw.States, filename); err != nil {
		return nil, err
	}
	if spec.Transitions, err = decodeYAMLTransitions(&raw.Transitions, filename); err != nil {
		return nil, err
	}
	return spec, nil
}

func decodeYAMLStates(node *yaml.Node, filename string) ([]ir.StateDef, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		states := make([]ir.StateDef, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind == yaml.ScalarNode {
				states = append(states, ir.StateDef{Name: item.Value})
				continue
			}
			var st yamlState
			if err := item.Decode(&st); err != nil {
				return nil, yamlError("states", item, filename, err)
			}
			states = append(states, ir.StateDef(st))
		}
		return states, nil
	case yaml.MappingNode:
		states := make([]ir.StateDef, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			st := yamlState{}
			if !isNullNode(val) {
				if err := val.Decode(&st); err != nil {
					return nil, yamlError("states."+key.Value, val, filename, err)
				}
			}
			st.Name = key.Value
			states = append(states, ir.StateDef(st))
		}
		return states, nil
	default:
		return nil, &CompileError{
			Field:   "states",
			Message: "states must be a mapping or a list",
			File:    filename,
			Line:    node.Line,
		}
	}
}

func decodeYAMLTransitions(node *yaml.Node, filename string) ([]ir.TransitionDef, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		out := make([]ir.TransitionDef, 0, len(node.Content))
		for _, item := range node.Content {
			var tr yamlTransition
			if err := item.Decode(&tr); err != nil {
				return nil, yamlError("transitions", item, filename, err)
			}
			if tr.From == "" || tr.To == "" {
				return nil, &CompileError{
					Field:   "transitions",
					Message: "transition requires from and to",
					File:    filename,
					Line:    item.Line,
				}
			}
			out = append(out, ir.TransitionDef(tr))
		}
		return out, nil
	case yaml.MappingNode:
		var out []ir.TransitionDef
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if isNullNode(val) {
				continue
			}
			var targets []string
			if err := val.Decode(&targets); err != nil {
				return nil, yamlError("transitions."+key.Value, val, filename, err)
			}
			for _, to := range targets {
				out = append(out, ir.TransitionDef{From: key.Value, To: to})
			}
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   "transitions",
			Message: "transitions must be a list or a mapping of state to targets",
			File:    filename,
			Line:    node.Line,
		}
	}
}

func isNullNode(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func yamlError(field string, node *yaml.Node, filename string, err error) error {
	return &CompileError{
		Field:   field,
		Message: fmt.Sprintf("invalid value: %v", err),
		File:    filename,
		Line:    node.Line,
	}
}
