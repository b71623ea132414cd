package compiler

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/warden/internal/ir"
)

// CompileFeature parses a CUE value into a FeatureSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the feature struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`feature: orders: { ... }`)
//	spec, err := CompileFeature(v.LookupPath(cue.ParsePath("feature.orders")))
//
// Structural problems (missing fields, wrong types) are compile errors.
// Semantic problems (undeclared states) are left to ValidateFeature.
func CompileFeature(v cue.Value) (*ir.FeatureSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.FeatureSpec{}

	// Feature name comes from the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	initVal := v.LookupPath(cue.ParsePath("initial_state"))
	if !initVal.Exists() {
		return nil, &CompileError{
			Field:   "initial_state",
			Message: "initial_state is required",
			Pos:     v.Pos(),
		}
	}
	initial, err := initVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.InitialState = initial

	if ae := v.LookupPath(cue.ParsePath("allow_empty")); ae.Exists() {
		if spec.AllowEmpty, err = ae.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if spec.States, err = parseCUEStates(v); err != nil {
		return nil, err
	}
	if spec.Transitions, err = parseCUETransitions(v); err != nil {
		return nil, err
	}

	return spec, nil
}

// CompileFeatureSource compiles every feature declared under the top-level
// "feature" struct of a CUE source file, in declaration order.
func CompileFeatureSource(data []byte, filename string) ([]*ir.FeatureSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	featuresVal := v.LookupPath(cue.ParsePath("feature"))
	if !featuresVal.Exists() {
		return nil, nil
	}

	iter, err := featuresVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []*ir.FeatureSpec
	for iter.Next() {
		spec, err := CompileFeature(iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Name = iter.Label()
		spec.Source = filename
		specs = append(specs, spec)
	}
	return specs, nil
}

// parseCUEStates reads the states struct. Each state is either empty or
// carries description and terminal fields.
func parseCUEStates(v cue.Value) ([]ir.StateDef, error) {
	statesVal := v.LookupPath(cue.ParsePath("states"))
	if !statesVal.Exists() {
		return nil, nil
	}

	iter, err := statesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var states []ir.StateDef
	for iter.Next() {
		state := ir.StateDef{Name: iter.Label()}
		sv := iter.Value()

		if d := sv.LookupPath(cue.ParsePath("description")); d.Exists() {
			if state.Description, err = d.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if term := sv.LookupPath(cue.ParsePath("terminal")); term.Exists() {
			if state.Terminal, err = term.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		states = append(states, state)
	}
	return states, nil
}

// parseCUETransitions reads the transitions list of {from, to, description}.
func parseCUETransitions(v cue.Value) ([]ir.TransitionDef, error) {
	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if !transVal.Exists() {
		return nil, nil
	}

	iter, err := transVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var transitions []ir.TransitionDef
	for iter.Next() {
		tv := iter.Value()
		var td ir.TransitionDef

		for _, f := range []struct {
			name string
			dst  *string
			req  bool
		}{
			{"from", &td.From, true},
			{"to", &td.To, true},
			{"description", &td.Description, false},
		} {
			fv := tv.LookupPath(cue.ParsePath(f.name))
			if !fv.Exists() {
				if f.req {
					return nil, &CompileError{
						Field:   "transitions." + f.name,
						Message: f.name + " is required",
						Pos:     tv.Pos(),
					}
				}
				continue
			}
			if *f.dst, err = fv.String(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		transitions = append(transitions, td)
	}
	return transitions, nil
}
