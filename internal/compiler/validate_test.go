package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

// ordersSpec is the canonical orders workflow used across tests.
func ordersSpec() *ir.FeatureSpec {
	return &ir.FeatureSpec{
		Name:         "orders",
		InitialState: "Pending",
		States: []ir.StateDef{
			{Name: "Pending"},
			{Name: "Paid"},
			{Name: "Shipped", Terminal: true},
			{Name: "Cancelled", Terminal: true},
		},
		Transitions: []ir.TransitionDef{
			{From: "Pending", To: "Paid"},
			{From: "Pending", To: "Cancelled"},
			{From: "Paid", To: "Shipped"},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

// =============================================================================
// FeatureSpec Validation Tests
// =============================================================================

func TestValidateFeatureValid(t *testing.T) {
	errs := Validate(ordersSpec())
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateFeatureMissingName(t *testing.T) {
	spec := ordersSpec()
	spec.Name = "  "

	errs := ValidateFeature(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrFeatureNameEmpty, errs[0].Code)
}

func TestValidateFeatureInitialStateUndeclared(t *testing.T) {
	spec := ordersSpec()
	spec.InitialState = "Draft"

	errs := ValidateFeature(spec)
	assert.Equal(t, []string{ErrInitialStateUndeclared}, codes(errs))
	assert.Contains(t, errs[0].Error(), `"Draft"`)
}

func TestValidateFeatureInitialStateMissing(t *testing.T) {
	spec := ordersSpec()
	spec.InitialState = ""

	assert.Equal(t, []string{ErrInitialStateMissing}, codes(ValidateFeature(spec)))
}

func TestValidateFeatureUndeclaredTransitionTarget(t *testing.T) {
	spec := ordersSpec()
	spec.Transitions = append(spec.Transitions, ir.TransitionDef{From: "Paid", To: "Refunded"})

	errs := ValidateFeature(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUndeclaredState, errs[0].Code)
	assert.Equal(t, "transitions[3]", errs[0].Field)
}

func TestValidateFeatureUndeclaredSelfLoopReportedOnce(t *testing.T) {
	spec := ordersSpec()
	spec.Transitions = append(spec.Transitions, ir.TransitionDef{From: "Ghost", To: "Ghost"})

	assert.Equal(t, []string{ErrUndeclaredState}, codes(ValidateFeature(spec)))
}

func TestValidateFeatureDuplicates(t *testing.T) {
	spec := ordersSpec()
	spec.States = append(spec.States, ir.StateDef{Name: "Paid"})
	spec.Transitions = append(spec.Transitions, ir.TransitionDef{From: "Pending", To: "Paid"})

	assert.Equal(t, []string{ErrDuplicateName, ErrDuplicateName}, codes(ValidateFeature(spec)))
}

func TestValidateFeatureTerminalWithExit(t *testing.T) {
	spec := ordersSpec()
	spec.Transitions = append(spec.Transitions, ir.TransitionDef{From: "Shipped", To: "Pending"})

	assert.Equal(t, []string{ErrTerminalHasExits}, codes(ValidateFeature(spec)))
}

func TestValidateFeatureInitialWithoutExits(t *testing.T) {
	spec := &ir.FeatureSpec{
		Name:         "flag",
		InitialState: "Off",
		States:       []ir.StateDef{{Name: "Off"}},
	}
	assert.Equal(t, []string{ErrInitialNoExits}, codes(ValidateFeature(spec)))

	spec.AllowEmpty = true
	assert.Empty(t, ValidateFeature(spec))
}

func TestValidateFeatureCollectsAll(t *testing.T) {
	spec := &ir.FeatureSpec{
		Name:         "",
		InitialState: "",
		Transitions:  []ir.TransitionDef{{From: "A", To: "B"}},
	}

	errs := ValidateFeature(spec)
	assert.Equal(t, []string{ErrFeatureNameEmpty, ErrNoStates, ErrInitialStateMissing, ErrUndeclaredState, ErrUndeclaredState}, codes(errs))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
}

// =============================================================================
// Layer and Project Validation Tests
// =============================================================================

func standardLayers() *ir.LayerRules {
	return &ir.LayerRules{Layers: []ir.LayerDef{
		{Name: "routes", Paths: []string{"app/routes"}, Allow: []string{"service", "commons"}},
		{Name: "service", Paths: []string{"app/service"}, Allow: []string{"models", "commons"}},
		{Name: "models", Paths: []string{"app/models"}, Allow: []string{"commons"}},
		{Name: "commons", Paths: []string{"app/commons"}},
	}}
}

func TestValidateLayersValid(t *testing.T) {
	assert.Empty(t, ValidateLayers(standardLayers()))
	assert.Empty(t, ValidateLayers(nil))
}

func TestValidateLayersErrors(t *testing.T) {
	rules := standardLayers()
	rules.Layers[0].Allow = append(rules.Layers[0].Allow, "database")
	rules.Layers[1].Paths = nil
	rules.Layers[2].Paths = []string{"app/[models"}
	rules.Layers = append(rules.Layers, ir.LayerDef{Name: "commons", Paths: []string{"lib"}})

	errs := ValidateLayers(rules)
	assert.ElementsMatch(t,
		[]string{ErrDuplicateLayer, ErrUnknownLayerTarget, ErrLayerNoPaths, ErrInvalidPattern},
		codes(errs))
}

func TestValidateProject(t *testing.T) {
	cfg := &ir.ProjectConfig{
		Layers:   standardLayers(),
		Registry: ir.RegistrySpec{Trusted: []string{"requests", ""}},
		Rules: ir.RuleSettings{
			Disable:  []string{"SEC999"},
			Severity: map[string]ir.Severity{"SEC004": "critical"},
		},
	}

	known := map[string]bool{"SEC004": true}
	errs := ValidateProject(cfg, known)
	assert.Equal(t, []string{ErrEmptyIdentifier, ErrUnknownRule, ErrInvalidSeverity}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "states[1]", Message: "duplicate", Code: ErrDuplicateName}
	assert.Equal(t, "[E105] states[1]: duplicate", e.Error())

	e.Line = 7
	assert.Equal(t, "[E105] line 7: states[1]: duplicate", e.Error())
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{
		Source: "features/orders.yaml",
		Errors: []ValidationError{
			{Field: "initial_state", Message: "missing", Code: ErrInitialStateMissing},
		},
	}
	assert.Equal(t, "invalid configuration in features/orders.yaml: [E102] initial_state: missing", err.Error())
	assert.True(t, err.HasCode(ErrInitialStateMissing))
	assert.False(t, err.HasCode(ErrNoStates))
}
