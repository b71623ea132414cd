package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func TestDecodeFeatureYAMLCanonical(t *testing.T) {
	src := []byte(`
feature: orders
initial_state: Pending
states:
  Pending:
    description: awaiting payment
  Paid: {}
  Shipped:
    terminal: true
  Cancelled:
transitions:
  - {from: Pending, to: Paid}
  - {from: Pending, to: Cancelled}
  - from: Paid
    to: Shipped
    description: hand to carrier
`)

	spec, err := DecodeFeatureYAML(src, "features/orders.yaml")
	require.NoError(t, err)

	assert.Equal(t, "orders", spec.Name)
	assert.Equal(t, "Pending", spec.InitialState)
	assert.Equal(t, []string{"Pending", "Paid", "Shipped", "Cancelled"}, spec.StateNames())
	assert.True(t, spec.States[2].Terminal)
	assert.Equal(t, "awaiting payment", spec.States[0].Description)
	assert.Len(t, spec.Transitions, 3)
	assert.Equal(t, "hand to carrier", spec.Transitions[2].Description)
	assert.Equal(t, "features/orders.yaml", spec.Source)
}

func TestDecodeFeatureYAMLShorthand(t *testing.T) {
	src := []byte(`
initial: Idle
states: [Idle, Processing, Paid, Failed, Refunding, Refunded]
transitions:
  Idle: [Processing]
  Processing: [Paid, Failed]
  Paid: [Refunding]
  Refunding: [Refunded]
  Failed: []
  Refunded:
`)

	spec, err := DecodeFeatureYAML(src, "app/features/payment/state.yaml")
	require.NoError(t, err)

	assert.Equal(t, "payment", spec.Name, "name falls back to the feature directory")
	assert.Equal(t, "Idle", spec.InitialState)
	assert.Len(t, spec.States, 6)
	assert.Equal(t, []ir.TransitionDef{
		{From: "Idle", To: "Processing"},
		{From: "Processing", To: "Paid"},
		{From: "Processing", To: "Failed"},
		{From: "Paid", To: "Refunding"},
		{From: "Refunding", To: "Refunded"},
	}, spec.Transitions)
	assert.Empty(t, ValidateFeature(spec))
}

func TestDecodeFeatureYAMLUnknownField(t *testing.T) {
	_, err := DecodeFeatureYAML([]byte("feature: x\ninitial_state: A\nstatez: [A]\n"), "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statez")
}

func TestDecodeFeatureYAMLEmpty(t *testing.T) {
	_, err := DecodeFeatureYAML(nil, "empty.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file is empty")
}

func TestDecodeFeatureYAMLBadTransitionShape(t *testing.T) {
	_, err := DecodeFeatureYAML([]byte("feature: x\ninitial_state: A\nstates: [A]\ntransitions: nope\n"), "x.yaml")
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "transitions", ce.Field)
	assert.Equal(t, 4, ce.Line)
}

func TestDecodeFeatureYAMLTransitionRequiresEnds(t *testing.T) {
	_, err := DecodeFeatureYAML([]byte("feature: x\ninitial_state: A\nstates: [A]\ntransitions:\n  - from: A\n"), "x.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires from and to")
}
