package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/compiler"
	"github.com/roach88/warden/internal/ir"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func orderSpec(name string) *ir.FeatureSpec {
	return &ir.FeatureSpec{
		Name:         name,
		InitialState: "Pending",
		States:       []ir.StateDef{{Name: "Pending"}, {Name: "Paid"}, {Name: "Shipped", Terminal: true}},
		Transitions: []ir.TransitionDef{
			{From: "Pending", To: "Paid"},
			{From: "Paid", To: "Shipped"},
		},
	}
}

const paymentYAML = `
initial: Idle
states: [Idle, Processing, Paid, Failed]
transitions:
  Idle: [Processing]
  Processing: [Paid, Failed]
  Failed: [Idle]
`

const ordersYAML = `
feature: orders
initial_state: Pending
states:
  Pending: {}
  Paid: {}
  Shipped:
    terminal: true
transitions:
  - {from: Pending, to: Paid}
  - {from: Paid, to: Shipped}
`

const projectCUE = `
layers: [
	{name: "routes", paths: ["app/routes/**"], allow: ["services"]},
	{name: "services", paths: ["app/services/**"], allow: ["database"]},
	{name: "database", paths: ["app/db/**"]},
]
registry: trusted: ["internal-sdk"]
rules: {
	disable: ["AP002"]
	severity: SEC004: "low"
}
feature: signup: {
	initial_state: "Started"
	states: {
		Started: {}
		Verified: terminal: true
	}
	transitions: [{from: "Started", to: "Verified"}]
}
`

func TestNew(t *testing.T) {
	store, err := New(orderSpec("orders"), orderSpec("billing"))
	require.NoError(t, err)

	assert.Equal(t, []string{"billing", "orders"}, store.FeatureNames())
	assert.Len(t, store.Features(), 2)
	assert.Nil(t, store.Layers())

	m, err := store.NewMachine("orders")
	require.NoError(t, err)
	assert.Equal(t, "Pending", m.Current())
	require.NoError(t, m.Transition("Paid"))
}

func TestNewNaturalOrder(t *testing.T) {
	store, err := New(orderSpec("step10"), orderSpec("step2"), orderSpec("step1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"step1", "step2", "step10"}, store.FeatureNames())
}

func TestNewDuplicateFeature(t *testing.T) {
	a := orderSpec("orders")
	a.Source = "features/a.yaml"
	b := orderSpec("orders")

	_, err := New(a, b)
	require.Error(t, err)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.HasCode(compiler.ErrDuplicateFeature))
	assert.Contains(t, err.Error(), "features/a.yaml")
}

func TestNewAllOrNothing(t *testing.T) {
	bad := orderSpec("broken")
	bad.InitialState = "Nowhere"

	store, err := New(orderSpec("orders"), bad)
	require.Error(t, err)
	assert.Nil(t, store)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.HasCode(compiler.ErrInitialStateUndeclared))
	assert.Contains(t, err.Error(), "feature.broken.")
}

func TestUnknownFeature(t *testing.T) {
	store, err := New(orderSpec("orders"))
	require.NoError(t, err)

	_, err = store.Feature("refunds")
	assert.True(t, errors.Is(err, ErrUnknownFeature))
	_, err = store.NewMachine("refunds")
	assert.ErrorIs(t, err, ErrUnknownFeature)
	assert.Contains(t, err.Error(), `"refunds"`)
}

func TestNewWithProjectUnknownRule(t *testing.T) {
	cfg := &ir.ProjectConfig{Rules: ir.RuleSettings{Disable: []string{"SEC999"}}}
	_, err := NewWithProject(cfg)
	require.Error(t, err)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.HasCode(compiler.ErrUnknownRule))
}

func TestKnownRuleIDs(t *testing.T) {
	ids := KnownRuleIDs()
	for _, id := range []string{"SEC001", "SEC008", "AP004", "DEP001", "DEP002", "LAYER001", "LAYER002", "CYCLE001"} {
		assert.True(t, ids[id], id)
	}
	assert.False(t, ids["SEC999"])
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ProjectFile, projectCUE)
	writeFile(t, dir, "features/orders.yaml", ordersYAML)
	writeFile(t, dir, "app/features/payment/state.yaml", paymentYAML)
	writeFile(t, dir, "features/README.md", "not a feature")

	store, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "payment", "signup"}, store.FeatureNames())
	assert.Equal(t, []string{
		"warden.cue",
		"app/features/payment/state.yaml",
		"features/orders.yaml",
	}, store.Sources())

	require.NotNil(t, store.Layers())
	assert.Len(t, store.Layers().Layers, 3)
	assert.Equal(t, []string{"internal-sdk"}, store.Registry().Trusted)
	assert.True(t, store.RuleSettings().Disabled("AP002"))

	rules := store.PatternRules()
	for _, r := range rules {
		assert.NotEqual(t, "AP002", r.ID)
		if r.ID == "SEC004" {
			assert.Equal(t, ir.SeverityLow, r.Severity)
		}
	}

	spec, err := store.Feature("payment")
	require.NoError(t, err)
	assert.Equal(t, "app/features/payment/state.yaml", spec.Source)
}

func TestLoadWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/payment.yaml", "feature: payment\n"+paymentYAML)

	store, err := Load(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, store.Warnings(), "Paid is a non-terminal dead end")
}

func TestLoadCUEFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/flows.cue", `
feature: a: {
	initial_state: "X"
	states: {X: {}, Y: terminal: true}
	transitions: [{from: "X", to: "Y"}]
}
feature: b: {
	initial_state: "X"
	states: {X: {}, Y: terminal: true}
	transitions: [{from: "X", to: "Y"}]
}
`)

	store, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, store.FeatureNames())
	assert.Equal(t, &ir.ProjectConfig{}, store.Project())
}

func TestLoadDuplicateAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/orders.yaml", ordersYAML)
	writeFile(t, dir, "features/more/orders.yml", ordersYAML)

	_, err := Load(dir)
	require.Error(t, err)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.True(t, ce.HasCode(compiler.ErrDuplicateFeature))
	assert.Equal(t, dir, ce.Source)
}

func TestLoadCompileErrorRegistersNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "features/orders.yaml", ordersYAML)
	writeFile(t, dir, "features/broken.yaml", "feature: broken\nstates: [A\n")

	store, err := Load(dir)
	require.Error(t, err)
	assert.Nil(t, store)

	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadMissingDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	var ce *compiler.ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestLoadEmptyDir(t *testing.T) {
	store, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, store.FeatureNames())
	assert.Len(t, store.PatternRules(), 12)
}
