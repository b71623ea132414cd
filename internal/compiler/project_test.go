package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func TestCompileProject(t *testing.T) {
	src := []byte(`
layers: [
	{name: "routes", paths: ["app/routes"], allow: ["service", "commons"]},
	{name: "service", paths: ["app/service"], allow: ["models", "commons"]},
	{name: "models", paths: ["app/models"], allow: ["commons"]},
	{name: "commons", paths: ["app/commons"]},
]
registry: {
	trusted: ["internal-sdk"]
	allow: ["reqeusts-mock"]
}
rules: {
	disable: ["AP003"]
	severity: SEC004: "low"
}
`)

	cfg, err := CompileProject(src, "warden.cue")
	require.NoError(t, err)

	require.NotNil(t, cfg.Layers)
	require.Len(t, cfg.Layers.Layers, 4)
	assert.Equal(t, []string{"service", "commons"}, cfg.Layers.Layers[0].Allow)
	assert.Empty(t, cfg.Layers.Layers[3].Allow)
	assert.Equal(t, []string{"internal-sdk"}, cfg.Registry.Trusted)
	assert.Equal(t, []string{"AP003"}, cfg.Rules.Disable)
	assert.Equal(t, ir.SeverityLow, cfg.Rules.Severity["SEC004"])
	assert.Empty(t, ValidateProject(cfg, nil))
}

func TestCompileProjectEmpty(t *testing.T) {
	cfg, err := CompileProject([]byte(""), "warden.cue")
	require.NoError(t, err)
	assert.Nil(t, cfg.Layers)
}

func TestCompileProjectSchemaViolation(t *testing.T) {
	_, err := CompileProject([]byte(`rules: severity: SEC004: "critical"`), "warden.cue")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "SEC004")
}

func TestCompileProjectUnknownField(t *testing.T) {
	_, err := CompileProject([]byte(`layerz: []`), "warden.cue")
	require.Error(t, err)
}
