package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_Feature(t *testing.T) {
	out, err := execute(t, "graph", "orders", "--rules", rulesDir(t), "--highlight", "Confirmed")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))
	assert.Contains(t, out, "[*] --> Pending")
	assert.Contains(t, out, "Pending --> Confirmed")
	assert.Contains(t, out, "class Confirmed highlighted")
	assert.Contains(t, out, "Delivered --> [*]")
}

func TestGraph_FencedJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "graph", "--rules", rulesDir(t), "--fenced")
	require.NoError(t, err)

	var diagrams []FeatureDiagram
	decode(t, out, &diagrams)
	require.Len(t, diagrams, 1)
	assert.Equal(t, "orders", diagrams[0].Feature)
	assert.True(t, strings.HasPrefix(diagrams[0].Mermaid, "```mermaid\n"))
}
