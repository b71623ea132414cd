package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/compiler"
)

func TestNewTree(t *testing.T) {
	root := NewTree(t, map[string]string{
		"app/main.py":      "print('hi')\n",
		"app/lib/util.py":  "",
		"requirements.txt": "flask\n",
	})

	data, err := os.ReadFile(filepath.Join(root, "app", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
	assert.FileExists(t, filepath.Join(root, "app", "lib", "util.py"))

	RemoveFile(t, root, "app/main.py")
	assert.NoFileExists(t, filepath.Join(root, "app", "main.py"))
}

func TestOrdersFixturesAgree(t *testing.T) {
	spec, err := compiler.DecodeFeatureYAML([]byte(OrdersYAML), "orders.yaml")
	require.NoError(t, err)
	spec.Source = ""
	assert.Equal(t, OrdersFeature(), spec)
	assert.Empty(t, compiler.ValidateFeature(spec))
	assert.Empty(t, compiler.ValidateFeature(PaymentFeature()))
}
