package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
	"github.com/roach88/warden/internal/testutil"
)

func TestLint_Files(t *testing.T) {
	root := testutil.NewTree(t, weakHashTree)
	file := filepath.Join(root, "app", "hash.py")

	out, err := execute(t, "--format", "json", "lint", file, filepath.Join(root, "missing.py"), "--rules", root)
	require.NoError(t, err)

	var result LintResult
	decode(t, out, &result)
	assert.Equal(t, 1, result.Files)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "SEC004", result.Findings[0].RuleID)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ir.FileErrorRead, result.Errors[0].Kind)
}

func TestLint_FailOn(t *testing.T) {
	root := testutil.NewTree(t, weakHashTree)

	_, err := execute(t, "lint", filepath.Join(root, "app", "hash.py"), "--rules", root, "--fail-on", "medium")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestLint_SeverityOverride(t *testing.T) {
	root := testutil.NewTree(t, weakHashTree)
	rules := testutil.NewTree(t, map[string]string{
		"warden.cue": `rules: disable: ["SEC004"]` + "\n",
	})

	out, err := execute(t, "lint", filepath.Join(root, "app", "hash.py"), "--rules", rules, "--fail-on", "low")
	require.NoError(t, err)
	assert.Contains(t, out, "no findings")
}
