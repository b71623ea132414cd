package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalReport_Canonical(t *testing.T) {
	r := createTestReport("/srv/app")

	a, err := marshalReport(r)
	require.NoError(t, err)
	b, err := marshalReport(createTestReport("/srv/app"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, strings.Contains(a, "\n"), "canonical JSON has no whitespace")
	// Keys are sorted, so "errors" precedes "files".
	assert.Less(t, strings.Index(a, `"errors"`), strings.Index(a, `"files"`))
}

func TestUnmarshalReport_Roundtrip(t *testing.T) {
	r := createTestReport("/srv/app")

	data, err := marshalReport(r)
	require.NoError(t, err)
	got, err := unmarshalReport(data)
	require.NoError(t, err)

	assert.Equal(t, r.Root, got.Root)
	assert.Equal(t, r.Fingerprint, got.Fingerprint)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, r.Findings[0], got.Findings[0])
	assert.Equal(t, 1, got.Stats.ByRule["SEC004"])
}

func TestUnmarshalReport_InvalidJSON(t *testing.T) {
	_, err := unmarshalReport("{not json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal report")
}
