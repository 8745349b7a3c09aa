package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPolicy_ReplacesMatchingBrand(t *testing.T) {
	path := writePolicy(t, `
brands:
  - name: Starbucks
    size_allowlist: [SHORT, TALL]
`)

	merged, err := LoadPolicy(path, DefaultBrands())
	require.NoError(t, err)
	require.Len(t, merged, 2)

	assert.Equal(t, []string{"SHORT", "TALL"}, merged[0].SizeAllowlist)
	// Label and feed survive when the override omits them.
	assert.Equal(t, "스타벅스", merged[0].Label)
	assert.Equal(t, "feeds/starbucks.json", merged[0].Feed)
}

func TestLoadPolicy_AppendsUnknownBrand(t *testing.T) {
	path := writePolicy(t, `
brands:
  - name: Paik
    label: 빽다방
    size_allowlist: [L]
`)

	merged, err := LoadPolicy(path, DefaultBrands())
	require.NoError(t, err)
	require.Len(t, merged, 3)
	assert.Equal(t, "Paik", merged[2].Name)
	assert.Equal(t, "빽다방", merged[2].Label)
}

func TestLoadPolicy_DoesNotMutateInput(t *testing.T) {
	path := writePolicy(t, `
brands:
  - name: MegaCoffee
    size_allowlist: [MEGA, GRANDE]
`)

	original := DefaultBrands()
	_, err := LoadPolicy(path, original)
	require.NoError(t, err)
	assert.Equal(t, []string{"MEGA"}, original[1].SizeAllowlist)
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"), DefaultBrands())
	assert.Error(t, err)
}

func TestLoadPolicy_Malformed(t *testing.T) {
	path := writePolicy(t, "brands: [not, a, mapping")

	_, err := LoadPolicy(path, DefaultBrands())
	assert.Error(t, err)
}
