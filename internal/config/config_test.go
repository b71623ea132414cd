package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/warden/internal/ir"
)

func TestLoadDefaults(t *testing.T) {
	cfg, path, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	want := DefaultConfig()
	assert.Empty(t, path)
	assert.Equal(t, want.Workers, cfg.Workers)
	assert.Equal(t, want.MaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, want.Database, cfg.Database)
	assert.Equal(t, "high", cfg.FailOn)
	assert.Equal(t, "text", cfg.Format)
	assert.Empty(t, cfg.SkipDirs)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".warden.yaml"), []byte(`
workers: 3
max_file_size: 2048
skip_dirs: [generated, fixtures]
fail_on: medium
`), 0o644))

	cfg, path, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ".warden.yaml"), path)
	assert.Equal(t, 3, cfg.Workers)
	assert.EqualValues(t, 2048, cfg.MaxFileSize)
	assert.Equal(t, []string{"generated", "fixtures"}, cfg.SkipDirs)
	assert.Equal(t, "medium", cfg.FailOn)
	assert.Equal(t, 100, cfg.MaxCycles, "unset keys keep defaults")
}

func TestLoadTOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.toml")
	require.NoError(t, os.WriteFile(path, []byte("max_cycles = 7\nformat = \"json\"\n"), 0o644))

	cfg, resolved, err := Load(LoadOptions{File: path})
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, 7, cfg.MaxCycles)
	assert.Equal(t, "json", cfg.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".warden.yaml"), []byte("workers: 3\n"), 0o644))
	t.Setenv("WARDEN_WORKERS", "9")
	t.Setenv("WARDEN_SKIP_DIRS", "gen,tmp")

	cfg, _, err := Load(LoadOptions{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, []string{"gen", "tmp"}, cfg.SkipDirs)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".warden.yaml"), []byte("fail_on: critical\n"), 0o644))

	_, _, err := Load(LoadOptions{Dir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail_on")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"defaults", func(*Config) {}, ""},
		{"zero workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"negative size", func(c *Config) { c.MaxFileSize = -1 }, "max_file_size"},
		{"zero cycles", func(c *Config) { c.MaxCycles = 0 }, "max_cycles"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"fail none", func(c *Config) { c.FailOn = "none" }, ""},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFailThreshold(t *testing.T) {
	cfg := DefaultConfig()
	sev, ok := cfg.FailThreshold()
	assert.True(t, ok)
	assert.Equal(t, ir.SeverityHigh, sev)

	cfg.FailOn = "none"
	_, ok = cfg.FailThreshold()
	assert.False(t, ok)
}
