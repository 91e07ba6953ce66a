package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, int64(204800), cfg.Audits.LargeAssetBytes)
	assert.Equal(t, int64(102400), cfg.Audits.LargeLibraryBytes)
	assert.Equal(t, 6, cfg.Audits.MaxInitialAssets)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 64, cfg.Sandbox.MemoryLimitMB)
	assert.Equal(t, "table", cfg.Output.Format)
	assert.True(t, cfg.HistoryEnabled())
	assert.True(t, cfg.CompressionEnabled())
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "unknown format", modify: func(c *Config) { c.Output.Format = "xml" }, wantErr: true},
		{name: "negative workers", modify: func(c *Config) { c.Analysis.Workers = -1 }, wantErr: true},
		{name: "negative weight", modify: func(c *Config) { c.Audits.Weights = map[string]float64{"duplicates": -1} }, wantErr: true},
		{name: "zero weight", modify: func(c *Config) { c.Audits.Weights = map[string]float64{"duplicates": 0} }},
		{name: "ratio above one", modify: func(c *Config) { c.Audits.MinifyMinRatio = 1.5 }, wantErr: true},
		{name: "zero max initial assets", modify: func(c *Config) { c.Audits.MaxInitialAssets = 0 }, wantErr: true},
		{name: "external rule without id", modify: func(c *Config) {
			c.Audits.External = []ExternalRuleConfig{{Script: "rule.js"}}
		}, wantErr: true},
		{name: "duplicate external rule", modify: func(c *Config) {
			c.Audits.External = []ExternalRuleConfig{{ID: "x", Script: "a.js"}, {ID: "x", Script: "b.js"}}
		}, wantErr: true},
		{name: "zero sandbox timeout", modify: func(c *Config) { c.Sandbox.Timeout = 0 }, wantErr: true},
		{name: "zero memory limit", modify: func(c *Config) { c.Sandbox.MemoryLimitMB = 0 }, wantErr: true},
		{name: "negative keep", modify: func(c *Config) { c.History.Keep = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	defaults := DefaultConfig()
	defaults.Audits.Weights = map[string]float64{"duplicates": 3, "large-assets": 1}

	t.Run("empty loaded uses all defaults", func(t *testing.T) {
		merged := Merge(&Config{}, defaults)
		assert.Equal(t, defaults.Sandbox, merged.Sandbox)
		assert.Equal(t, defaults.Output.Format, merged.Output.Format)
		assert.Equal(t, defaults.Audits.Weights, merged.Audits.Weights)
	})

	t.Run("loaded values take precedence", func(t *testing.T) {
		off := false
		loaded := &Config{
			Analysis: AnalysisConfig{StrictChunkRelations: true, Compression: &off},
			Audits:   AuditsConfig{Weights: map[string]float64{"duplicates": 5}, MaxInitialAssets: 10},
			Sandbox:  SandboxConfig{Timeout: 2 * time.Second},
			History:  HistoryConfig{Enabled: &off},
			Output:   OutputConfig{Format: "json"},
		}
		merged := Merge(loaded, defaults)

		assert.True(t, merged.Analysis.StrictChunkRelations)
		assert.False(t, merged.CompressionEnabled())
		assert.False(t, merged.HistoryEnabled())
		assert.Equal(t, map[string]float64{"duplicates": 5, "large-assets": 1}, merged.Audits.Weights)
		assert.Equal(t, 10, merged.Audits.MaxInitialAssets)
		assert.Equal(t, 2*time.Second, merged.Sandbox.Timeout)
		assert.Equal(t, "json", merged.Output.Format)

		// Unset values should use defaults
		assert.Equal(t, defaults.Sandbox.MemoryLimitMB, merged.Sandbox.MemoryLimitMB)
		assert.Equal(t, defaults.Audits.LargeAssetBytes, merged.Audits.LargeAssetBytes)
	})
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)

	t.Run("missing file returns defaults", func(t *testing.T) {
		cfg, err := LoadFromPath(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file is merged", func(t *testing.T) {
		content := `
analysis:
  html_exclusive_initial: true
  ignore_packages: ["@babel/*"]
audits:
  disabled: [source-maps]
  external:
    - id: no-polyfills
      script: rules/polyfills.js
sandbox:
  timeout: 5s
output:
  format: yaml
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadFromPath(path)
		require.NoError(t, err)
		assert.True(t, cfg.Analysis.HTMLExclusiveInitial)
		assert.Equal(t, []string{"@babel/*"}, cfg.Analysis.IgnorePackages)
		assert.Equal(t, 5*time.Second, cfg.Sandbox.Timeout)
		assert.Equal(t, "yaml", cfg.Output.Format)

		s := cfg.AuditSettings()
		assert.Equal(t, []string{"source-maps"}, s.Disabled)
		require.Len(t, s.External, 1)
		assert.Equal(t, "no-polyfills", s.External[0].ID)
		assert.Equal(t, "rules/polyfills.js", s.External[0].Script)
		assert.Equal(t, 5*time.Second, s.SandboxTimeout)
		assert.Equal(t, int64(102400), s.LargeLibraryBytes)
	})

	t.Run("invalid value is rejected", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("output:\n  format: xml\n"), 0644))
		_, err := LoadFromPath(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("audits: [unclosed"), 0644))
		_, err := LoadFromPath(path)
		assert.Error(t, err)
	})
}

func TestFindConfigDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	_, err := FindConfigDir(nested)
	assert.ErrorIs(t, err, ErrConfigNotFound)

	configDir, err := EnsureConfigDir(root)
	require.NoError(t, err)

	found, err := FindConfigDir(nested)
	require.NoError(t, err)
	assert.Equal(t, configDir, found)
}

func TestSaveDefault(t *testing.T) {
	dir := t.TempDir()

	path, err := SaveDefault(dir)
	require.NoError(t, err)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sandbox, cfg.Sandbox)

	_, err = SaveDefault(dir)
	assert.Error(t, err, "second save must not overwrite")
}

func TestLoadAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	_, err := SaveDefault(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("BSCOPE_SANDBOX_MEMORY_MB=128\nBSCOPE_STRICT_CHUNKS=true\n"), 0644))
	t.Setenv(EnvSandboxTimeout, "750ms")
	t.Setenv(EnvHistoryEnabled, "false")
	// .env never overrides variables already set
	t.Setenv(EnvStrictChunks, "false")
	t.Cleanup(func() { os.Unsetenv(EnvSandboxMemoryMB) })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, cfg.Sandbox.Timeout)
	assert.Equal(t, 128, cfg.Sandbox.MemoryLimitMB)
	assert.False(t, cfg.Analysis.StrictChunkRelations)
	assert.False(t, cfg.HistoryEnabled())
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	t.Setenv(EnvSandboxTimeout, "soon")
	err := ApplyEnv(DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
