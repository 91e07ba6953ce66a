package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/graph"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// ConfigFileName is the name of the bscope configuration file
const ConfigFileName = "config.yaml"

// ConfigDirName is the name of the bscope configuration directory
const ConfigDirName = ".bscope"

// Config holds all bscope configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Audits   AuditsConfig   `yaml:"audits"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	History  HistoryConfig  `yaml:"history"`
	Output   OutputConfig   `yaml:"output"`
}

// AnalysisConfig holds configuration for building the dependency graph
type AnalysisConfig struct {
	IncludeAuxiliaryFiles bool     `yaml:"include_auxiliary_files"`
	HTMLExclusiveInitial  bool     `yaml:"html_exclusive_initial"`
	StrictChunkRelations  bool     `yaml:"strict_chunk_relations"`
	Compression           *bool    `yaml:"compression"`
	Workers               int      `yaml:"workers"`
	IgnorePackages        []string `yaml:"ignore_packages"`
}

// AuditsConfig holds rule thresholds, weights and external rules
type AuditsConfig struct {
	Disabled          []string             `yaml:"disabled"`
	Weights           map[string]float64   `yaml:"weights"`
	LargeAssetBytes   int64                `yaml:"large_asset_bytes"`
	LargeLibraryBytes int64                `yaml:"large_library_bytes"`
	MaxInitialAssets  int                  `yaml:"max_initial_assets"`
	MinifyMinRatio    float64              `yaml:"minify_min_ratio"`
	MinifyMinBytes    int64                `yaml:"minify_min_bytes"`
	External          []ExternalRuleConfig `yaml:"external"`
}

// ExternalRuleConfig names a rule that is not built in. Script is a file
// path or an http(s) URL.
type ExternalRuleConfig struct {
	ID     string `yaml:"id"`
	Script string `yaml:"script"`
}

// SandboxConfig holds limits for untrusted rule scripts
type SandboxConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	MemoryLimitMB       int           `yaml:"memory_limit_mb"`
	MaxAssetSourceBytes int64         `yaml:"max_asset_source_bytes"`
	ScriptCacheSize     int           `yaml:"script_cache_size"`
	FetchTimeout        time.Duration `yaml:"fetch_timeout"`
}

// HistoryConfig holds configuration for the report history store
type HistoryConfig struct {
	Enabled *bool `yaml:"enabled"`
	Keep    int   `yaml:"keep"`
}

// OutputConfig holds configuration for output formatting
type OutputConfig struct {
	Format string `yaml:"format"`
}

// ErrConfigNotFound is returned when no config file can be found
var ErrConfigNotFound = errors.New("config file not found")

// ErrInvalidConfig is returned when config validation fails
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads config from .bscope/config.yaml, falling back to defaults.
// It searches for the config directory starting from workDir and walking up
// the directory tree. A .env file in workDir is loaded first and BSCOPE_*
// variables are applied last.
func Load(workDir string) (*Config, error) {
	if err := LoadDotEnv(workDir); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if configDir, err := FindConfigDir(workDir); err == nil {
		loaded, err := LoadFromPath(filepath.Join(configDir, ConfigFileName))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath reads config from a specific path.
// Merges loaded config with defaults and validates the result.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	loaded := &Config{}
	if err := yaml.Unmarshal(data, loaded); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	merged := Merge(loaded, DefaultConfig())
	if err := Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// FindConfigDir locates the .bscope directory by walking up from startDir.
// Returns the path to the .bscope directory if found.
func FindConfigDir(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	currentDir := absDir
	for {
		configDir := filepath.Join(currentDir, ConfigDirName)
		info, err := os.Stat(configDir)
		if err == nil && info.IsDir() {
			return configDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", ErrConfigNotFound
		}
		currentDir = parentDir
	}
}

// EnsureConfigDir creates the .bscope directory if it doesn't exist.
// Returns the path to the .bscope directory.
func EnsureConfigDir(workDir string) (string, error) {
	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	configDir := filepath.Join(absDir, ConfigDirName)

	info, err := os.Stat(configDir)
	if err == nil {
		if info.IsDir() {
			return configDir, nil
		}
		return "", fmt.Errorf("%s exists but is not a directory", configDir)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	return configDir, nil
}

// Validate checks that config values are valid.
// Returns an error if validation fails.
func Validate(cfg *Config) error {
	if !IsValidFormat(cfg.Output.Format) {
		return fmt.Errorf("%w: format must be one of %v, got %q",
			ErrInvalidConfig, ValidFormats, cfg.Output.Format)
	}

	if cfg.Analysis.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d",
			ErrInvalidConfig, cfg.Analysis.Workers)
	}

	for id, w := range cfg.Audits.Weights {
		if w < 0 {
			return fmt.Errorf("%w: weight of %s must be non-negative, got %f",
				ErrInvalidConfig, id, w)
		}
	}

	if cfg.Audits.LargeAssetBytes <= 0 || cfg.Audits.LargeLibraryBytes <= 0 {
		return fmt.Errorf("%w: large_asset_bytes and large_library_bytes must be positive",
			ErrInvalidConfig)
	}

	if cfg.Audits.MaxInitialAssets <= 0 {
		return fmt.Errorf("%w: max_initial_assets must be positive, got %d",
			ErrInvalidConfig, cfg.Audits.MaxInitialAssets)
	}

	if cfg.Audits.MinifyMinRatio < 0 || cfg.Audits.MinifyMinRatio > 1 {
		return fmt.Errorf("%w: minify_min_ratio must be between 0 and 1, got %f",
			ErrInvalidConfig, cfg.Audits.MinifyMinRatio)
	}

	seen := make(map[string]struct{})
	for _, x := range cfg.Audits.External {
		if x.ID == "" {
			return fmt.Errorf("%w: external rule without id", ErrInvalidConfig)
		}
		if _, dup := seen[x.ID]; dup {
			return fmt.Errorf("%w: external rule %q listed twice", ErrInvalidConfig, x.ID)
		}
		seen[x.ID] = struct{}{}
	}

	if cfg.Sandbox.Timeout <= 0 {
		return fmt.Errorf("%w: sandbox timeout must be positive, got %s",
			ErrInvalidConfig, cfg.Sandbox.Timeout)
	}

	if cfg.Sandbox.MemoryLimitMB <= 0 {
		return fmt.Errorf("%w: memory_limit_mb must be positive, got %d",
			ErrInvalidConfig, cfg.Sandbox.MemoryLimitMB)
	}

	if cfg.History.Keep < 0 {
		return fmt.Errorf("%w: keep must be non-negative, got %d",
			ErrInvalidConfig, cfg.History.Keep)
	}

	return nil
}

// SaveDefault writes the default configuration to .bscope/config.yaml in
// workDir. Creates the .bscope directory if it doesn't exist.
func SaveDefault(workDir string) (string, error) {
	configDir, err := EnsureConfigDir(workDir)
	if err != nil {
		return "", err
	}

	configPath := filepath.Join(configDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil {
		return "", fmt.Errorf("config file already exists: %s", configPath)
	}

	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("marshaling config: %w", err)
	}

	header := "# bscope configuration\n\n"
	data = append([]byte(header), data...)

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}

	return configPath, nil
}

// AuditSettings converts the audit and sandbox sections for the engine.
func (c *Config) AuditSettings() audit.Settings {
	s := audit.Settings{
		Disabled:            c.Audits.Disabled,
		Weights:             c.Audits.Weights,
		LargeAssetBytes:     c.Audits.LargeAssetBytes,
		LargeLibraryBytes:   c.Audits.LargeLibraryBytes,
		MaxInitialAssets:    c.Audits.MaxInitialAssets,
		MinifyMinRatio:      c.Audits.MinifyMinRatio,
		MinifyMinBytes:      c.Audits.MinifyMinBytes,
		SandboxTimeout:      c.Sandbox.Timeout,
		SandboxMemoryMB:     c.Sandbox.MemoryLimitMB,
		MaxAssetSourceBytes: c.Sandbox.MaxAssetSourceBytes,
		ScriptCacheSize:     c.Sandbox.ScriptCacheSize,
		ScriptFetchTimeout:  c.Sandbox.FetchTimeout,
	}
	for _, x := range c.Audits.External {
		s.External = append(s.External, audit.ExternalRule{ID: x.ID, Script: x.Script})
	}
	return s
}

// Flags returns the graph builder flags of the analysis section.
func (c *Config) Flags() stats.Flags {
	return stats.Flags{
		IncludeAuxiliaryFiles: c.Analysis.IncludeAuxiliaryFiles,
		HTMLExclusiveInitial:  c.Analysis.HTMLExclusiveInitial,
		StrictChunkRelations:  c.Analysis.StrictChunkRelations,
	}
}

// GraphOptions returns builder options reading assets from fs.
func (c *Config) GraphOptions(fs afero.Fs) graph.Options {
	return graph.Options{
		Fs:             fs,
		Workers:        c.Analysis.Workers,
		Compression:    c.CompressionEnabled(),
		IgnorePackages: c.Analysis.IgnorePackages,
		Flags:          c.Flags(),
	}
}

// CompressionEnabled reports whether gzip and brotli sizes are computed.
func (c *Config) CompressionEnabled() bool {
	return c.Analysis.Compression == nil || *c.Analysis.Compression
}

// HistoryEnabled reports whether reports are saved to the history store.
func (c *Config) HistoryEnabled() bool {
	return c.History.Enabled == nil || *c.History.Enabled
}
