package config

import "time"

// DefaultConfig returns configuration with sensible defaults.
// These defaults are used when no config file exists or when
// config file is missing specific fields.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			IgnorePackages: []string{},
		},
		Audits: AuditsConfig{
			Disabled:          []string{},
			Weights:           map[string]float64{},
			LargeAssetBytes:   200 * 1024,
			LargeLibraryBytes: 100 * 1024,
			MaxInitialAssets:  6,
			MinifyMinRatio:    0.1,
			MinifyMinBytes:    2048,
		},
		Sandbox: SandboxConfig{
			Timeout:             30 * time.Second,
			MemoryLimitMB:       64,
			MaxAssetSourceBytes: 8 << 20,
			ScriptCacheSize:     32,
			FetchTimeout:        10 * time.Second,
		},
		History: HistoryConfig{
			Keep: 50,
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

// Merge merges loaded config with defaults.
// Values from loaded config take precedence over defaults.
// Returns a new Config with merged values.
func Merge(loaded, defaults *Config) *Config {
	result := &Config{}

	result.Analysis = mergeAnalysisConfig(loaded.Analysis, defaults.Analysis)
	result.Audits = mergeAuditsConfig(loaded.Audits, defaults.Audits)
	result.Sandbox = mergeSandboxConfig(loaded.Sandbox, defaults.Sandbox)
	result.History = mergeHistoryConfig(loaded.History, defaults.History)
	result.Output = mergeOutputConfig(loaded.Output, defaults.Output)

	return result
}

func mergeAnalysisConfig(loaded, defaults AnalysisConfig) AnalysisConfig {
	// Booleans default to false, so the loaded values are taken as is
	result := loaded

	if loaded.Compression == nil {
		result.Compression = defaults.Compression
	}
	if loaded.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if len(loaded.IgnorePackages) == 0 {
		result.IgnorePackages = defaults.IgnorePackages
	}

	return result
}

func mergeAuditsConfig(loaded, defaults AuditsConfig) AuditsConfig {
	result := AuditsConfig{}

	if len(loaded.Disabled) > 0 {
		result.Disabled = loaded.Disabled
	} else {
		result.Disabled = defaults.Disabled
	}

	// Weights are merged key by key
	result.Weights = make(map[string]float64, len(defaults.Weights)+len(loaded.Weights))
	for id, w := range defaults.Weights {
		result.Weights[id] = w
	}
	for id, w := range loaded.Weights {
		result.Weights[id] = w
	}

	if loaded.LargeAssetBytes != 0 {
		result.LargeAssetBytes = loaded.LargeAssetBytes
	} else {
		result.LargeAssetBytes = defaults.LargeAssetBytes
	}

	if loaded.LargeLibraryBytes != 0 {
		result.LargeLibraryBytes = loaded.LargeLibraryBytes
	} else {
		result.LargeLibraryBytes = defaults.LargeLibraryBytes
	}

	if loaded.MaxInitialAssets != 0 {
		result.MaxInitialAssets = loaded.MaxInitialAssets
	} else {
		result.MaxInitialAssets = defaults.MaxInitialAssets
	}

	if loaded.MinifyMinRatio != 0 {
		result.MinifyMinRatio = loaded.MinifyMinRatio
	} else {
		result.MinifyMinRatio = defaults.MinifyMinRatio
	}

	if loaded.MinifyMinBytes != 0 {
		result.MinifyMinBytes = loaded.MinifyMinBytes
	} else {
		result.MinifyMinBytes = defaults.MinifyMinBytes
	}

	if len(loaded.External) > 0 {
		result.External = loaded.External
	} else {
		result.External = defaults.External
	}

	return result
}

func mergeSandboxConfig(loaded, defaults SandboxConfig) SandboxConfig {
	result := SandboxConfig{}

	if loaded.Timeout != 0 {
		result.Timeout = loaded.Timeout
	} else {
		result.Timeout = defaults.Timeout
	}

	if loaded.MemoryLimitMB != 0 {
		result.MemoryLimitMB = loaded.MemoryLimitMB
	} else {
		result.MemoryLimitMB = defaults.MemoryLimitMB
	}

	if loaded.MaxAssetSourceBytes != 0 {
		result.MaxAssetSourceBytes = loaded.MaxAssetSourceBytes
	} else {
		result.MaxAssetSourceBytes = defaults.MaxAssetSourceBytes
	}

	if loaded.ScriptCacheSize != 0 {
		result.ScriptCacheSize = loaded.ScriptCacheSize
	} else {
		result.ScriptCacheSize = defaults.ScriptCacheSize
	}

	if loaded.FetchTimeout != 0 {
		result.FetchTimeout = loaded.FetchTimeout
	} else {
		result.FetchTimeout = defaults.FetchTimeout
	}

	return result
}

func mergeHistoryConfig(loaded, defaults HistoryConfig) HistoryConfig {
	result := HistoryConfig{}

	if loaded.Enabled != nil {
		result.Enabled = loaded.Enabled
	} else {
		result.Enabled = defaults.Enabled
	}

	if loaded.Keep != 0 {
		result.Keep = loaded.Keep
	} else {
		result.Keep = defaults.Keep
	}

	return result
}

func mergeOutputConfig(loaded, defaults OutputConfig) OutputConfig {
	result := OutputConfig{}

	if loaded.Format != "" {
		result.Format = loaded.Format
	} else {
		result.Format = defaults.Format
	}

	return result
}

// ValidFormats lists the valid values for output format
var ValidFormats = []string{"yaml", "json", "table"}

// IsValidFormat checks if the given output format is valid
func IsValidFormat(format string) bool {
	for _, valid := range ValidFormats {
		if format == valid {
			return true
		}
	}
	return false
}
