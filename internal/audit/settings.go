package audit

import "time"

// ExternalRule names a rule that is not built in. Script is a file path or
// an http(s) URL; it may be empty when a trusted function is registered
// under ID.
type ExternalRule struct {
	ID     string
	Script string
}

// Settings tunes the built-in rules and external rule execution.
type Settings struct {
	Disabled []string
	Weights  map[string]float64

	LargeAssetBytes   int64
	LargeLibraryBytes int64
	MaxInitialAssets  int
	MinifyMinRatio    float64
	MinifyMinBytes    int64

	External            []ExternalRule
	SandboxTimeout      time.Duration
	SandboxMemoryMB     int
	MaxAssetSourceBytes int64
	ScriptCacheSize     int
	ScriptFetchTimeout  time.Duration
}

// DefaultSettings returns the built-in thresholds.
func DefaultSettings() Settings {
	return Settings{
		LargeAssetBytes:     200 * 1024,
		LargeLibraryBytes:   100 * 1024,
		MaxInitialAssets:    6,
		MinifyMinRatio:      0.1,
		MinifyMinBytes:      2048,
		SandboxTimeout:      30 * time.Second,
		SandboxMemoryMB:     64,
		MaxAssetSourceBytes: 8 << 20,
		ScriptCacheSize:     32,
		ScriptFetchTimeout:  10 * time.Second,
	}
}

func (s Settings) disabled(id string) bool {
	for _, d := range s.Disabled {
		if d == id {
			return true
		}
	}
	return false
}

func (s Settings) weight(id string, fallback float64) float64 {
	if w, ok := s.Weights[id]; ok && w >= 0 {
		return w
	}
	return fallback
}
