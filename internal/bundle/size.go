// Package bundle defines the normalized dependency graph of one build:
// assets, chunks, modules, packages and entry points cross-referenced by
// integer refs.
package bundle

// Size is a triple of non-negative byte counts.
type Size struct {
	Raw    int64 `json:"raw" yaml:"raw"`
	Gzip   int64 `json:"gzip" yaml:"gzip"`
	Brotli int64 `json:"brotli" yaml:"brotli"`
}

// Add returns s + o component-wise.
func (s Size) Add(o Size) Size {
	return Size{Raw: s.Raw + o.Raw, Gzip: s.Gzip + o.Gzip, Brotli: s.Brotli + o.Brotli}
}

// Sub returns s - o component-wise, clamped at zero.
func (s Size) Sub(o Size) Size {
	return Size{Raw: clamp(s.Raw - o.Raw), Gzip: clamp(s.Gzip - o.Gzip), Brotli: clamp(s.Brotli - o.Brotli)}
}

// Portion returns the share of s that raw bytes represent, keeping the
// compression ratio of s. Used to size a module slice of a compressed asset.
func (s Size) Portion(raw int64) Size {
	if raw <= 0 {
		return Size{}
	}
	if s.Raw <= 0 {
		return Size{Raw: raw}
	}
	ratio := float64(raw) / float64(s.Raw)
	return Size{
		Raw:    raw,
		Gzip:   int64(float64(s.Gzip)*ratio + 0.5),
		Brotli: int64(float64(s.Brotli)*ratio + 0.5),
	}
}

// IsZero reports whether all components are zero.
func (s Size) IsZero() bool {
	return s.Raw == 0 && s.Gzip == 0 && s.Brotli == 0
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
