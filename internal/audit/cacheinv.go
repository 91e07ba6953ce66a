package audit

import (
	"github.com/dustin/go-humanize"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// Invalidation is the outcome of comparing an entry point against a
// baseline build.
type Invalidation struct {
	// Rate is the share of baseline bytes whose asset names disappeared.
	Rate        float64
	Invalidated []stats.BaselineAsset
	// Renamed maps a vanished baseline name to the current asset carrying
	// the same content hash.
	Renamed map[string]string
}

// CompareBaseline computes the invalidation of the current asset names
// against base. When base lists assets for the named entry point only those
// are compared. Baselines without sizes fall back to counting assets.
func CompareBaseline(name string, current []*bundle.Asset, base *stats.Baseline) Invalidation {
	inv := Invalidation{Renamed: make(map[string]string)}
	if base == nil {
		return inv
	}

	candidates := base.Assets
	if names, ok := base.EntryPoints[name]; ok {
		byName := make(map[string]stats.BaselineAsset, len(base.Assets))
		for _, a := range base.Assets {
			byName[a.Name] = a
		}
		candidates = make([]stats.BaselineAsset, 0, len(names))
		for _, n := range names {
			a, ok := byName[n]
			if !ok {
				a = stats.BaselineAsset{Name: n}
			}
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return inv
	}

	names := make(map[string]struct{}, len(current))
	hashes := make(map[string]string, len(current))
	for _, a := range current {
		names[a.Name] = struct{}{}
		if a.Hash != "" {
			hashes[a.Hash] = a.Name
		}
	}

	var total, lost int64
	for _, a := range candidates {
		total += a.Size
		if _, kept := names[a.Name]; kept {
			continue
		}
		lost += a.Size
		inv.Invalidated = append(inv.Invalidated, a)
		if a.Hash == "" {
			continue
		}
		if renamed, ok := hashes[a.Hash]; ok {
			inv.Renamed[a.Name] = renamed
		}
	}

	if total > 0 {
		inv.Rate = float64(lost) / float64(total)
	} else {
		inv.Rate = float64(len(inv.Invalidated)) / float64(len(candidates))
	}
	return inv
}

const cacheInvalidationTitle = "Keep asset names stable"

// CacheInvalidation scores how much of the baseline's cached bytes the
// current build invalidates.
func CacheInvalidation(v *View, weight float64) bundle.AuditResult {
	inv := CompareBaseline(v.Name, v.Assets, v.Baseline)
	score := clamp01(1 - inv.Rate)

	res := bundle.AuditResult{
		ID:           CacheInvalidationID,
		Title:        cacheInvalidationTitle,
		Description:  "Assets of the previous build that changed name must be downloaded again.",
		Score:        bundle.LevelFor(score),
		Weight:       weight,
		NumericScore: &score,
	}
	if len(inv.Invalidated) == 0 {
		return res
	}

	detail := &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Asset", "Size", "Renamed to"}}
	for _, a := range inv.Invalidated {
		detail.Rows = append(detail.Rows, []string{a.Name, humanize.IBytes(uint64(a.Size)), inv.Renamed[a.Name]})
	}
	res.Detail = detail
	if len(inv.Renamed) > 0 {
		res.Description = humanize.Comma(int64(len(inv.Renamed))) + " assets changed name without a content change."
	}
	return res
}
