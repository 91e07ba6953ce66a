// Package audit scores one entry point of a build.
//
// Built-in rules share a read-only View of the entry point and run
// concurrently. Cache invalidation is computed separately because it needs
// a baseline build. Rules that are not built in resolve to a trusted Go
// function registered with the engine or to an untrusted script executed in
// the sandbox. Every rule failure is logged and the rule contributes no
// result.
package audit

import (
	"context"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// View is the read-only data a rule sees for one entry point.
type View struct {
	Name          string
	Family        stats.Family
	PublicPath    string
	Assets        []*bundle.Asset
	Chunks        []*bundle.Chunk
	InitialChunks []*bundle.Chunk
	Packages      []*bundle.PackageGroup
	Size          bundle.Size
	InitialSize   bundle.Size
	// EntryCount is the number of entry points in the build.
	EntryCount int
	Baseline   *stats.Baseline
	// Cache memoizes per-asset computations for the whole parse.
	Cache *Cache
	RunID string
}

// InitialAssets returns the non-intermediate assets of initial chunks.
func (v *View) InitialAssets() []*bundle.Asset {
	seen := make(map[*bundle.Asset]struct{})
	var out []*bundle.Asset
	for _, c := range v.InitialChunks {
		for _, a := range c.Assets {
			if _, dup := seen[a]; dup || a.Intermediate {
				continue
			}
			seen[a] = struct{}{}
			out = append(out, a)
		}
	}
	return out
}

// Libraries returns the third-party package groups that are not ignored.
func (v *View) Libraries() []*bundle.PackageGroup {
	var out []*bundle.PackageGroup
	for _, g := range v.Packages {
		if g.Package.ThirdParty() && !g.Package.Ignored {
			out = append(out, g)
		}
	}
	return out
}

// Finding is what a rule reports. A nil Finding means the rule does not
// apply to the entry point.
type Finding struct {
	// Score is the numeric score in [0,1].
	Score       float64
	Throttle    *bundle.Throttle
	Detail      *bundle.Detail
	Description string
}

// CheckFunc evaluates a rule against an entry point.
type CheckFunc func(ctx context.Context, v *View, s Settings) (*Finding, error)

// Rule is a built-in audit rule.
type Rule struct {
	ID          string
	Title       string
	Description string
	Link        string
	Weight      float64
	Check       CheckFunc
}

func (r Rule) result(f *Finding, weight float64) bundle.AuditResult {
	score := clamp01(f.Score)
	desc := r.Description
	if f.Description != "" {
		desc = f.Description
	}
	return bundle.AuditResult{
		ID:           r.ID,
		Title:        r.Title,
		Description:  desc,
		Link:         r.Link,
		Detail:       f.Detail,
		Score:        bundle.LevelFor(score),
		Weight:       weight,
		NumericScore: &score,
		Throttle:     f.Throttle,
	}
}
