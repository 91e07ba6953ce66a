package report

import (
	"time"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/graph"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// Meta identifies a report.
type Meta struct {
	ID          string
	Project     string
	GeneratedAt time.Time
}

// Build converts a graph into its wire form.
func Build(res *graph.Result, meta Meta) *Report {
	if meta.GeneratedAt.IsZero() {
		meta.GeneratedAt = time.Now().UTC()
	}
	r := &Report{
		Version:     SchemaVersion,
		ID:          meta.ID,
		Project:     meta.Project,
		Family:      res.Family,
		GeneratedAt: meta.GeneratedAt,
		PublicPath:  res.PublicPath,
		Score:       res.Score,
		EntryPoints: make([]EntryPoint, 0, len(res.EntryPoints)),
		Assets:      make([]Asset, 0, len(res.Assets)),
		Chunks:      make([]Chunk, 0, len(res.Chunks)),
		Packages:    make([]Package, 0, len(res.Packages)),
	}

	for _, a := range res.Assets {
		r.Assets = append(r.Assets, Asset{
			Ref:          a.Ref,
			Name:         a.Name,
			Type:         a.Type,
			Size:         a.Size,
			Chunks:       chunkRefs(a.Chunks),
			Modules:      len(a.Modules),
			Intermediate: a.Intermediate,
			SourceMap:    a.SourceMap,
			Hash:         a.Hash,
		})
	}
	for _, c := range res.Chunks {
		r.Chunks = append(r.Chunks, Chunk{
			Ref:       c.Ref,
			ID:        c.ID,
			Names:     c.Names,
			Entry:     c.Entry,
			Async:     c.Async,
			Exclusive: c.Exclusive,
			Assets:    assetRefs(c.Assets),
			Children:  c.Children,
			Modules:   len(c.Modules),
		})
	}
	for _, p := range res.Packages {
		r.Packages = append(r.Packages, Package{
			Ref:     p.Ref,
			Name:    p.Name,
			Path:    p.Path,
			Version: p.Version,
			Kind:    p.Kind,
			Size:    p.Size,
			Ignored: p.Ignored,
			Issuers: p.Issuers,
			Assets:  assetRefs(p.Assets),
			Modules: len(p.Modules),
		})
	}
	for _, ep := range res.EntryPoints {
		r.EntryPoints = append(r.EntryPoints, EntryPoint{
			Name:          ep.Name,
			Score:         ep.Score,
			Size:          ep.Size,
			InitialSize:   ep.InitialSize,
			Chunks:        chunkRefs(ep.Chunks),
			InitialChunks: chunkRefs(ep.InitialChunks),
			Assets:        assetRefs(ep.Assets),
			Packages:      ep.Packages,
			Audits:        ep.Audits,
		})
	}
	return r
}

func assetRefs(assets []*bundle.Asset) []int {
	refs := make([]int, len(assets))
	for i, a := range assets {
		refs[i] = a.Ref
	}
	return refs
}

func chunkRefs(chunks []*bundle.Chunk) []int {
	refs := make([]int, len(chunks))
	for i, c := range chunks {
		refs[i] = c.Ref
	}
	return refs
}

// NewModuleMap indexes every module of a graph by key. Concatenated
// modules are included under their own keys.
func NewModuleMap(res *graph.Result) ModuleMap {
	mm := make(ModuleMap, len(res.Modules))
	var add func(m *bundle.Module)
	add = func(m *bundle.Module) {
		if m.Key == "" {
			return
		}
		mm[m.Key] = ModuleRef{Path: m.Path, Ref: m.Ref}
		for _, c := range m.Concatenated {
			add(c)
		}
	}
	for _, m := range res.Modules {
		add(m)
	}
	return mm
}

// NewAttribution collects issuers and side-effect declarations of every
// third-party package, keyed by package ref.
func NewAttribution(res *graph.Result) map[int]Attribution {
	out := make(map[int]Attribution)
	for _, p := range res.Packages {
		if !p.ThirdParty() {
			continue
		}
		out[p.Ref] = Attribution{Name: p.Name, Issuers: p.Issuers, SideEffects: p.SideEffects}
	}
	return out
}

// Baseline extracts the asset set used to score cache invalidation of a
// later build against this one.
func (r *Report) Baseline() *stats.Baseline {
	b := &stats.Baseline{
		Assets:      make([]stats.BaselineAsset, 0, len(r.Assets)),
		EntryPoints: make(map[string][]string, len(r.EntryPoints)),
	}
	names := make(map[int]string, len(r.Assets))
	for _, a := range r.Assets {
		names[a.Ref] = a.Name
		b.Assets = append(b.Assets, stats.BaselineAsset{Name: a.Name, Size: a.Size.Raw, Hash: a.Hash})
	}
	for _, ep := range r.EntryPoints {
		list := make([]string, 0, len(ep.Assets))
		for _, ref := range ep.Assets {
			if n, ok := names[ref]; ok {
				list = append(list, n)
			}
		}
		b.EntryPoints[ep.Name] = list
	}
	return b
}
