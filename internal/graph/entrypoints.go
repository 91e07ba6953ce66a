package graph

import (
	"context"
	"fmt"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

type entryChunks struct {
	name    string
	def     stats.EntryPoint
	all     []*bundle.Chunk
	initial []*bundle.Chunk
}

// parseEntryPoints flattens every entry point, marks exclusive chunks,
// attaches HTML documents, then sizes and audits each entry point.
func (b *builder) parseEntryPoints(ctx context.Context) ([]*bundle.EntryPoint, error) {
	var flat []entryChunks
	for pair := b.doc.EntryPoints.Oldest(); pair != nil; pair = pair.Next() {
		roots := pair.Value.Chunks
		if len(roots) == 0 {
			roots = b.chunksOfAssets(pair.Value.Assets)
		}
		flat = append(flat, entryChunks{
			name:    pair.Key,
			def:     pair.Value,
			all:     FlattenChunks(roots, b.chunksByKey, FlattenOptions{Strict: b.flags.StrictChunkRelations}),
			initial: FlattenChunks(roots, b.chunksByKey, FlattenOptions{OnlyInitial: true, Strict: b.flags.StrictChunkRelations}),
		})
	}

	b.markExclusive(flat)
	b.attachHTML()

	entries := make([]*bundle.EntryPoint, 0, len(flat))
	for _, ec := range flat {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("parsing entry points: %w", err)
		}
		ep := b.entryPoint(ec)
		if b.opts.Auditor != nil {
			view := b.view(ep, ec, len(flat))
			ep.Audits = b.opts.Auditor.Audit(ctx, view)
			ep.Score = audit.Score(ep.Audits)
		}
		entries = append(entries, ep)
	}
	return entries, nil
}

// chunksOfAssets maps entry assets to the chunks that emit them.
func (b *builder) chunksOfAssets(assets []stats.EntryAsset) []stats.ID {
	var ids []stats.ID
	for _, ea := range assets {
		a, ok := b.assetsByName[ea.Name]
		if !ok {
			continue
		}
		for _, c := range a.Chunks {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

// markExclusive flags chunks reachable from exactly one entry point when
// the build has more than one.
func (b *builder) markExclusive(flat []entryChunks) {
	counts := make(map[*bundle.Chunk]int)
	for _, ec := range flat {
		for _, c := range ec.all {
			counts[c]++
		}
	}
	for c, n := range counts {
		c.Exclusive = n == 1 && len(flat) > 1
	}
}

func (b *builder) entryPoint(ec entryChunks) *bundle.EntryPoint {
	ep := &bundle.EntryPoint{
		Name:          ec.name,
		Chunks:        ec.all,
		InitialChunks: ec.initial,
	}

	seen := make(map[*bundle.Asset]struct{})
	initial := make(map[*bundle.Asset]struct{})
	add := func(a *bundle.Asset) {
		if _, dup := seen[a]; dup {
			return
		}
		seen[a] = struct{}{}
		ep.Assets = append(ep.Assets, a)
	}
	for _, c := range ec.initial {
		for _, a := range c.Assets {
			initial[a] = struct{}{}
		}
	}
	for _, c := range ec.all {
		for _, a := range c.Assets {
			add(a)
		}
	}
	for _, ea := range ec.def.Assets {
		if a, ok := b.assetsByName[ea.Name]; ok {
			add(a)
			initial[a] = struct{}{}
		}
	}

	for _, a := range ep.Assets {
		if a.Intermediate {
			continue
		}
		ep.Size = ep.Size.Add(a.Size)
		if _, ok := initial[a]; ok {
			ep.InitialSize = ep.InitialSize.Add(a.Size)
		}
	}

	for _, g := range ReduceModules(ec.all) {
		usage := bundle.PackageUsage{
			Ref:     g.Package.Ref,
			Size:    g.Size,
			Issuers: g.Issuers,
			Notes:   g.Notes,
			Sync:    g.Sync,
			Assets:  make([]int, 0, len(g.Assets)),
		}
		for _, a := range g.Assets {
			if _, own := seen[a]; own {
				usage.Assets = append(usage.Assets, a.Ref)
			}
		}
		ep.Packages = append(ep.Packages, usage)
	}
	return ep
}

func (b *builder) view(ep *bundle.EntryPoint, ec entryChunks, entryCount int) *audit.View {
	return &audit.View{
		Name:          ep.Name,
		Family:        b.doc.Family,
		PublicPath:    b.doc.PublicPathValue(),
		Assets:        ep.Assets,
		Chunks:        ec.all,
		InitialChunks: ec.initial,
		Packages:      ReduceModules(ec.all),
		Size:          ep.Size,
		InitialSize:   ep.InitialSize,
		EntryCount:    entryCount,
		Baseline:      b.opts.Baseline,
		Cache:         b.cache,
		RunID:         b.opts.RunID,
	}
}
