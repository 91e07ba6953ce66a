package graph

import (
	"fmt"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// ReduceModules groups the modules reachable from chunks by package. Each
// module counts once however many chunks hold it. A concatenated child from
// another package is moved into its own package's group with a concat note
// pointing at the package it was inlined into. Groups that end up without
// modules are dropped.
func ReduceModules(chunks []*bundle.Chunk) []*bundle.PackageGroup {
	var order []*bundle.PackageGroup
	groups := make(map[*bundle.Package]*bundle.PackageGroup)
	issuerSeen := make(map[*bundle.PackageGroup]map[string]struct{})
	assetSeen := make(map[*bundle.PackageGroup]map[*bundle.Asset]struct{})
	visited := make(map[*bundle.Module]struct{})

	group := func(p *bundle.Package) *bundle.PackageGroup {
		if g, ok := groups[p]; ok {
			return g
		}
		g := &bundle.PackageGroup{Package: p}
		groups[p] = g
		issuerSeen[g] = make(map[string]struct{})
		assetSeen[g] = make(map[*bundle.Asset]struct{})
		order = append(order, g)
		return g
	}
	mergeIssuers := func(g *bundle.PackageGroup, issuers []bundle.Issuer) {
		for _, is := range issuers {
			key := fmt.Sprintf("%d\x00%s", is.Ref, is.Module)
			if _, dup := issuerSeen[g][key]; dup || is.Ref == g.Package.Ref {
				continue
			}
			issuerSeen[g][key] = struct{}{}
			g.Issuers = append(g.Issuers, is)
		}
	}
	contribute := func(g *bundle.PackageGroup, m *bundle.Module, size bundle.Size, sync bool) {
		g.Size = g.Size.Add(size)
		g.Modules = append(g.Modules, m)
		g.Sync = g.Sync || sync
		mergeIssuers(g, m.Issuers)
		for _, a := range m.Assets {
			if _, dup := assetSeen[g][a]; dup {
				continue
			}
			assetSeen[g][a] = struct{}{}
			g.Assets = append(g.Assets, a)
		}
	}

	for _, c := range chunks {
		sync := !c.Async
		for _, m := range c.Modules {
			if m.Package == nil {
				continue
			}
			if _, seen := visited[m]; seen {
				if sync {
					markSync(groups, m)
				}
				continue
			}
			visited[m] = struct{}{}

			own := m.Size
			parent := group(m.Package)
			for _, child := range m.Concatenated {
				if child.Package == nil {
					continue
				}
				if child.Package == m.Package {
					mergeIssuers(parent, child.Issuers)
					continue
				}
				own = own.Sub(child.Size)
				g := group(child.Package)
				contribute(g, child, child.Size, sync)
				addNote(g, bundle.Note{Kind: bundle.NoteConcat, Ref: m.Package.Ref})
			}
			contribute(parent, m, own, sync)
		}
	}

	out := order[:0]
	for _, g := range order {
		if len(g.Modules) > 0 {
			out = append(out, g)
		}
	}
	return out
}

func markSync(groups map[*bundle.Package]*bundle.PackageGroup, m *bundle.Module) {
	if g, ok := groups[m.Package]; ok {
		g.Sync = true
	}
	for _, child := range m.Concatenated {
		if g, ok := groups[child.Package]; ok {
			g.Sync = true
		}
	}
}

func addNote(g *bundle.PackageGroup, n bundle.Note) {
	for _, existing := range g.Notes {
		if existing == n {
			return
		}
	}
	g.Notes = append(g.Notes, n)
}
