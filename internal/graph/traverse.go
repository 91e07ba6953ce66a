package graph

import (
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// FlattenOptions controls chunk flattening.
type FlattenOptions struct {
	// OnlyInitial skips async chunks and does not descend into them.
	OnlyInitial bool
	// Strict follows only child edges backed by a lowered dynamic import.
	Strict bool
}

// FlattenChunks returns every chunk reachable from roots in depth-first
// order. A single visited set is shared across the whole traversal, so a
// chunk reachable along several paths appears once and cycles terminate.
// Unknown ids are ignored.
func FlattenChunks(roots []stats.ID, byKey map[string]*bundle.Chunk, opts FlattenOptions) []*bundle.Chunk {
	visited := make(map[string]struct{})
	var result []*bundle.Chunk

	var dfs func(id stats.ID)
	dfs = func(id stats.ID) {
		key := id.Key()
		if _, seen := visited[key]; seen {
			return
		}
		visited[key] = struct{}{}

		c, ok := byKey[key]
		if !ok {
			return
		}
		if opts.OnlyInitial && c.Async {
			return
		}
		result = append(result, c)

		for _, child := range children(c, opts.Strict) {
			dfs(child)
		}
	}

	for _, id := range roots {
		dfs(id)
	}
	return result
}

func children(c *bundle.Chunk, strict bool) []stats.ID {
	if !strict {
		return c.Children
	}
	required := make(map[string]struct{}, len(c.Required))
	for _, id := range c.Required {
		required[id.Key()] = struct{}{}
	}
	var out []stats.ID
	for _, id := range c.Children {
		if _, ok := required[id.Key()]; ok {
			out = append(out, id)
		}
	}
	return out
}
