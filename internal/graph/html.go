package graph

import (
	"strings"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/htmlscan"
)

// attachHTML attaches each HTML document that no chunk emits to the first
// initial chunk, in chunk order, that emits one of its scripts. With the
// html-exclusive flag only chunks exclusive to one entry point qualify. A
// document is attached at most once.
func (b *builder) attachHTML() {
	for _, doc := range b.assets {
		if doc.Type != bundle.TypeHTML || len(doc.Chunks) > 0 || len(doc.Content) == 0 {
			continue
		}
		tags, err := htmlscan.Scan(doc.Content)
		if err != nil {
			b.log.Warn().Err(err).Str("asset", doc.Name).Msg("Scanning HTML failed")
		}

		scripts := make(map[*bundle.Asset]struct{})
		for _, src := range htmlscan.ScriptSources(tags) {
			if a, ok := b.assetsByName[b.assetName(src)]; ok {
				scripts[a] = struct{}{}
			}
		}
		if len(scripts) == 0 {
			continue
		}

		if c := b.htmlChunk(scripts); c != nil {
			c.AddAsset(doc)
			doc.Chunks = append(doc.Chunks, c)
			b.log.Debug().Str("asset", doc.Name).Str("chunk", c.ID.Key()).Msg("Attached HTML document")
		}
	}
}

func (b *builder) htmlChunk(scripts map[*bundle.Asset]struct{}) *bundle.Chunk {
	for _, c := range b.chunks {
		if c.Async || (b.flags.HTMLExclusiveInitial && !c.Exclusive) {
			continue
		}
		for _, a := range c.Assets {
			if _, ok := scripts[a]; ok {
				return c
			}
		}
	}
	return nil
}

// assetName maps a script URL back to an asset name by removing the public
// path, any leading slash and the query.
func (b *builder) assetName(src string) string {
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if pp := b.doc.PublicPathValue(); pp != "" && pp != "auto" {
		src = strings.TrimPrefix(src, pp)
	}
	return strings.TrimPrefix(src, "/")
}
