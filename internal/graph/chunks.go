package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/extract"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// parseChunks creates chunks in stats order and resolves their modules.
// Size-report builds carry no chunk listing, so one chunk is synthesized
// per script asset.
func (b *builder) parseChunks(ctx context.Context) error {
	if len(b.doc.Chunks) == 0 && b.doc.Family.SizeReport() {
		b.synthesizeChunks()
		return nil
	}

	var x *extract.Extractor
	if b.flags.StrictChunkRelations {
		x = extract.New()
		defer x.Close()
	}

	for i := range b.doc.Chunks {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("parsing chunks: %w", err)
		}
		sc := &b.doc.Chunks[i]
		c := &bundle.Chunk{
			ID:       sc.ID,
			Ref:      len(b.chunks) + 1,
			Names:    sc.Names,
			Entry:    sc.Entry,
			Async:    !sc.Initial,
			Children: sc.Children,
			Hash:     sc.Hash,
		}
		files := sc.Files
		if b.flags.IncludeAuxiliaryFiles {
			files = append(append([]string(nil), files...), sc.AuxiliaryFiles...)
		}
		for _, name := range files {
			if a, ok := b.assetsByName[name]; ok {
				c.AddAsset(a)
				a.Chunks = append(a.Chunks, c)
			}
		}

		for _, sm := range sc.Modules {
			c.AddModule(b.resolveModule(sm, c))
		}

		if x != nil {
			c.Required = b.requiredChunks(ctx, x, c)
		}

		b.chunks = append(b.chunks, c)
		b.chunksByKey[c.ID.Key()] = c
	}
	b.adoptOrphans()
	return nil
}

// adoptOrphans describes modules that extraction found but no stats chunk
// listed, and places them in the chunks of the assets holding them.
func (b *builder) adoptOrphans() {
	for _, m := range b.moduleOrder {
		if m.Described {
			continue
		}
		b.describe(m, stats.Module{Identifier: m.Key, Name: m.Key, Size: m.Size.Raw})
		for _, a := range m.Assets {
			for _, c := range a.Chunks {
				c.AddModule(m)
			}
		}
	}
}

// resolveModule returns the module for a stats module entry: the extracted
// module with the same id when there is one, otherwise a placeholder keyed
// by id or identifier.
func (b *builder) resolveModule(sm stats.Module, c *bundle.Chunk) *bundle.Module {
	var m *bundle.Module
	for _, key := range moduleKeys(sm) {
		if found, ok := b.modules[key]; ok {
			m = found
			break
		}
	}
	if m == nil {
		keys := moduleKeys(sm)
		m = &bundle.Module{Size: bundle.Size{Raw: sm.Size}}
		if sm.ID != nil {
			m.ID = *sm.ID
		}
		if len(keys) > 0 {
			m.Key = keys[0]
		}
		b.addModule(m)
	}
	if !m.Resolved {
		b.attachPlaceholder(m, sm, c)
	}
	b.describe(m, sm)
	return m
}

func moduleKeys(sm stats.Module) []string {
	var keys []string
	if sm.ID != nil && !sm.ID.IsZero() {
		keys = append(keys, sm.ID.Key())
	}
	if sm.Identifier != "" {
		keys = append(keys, sm.Identifier)
	}
	if sm.Name != "" && sm.Name != sm.Identifier {
		keys = append(keys, sm.Name)
	}
	return keys
}

// attachPlaceholder places a module that extraction did not find into the
// chunk's assets of the matching type.
func (b *builder) attachPlaceholder(m *bundle.Module, sm stats.Module, c *bundle.Chunk) {
	want := bundle.TypeJS
	if strings.HasPrefix(sm.ModuleType, "css") || bundle.TypeOf(cleanPath(sm.Identifier)) == bundle.TypeCSS {
		want = bundle.TypeCSS
	}
	for _, a := range c.Assets {
		if a.Type == want {
			m.AddAsset(a)
			a.AddModule(m)
		}
	}
}

// describe resolves a module's package, flags and issuers the first time
// the module is seen in a chunk.
func (b *builder) describe(m *bundle.Module, sm stats.Module) {
	if m.Described {
		return
	}
	m.Described = true

	m.Identifier = sm.Identifier
	m.Name = sm.Name
	if m.Name == "" {
		m.Name = sm.Identifier
	}
	m.Path = cleanPath(firstNonEmpty(sm.Identifier, sm.Name, m.Key))
	m.Package = b.registry.resolve(m.Path)
	m.Ref = m.Package.Ref
	m.Package.Modules = append(m.Package.Modules, m)

	m.ESM = strings.HasPrefix(sm.ModuleType, "javascript/esm")
	for _, r := range sm.Reasons {
		if strings.HasPrefix(r.Type, "harmony") {
			m.ESM = true
		}
		if strings.HasPrefix(r.Type, "import()") {
			m.Dynamic = true
		}
	}

	m.TreeShaking = bundle.TreeShaking{
		All:      true,
		Provided: sm.ProvidedExports,
		Bailouts: sm.OptimizationBailout,
	}
	if sm.UsedExports != nil && sm.UsedExports.Known {
		m.TreeShaking.Known = true
		m.TreeShaking.All = sm.UsedExports.All
		m.TreeShaking.Used = sm.UsedExports.Names
		if sm.UsedExports.Names != nil && len(sm.UsedExports.Names) >= len(sm.ProvidedExports) {
			m.TreeShaking.All = true
		}
	}

	m.Issuers = b.issuers(m, sm.Reasons)

	if len(sm.Modules) > 0 {
		b.concatenate(m, sm.Modules)
	}
}

// issuers turns reasons into package-level import edges, deduplicated per
// (package, module) pair. Self edges are dropped.
func (b *builder) issuers(m *bundle.Module, reasons []stats.Reason) []bundle.Issuer {
	var out []bundle.Issuer
	seen := make(map[string]struct{})
	for _, r := range reasons {
		from := firstNonEmpty(r.ResolvedModule, r.ModuleIdentifier, r.ModuleName)
		if from == "" {
			continue
		}
		pkg := b.registry.resolve(cleanPath(from))
		if pkg.Ref == m.Ref {
			continue
		}
		key := fmt.Sprintf("%d\x00%s", pkg.Ref, r.ModuleName)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, bundle.Issuer{
			Ref:     pkg.Ref,
			Module:  firstNonEmpty(r.ModuleName, from),
			Type:    r.Type,
			Loc:     r.Loc,
			Request: r.UserRequest,
		})
	}
	return out
}

// concatenate resolves scope-hoisted children. Each child receives a share
// of the parent's size proportional to its reported source size.
func (b *builder) concatenate(parent *bundle.Module, children []stats.Module) {
	var total int64
	for _, sc := range children {
		total += sc.Size
	}
	for _, sc := range children {
		child := &bundle.Module{
			Key:      "concat:" + parent.Key + ":" + sc.Identifier,
			Resolved: parent.Resolved,
		}
		if sc.ID != nil {
			child.ID = *sc.ID
		}
		if total > 0 {
			child.Size = parent.Size.Portion(parent.Size.Raw * sc.Size / total)
		}
		child.Assets = parent.Assets
		b.describe(child, sc)
		parent.Concatenated = append(parent.Concatenated, child)
	}
}

// requiredChunks collects chunk ids loaded by the chunk's module sources.
func (b *builder) requiredChunks(ctx context.Context, x *extract.Extractor, c *bundle.Chunk) []stats.ID {
	var ids []stats.ID
	seen := make(map[string]struct{})
	for _, m := range c.Modules {
		if m.Source == "" {
			continue
		}
		found, err := x.FindRequiredChunks(ctx, m.Source)
		if err != nil {
			b.log.Warn().Err(err).Str("chunk", c.ID.Key()).Str("module", m.Key).Msg("Scanning dynamic imports failed")
			continue
		}
		for _, id := range found {
			if _, dup := seen[id.Key()]; dup {
				continue
			}
			seen[id.Key()] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// synthesizeChunks creates one initial chunk per script asset of a
// size-report build and describes the modules extracted for it.
func (b *builder) synthesizeChunks() {
	initial := make(map[string]struct{})
	for pair := b.doc.EntryPoints.Oldest(); pair != nil; pair = pair.Next() {
		for _, ea := range pair.Value.Assets {
			initial[ea.Name] = struct{}{}
		}
	}

	for _, a := range b.assets {
		if a.Type != bundle.TypeJS && a.Type != bundle.TypeCSS {
			continue
		}
		_, isInitial := initial[a.Name]
		c := &bundle.Chunk{
			ID:    stats.StringID(a.Name),
			Ref:   len(b.chunks) + 1,
			Names: []string{a.Name},
			Entry: isInitial,
			Async: !isInitial,
		}
		c.AddAsset(a)
		a.Chunks = append(a.Chunks, c)
		for _, m := range a.Modules {
			b.describe(m, stats.Module{Identifier: m.Key, Name: m.Key, Size: m.Size.Raw})
			c.Modules = append(c.Modules, m)
		}
		b.chunks = append(b.chunks, c)
		b.chunksByKey[c.ID.Key()] = c
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
