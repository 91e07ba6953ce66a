// Package graph builds the normalized dependency graph of one build from a
// decoded stats document.
//
// Building is a strictly ordered state machine: index package versions,
// parse assets (extracting modules from JS assets), parse chunks, reduce
// packages, then parse entry points and audit each one. Per-item failures
// are logged and absorbed; only a structurally invalid document or a
// cancelled context aborts the build.
package graph

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/metrics"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// Auditor scores one entry point.
type Auditor interface {
	Audit(ctx context.Context, view *audit.View) []bundle.AuditResult
}

// Options configures a build.
type Options struct {
	// Fs is rooted at the build output directory. Assets are read from it
	// and it is listed to find source maps. Nil means no asset content.
	Fs afero.Fs
	// Workers bounds parallel asset parsing. Zero uses GOMAXPROCS.
	Workers int
	// Compression enables gzip and brotli size estimates.
	Compression bool
	// IgnorePackages are glob patterns matched against package names.
	IgnorePackages []string
	// Flags are OR-ed with the document flags.
	Flags stats.Flags
	// Auditor scores entry points. Nil skips auditing.
	Auditor Auditor
	// Baseline overrides the document baseline for cache invalidation.
	Baseline *stats.Baseline
	// RunID tags every log line of the build.
	RunID string
}

// Result is the complete graph of one build.
type Result struct {
	Family      stats.Family
	PublicPath  string
	Assets      []*bundle.Asset
	Chunks      []*bundle.Chunk
	Modules     []*bundle.Module
	Packages    []*bundle.Package
	EntryPoints []*bundle.EntryPoint
	Score       int
}

type builder struct {
	doc   *stats.Document
	opts  Options
	flags stats.Flags
	log   zerolog.Logger

	registry *registry

	assets       []*bundle.Asset
	assetsByName map[string]*bundle.Asset

	modules     map[string]*bundle.Module
	moduleOrder []*bundle.Module

	chunks      []*bundle.Chunk
	chunksByKey map[string]*bundle.Chunk

	cache *audit.Cache
}

// Build constructs the graph for doc.
func Build(ctx context.Context, doc *stats.Document, opts Options) (*Result, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	defer metrics.ObserveParse(time.Now())

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Baseline == nil {
		opts.Baseline = doc.Baseline
	}

	b := &builder{
		doc:  doc,
		opts: opts,
		flags: stats.Flags{
			IncludeAuxiliaryFiles: doc.Flags.IncludeAuxiliaryFiles || opts.Flags.IncludeAuxiliaryFiles,
			HTMLExclusiveInitial:  doc.Flags.HTMLExclusiveInitial || opts.Flags.HTMLExclusiveInitial,
			StrictChunkRelations:  doc.Flags.StrictChunkRelations || opts.Flags.StrictChunkRelations,
		},
		log:          log.With().Str("run_id", opts.RunID).Logger(),
		registry:     newRegistry(doc.Packages, opts.IgnorePackages),
		assetsByName: make(map[string]*bundle.Asset),
		modules:      make(map[string]*bundle.Module),
		chunksByKey:  make(map[string]*bundle.Chunk),
		cache:        audit.NewCache(),
	}

	if err := b.parseAssets(ctx); err != nil {
		return nil, err
	}
	if err := b.parseChunks(ctx); err != nil {
		return nil, err
	}
	b.reducePackages()
	entries, err := b.parseEntryPoints(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]int, len(entries))
	for i, ep := range entries {
		scores[i] = ep.Score
	}

	b.log.Debug().
		Int("assets", len(b.assets)).
		Int("chunks", len(b.chunks)).
		Int("modules", len(b.moduleOrder)).
		Int("packages", len(b.registry.ordered)).
		Int("entrypoints", len(entries)).
		Msg("Graph built")

	return &Result{
		Family:      doc.Family,
		PublicPath:  doc.PublicPathValue(),
		Assets:      b.assets,
		Chunks:      b.chunks,
		Modules:     b.moduleOrder,
		Packages:    b.registry.ordered,
		EntryPoints: entries,
		Score:       audit.BundleScore(scores),
	}, nil
}

// reducePackages sets every package's global size, issuers and assets from
// a reduction over all chunks.
func (b *builder) reducePackages() {
	for _, g := range ReduceModules(b.chunks) {
		p := g.Package
		p.Size = g.Size
		p.Issuers = g.Issuers
		p.Assets = g.Assets
	}
}
