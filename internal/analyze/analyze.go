// Package analyze runs the whole pipeline for one stats document: build the
// graph, audit every entry point, then derive the report, the module trees
// and the module map.
package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/graph"
	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/stats"
	"github.com/hargabyte/bundlescope/internal/tree"
)

// Options configures one analysis.
type Options struct {
	Graph graph.Options
	Audit audit.Settings

	// ScriptFs resolves external rule scripts given as file paths. Nil
	// uses the OS filesystem.
	ScriptFs afero.Fs

	// Funcs are trusted rules registered on the engine by id.
	Funcs map[string]audit.TrustedFunc

	// SkipAudits builds the graph without scoring entry points.
	SkipAudits bool

	Project string
}

// Output is everything one analysis produces.
type Output struct {
	Report *report.Report
	// Trees holds one module tree per script asset, keyed by asset name.
	Trees       map[string]*tree.Node
	Modules     report.ModuleMap
	Attribution map[int]report.Attribution
	Graph       *graph.Result
}

// Run analyzes doc.
func Run(ctx context.Context, doc *stats.Document, opts Options) (*Output, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()
	start := time.Now()

	gopts := opts.Graph
	gopts.RunID = runID
	if !opts.SkipAudits {
		gopts.Auditor = NewEngine(opts)
	}

	res, err := graph.Build(ctx, doc, gopts)
	if err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}

	out := &Output{
		Report:      report.Build(res, report.Meta{ID: runID, Project: opts.Project}),
		Trees:       Trees(res.Assets),
		Modules:     report.NewModuleMap(res),
		Attribution: report.NewAttribution(res),
		Graph:       res,
	}

	logger.Info().
		Str("family", string(res.Family)).
		Int("entrypoints", len(res.EntryPoints)).
		Int("score", res.Score).
		Dur("elapsed", time.Since(start)).
		Msg("Analysis complete")
	return out, nil
}

// NewEngine creates the audit engine for opts with its trusted rules
// registered.
func NewEngine(opts Options) *audit.Engine {
	fs := opts.ScriptFs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	engine := audit.NewEngine(opts.Audit, fs)
	for id, fn := range opts.Funcs {
		engine.RegisterFunc(id, fn)
	}
	return engine
}

// Trees builds the module tree of every script asset that has modules.
func Trees(assets []*bundle.Asset) map[string]*tree.Node {
	trees := make(map[string]*tree.Node)
	for _, a := range assets {
		if a.Type != bundle.TypeJS || len(a.Modules) == 0 {
			continue
		}
		trees[a.Name] = tree.Build(a.Name, a.Modules)
	}
	return trees
}

// LoadStats reads and decodes a stats document.
func LoadStats(fs afero.Fs, path string) (*stats.Document, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stats: %w", err)
	}
	defer f.Close()
	return stats.Decode(f)
}

// LoadReport reads a stored report, typically to serve as a baseline.
func LoadReport(fs afero.Fs, path string) (*report.Report, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening report: %w", err)
	}
	defer f.Close()
	return report.Decode(f)
}
