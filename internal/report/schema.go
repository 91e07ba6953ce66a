// Package report provides the serializable form of an analyzed build.
//
// A report is acyclic: entry points, assets, chunks and packages refer to
// each other by integer ref only. Entry points embed their own audit
// results. Module trees, the module map and package attribution are emitted
// beside the report rather than inside it.
package report

import (
	"time"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// SchemaVersion is bumped whenever the wire form changes incompatibly.
const SchemaVersion = 1

// Report is the complete analysis of one build.
type Report struct {
	// Version is the schema version the report was written with.
	Version int `yaml:"version" json:"version"`

	// ID uniquely identifies the analysis run.
	ID string `yaml:"id" json:"id"`

	// Project groups reports of the same application in the history store.
	Project string `yaml:"project,omitempty" json:"project,omitempty"`

	// Family is the bundler family of the stats document.
	Family stats.Family `yaml:"family" json:"family"`

	// GeneratedAt is the timestamp when the report was generated.
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`

	// PublicPath is the URL prefix the bundler emitted assets under.
	PublicPath string `yaml:"public_path,omitempty" json:"public_path,omitempty"`

	// Score is the mean of the entry point scores, from 0 to 100.
	Score int `yaml:"score" json:"score"`

	EntryPoints []EntryPoint `yaml:"entrypoints" json:"entrypoints"`
	Assets      []Asset      `yaml:"assets" json:"assets"`
	Chunks      []Chunk      `yaml:"chunks" json:"chunks"`
	Packages    []Package    `yaml:"packages" json:"packages"`
}

// EntryPoint is one named bundler entry with its audits.
type EntryPoint struct {
	Name        string      `yaml:"name" json:"name"`
	Score       int         `yaml:"score" json:"score"`
	Size        bundle.Size `yaml:"size" json:"size"`
	InitialSize bundle.Size `yaml:"initial_size" json:"initial_size"`

	// Chunks and InitialChunks are chunk refs in traversal order.
	Chunks        []int `yaml:"chunks" json:"chunks"`
	InitialChunks []int `yaml:"initial_chunks" json:"initial_chunks"`

	// Assets are asset refs.
	Assets []int `yaml:"assets" json:"assets"`

	// Packages lists every package reachable from the entry point with the
	// size it contributes to this entry point alone.
	Packages []bundle.PackageUsage `yaml:"packages" json:"packages"`

	Audits []bundle.AuditResult `yaml:"audits,omitempty" json:"audits,omitempty"`
}

// Asset is one emitted file.
type Asset struct {
	Ref          int                `yaml:"ref" json:"ref"`
	Name         string             `yaml:"name" json:"name"`
	Type         bundle.ContentType `yaml:"type" json:"type"`
	Size         bundle.Size        `yaml:"size" json:"size"`
	Chunks       []int              `yaml:"chunks" json:"chunks"`
	Modules      int                `yaml:"modules" json:"modules"`
	Intermediate bool               `yaml:"intermediate,omitempty" json:"intermediate,omitempty"`
	SourceMap    bool               `yaml:"source_map" json:"source_map"`

	// Hash is the content hash, empty when the content was not available.
	Hash string `yaml:"hash,omitempty" json:"hash,omitempty"`
}

// Chunk is one bundler chunk. ID is the bundler-native id; Children keep
// native ids as well since they may point at chunks the build never emitted.
type Chunk struct {
	Ref       int        `yaml:"ref" json:"ref"`
	ID        stats.ID   `yaml:"id" json:"id"`
	Names     []string   `yaml:"names,omitempty" json:"names,omitempty"`
	Entry     bool       `yaml:"entry" json:"entry"`
	Async     bool       `yaml:"async" json:"async"`
	Exclusive bool       `yaml:"exclusive" json:"exclusive"`
	Assets    []int      `yaml:"assets" json:"assets"`
	Children  []stats.ID `yaml:"children,omitempty" json:"children,omitempty"`
	Modules   int        `yaml:"modules" json:"modules"`
}

// Package is a resolved library or one of the source and internal buckets.
type Package struct {
	Ref     int                `yaml:"ref" json:"ref"`
	Name    string             `yaml:"name" json:"name"`
	Path    string             `yaml:"path" json:"path"`
	Version string             `yaml:"version,omitempty" json:"version,omitempty"`
	Kind    bundle.PackageKind `yaml:"kind" json:"kind"`
	Size    bundle.Size        `yaml:"size" json:"size"`
	Ignored bool               `yaml:"ignored,omitempty" json:"ignored,omitempty"`
	Issuers []bundle.Issuer    `yaml:"issuers,omitempty" json:"issuers,omitempty"`
	Assets  []int              `yaml:"assets" json:"assets"`
	Modules int                `yaml:"modules" json:"modules"`
}

// ModuleRef locates one module: its cleaned path and its package ref.
type ModuleRef struct {
	Path string `yaml:"path" json:"path"`
	Ref  int    `yaml:"ref" json:"ref"`
}

// ModuleMap maps module keys to their location.
type ModuleMap map[string]ModuleRef

// Attribution is the import detail of one package, used to trace why a
// library ended up in the build.
type Attribution struct {
	Name        string            `yaml:"name" json:"name"`
	Issuers     []bundle.Issuer   `yaml:"issuers,omitempty" json:"issuers,omitempty"`
	SideEffects stats.SideEffects `yaml:"side_effects" json:"side_effects"`
}

// AssetByRef returns the asset with the given ref.
func (r *Report) AssetByRef(ref int) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Ref == ref {
			return a, true
		}
	}
	return Asset{}, false
}

// PackageByRef returns the package with the given ref.
func (r *Report) PackageByRef(ref int) (Package, bool) {
	for _, p := range r.Packages {
		if p.Ref == ref {
			return p, true
		}
	}
	return Package{}, false
}

// EntryPoint returns the entry point with the given name.
func (r *Report) EntryPoint(name string) (EntryPoint, bool) {
	for _, ep := range r.EntryPoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EntryPoint{}, false
}
