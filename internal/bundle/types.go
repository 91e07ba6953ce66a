package bundle

import (
	"path"
	"strings"

	"github.com/hargabyte/bundlescope/internal/stats"
)

// Bucket names for modules that do not belong to an installed package.
const (
	SourceCode      = "(Source Code)"
	WebpackInternal = "(Webpack Internal)"
)

// ContentType classifies an asset by extension.
type ContentType string

const (
	TypeJS    ContentType = "js"
	TypeCSS   ContentType = "css"
	TypeHTML  ContentType = "html"
	TypeImage ContentType = "image"
	TypeFont  ContentType = "font"
	TypeMedia ContentType = "media"
	TypeOther ContentType = "other"
)

var extensionTypes = map[string]ContentType{
	".js": TypeJS, ".mjs": TypeJS, ".cjs": TypeJS,
	".css": TypeCSS,
	".html": TypeHTML, ".htm": TypeHTML,
	".png": TypeImage, ".jpg": TypeImage, ".jpeg": TypeImage, ".gif": TypeImage,
	".svg": TypeImage, ".webp": TypeImage, ".avif": TypeImage, ".ico": TypeImage,
	".woff": TypeFont, ".woff2": TypeFont, ".ttf": TypeFont, ".otf": TypeFont, ".eot": TypeFont,
	".mp4": TypeMedia, ".webm": TypeMedia, ".mp3": TypeMedia, ".ogg": TypeMedia, ".wav": TypeMedia,
}

// TypeOf returns the content type for an asset name, ignoring any query.
func TypeOf(name string) ContentType {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if t, ok := extensionTypes[strings.ToLower(path.Ext(name))]; ok {
		return t
	}
	return TypeOther
}

// IsText reports whether assets of this type carry text content.
func (t ContentType) IsText() bool {
	return t == TypeJS || t == TypeCSS || t == TypeHTML
}

// Asset is one emitted output file.
type Asset struct {
	Ref          int
	Name         string
	Path         string
	Type         ContentType
	Size         Size
	Content      []byte
	Modules      []*Module
	Chunks       []*Chunk
	Intermediate bool
	SourceMap    bool
	Hash         string
}

// AddModule appends m unless it is already owned by the asset.
func (a *Asset) AddModule(m *Module) {
	for _, existing := range a.Modules {
		if existing == m {
			return
		}
	}
	a.Modules = append(a.Modules, m)
}

// TreeShaking is the export usage of a module.
type TreeShaking struct {
	// Known is false when the bundler reported no usage information.
	Known bool
	// All is true when every export is used or exports are unknown.
	All      bool
	Used     []string
	Provided []string
	// Bailouts lists bundler optimization bailout reasons.
	Bailouts []string
}

// Shaken reports whether unused exports were proven and dropped.
func (t TreeShaking) Shaken() bool {
	return t.Known && !t.All
}

// Module is one source unit.
type Module struct {
	ID         stats.ID
	Key        string
	Identifier string
	Name       string
	// Path is the resolved file path with loaders stripped.
	Path         string
	Package      *Package
	Ref          int
	Size         Size
	Source       string
	Assets       []*Asset
	Issuers      []Issuer
	TreeShaking  TreeShaking
	ESM          bool
	Dynamic      bool
	Concatenated []*Module
	// Resolved is false for placeholders synthesized from chunk listings.
	Resolved bool
	// Described guards the one-time resolution done while parsing chunks.
	Described bool
}

// AddAsset records that a copies the module, once.
func (m *Module) AddAsset(a *Asset) {
	for _, existing := range m.Assets {
		if existing == a {
			return
		}
	}
	m.Assets = append(m.Assets, a)
}

// Issuer is an import edge: the package was imported from package Ref.
type Issuer struct {
	Ref     int    `json:"ref" yaml:"ref"`
	Module  string `json:"module,omitempty" yaml:"module,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Loc     string `json:"loc,omitempty" yaml:"loc,omitempty"`
	Request string `json:"request,omitempty" yaml:"request,omitempty"`
}

// NoteKind names the relation a package note records.
type NoteKind string

// NoteConcat marks a package inlined into another package's module.
const NoteConcat NoteKind = "concat"

// Note annotates a package usage.
type Note struct {
	Kind NoteKind `json:"kind" yaml:"kind"`
	Ref  int      `json:"ref" yaml:"ref"`
}

// PackageKind distinguishes installed libraries from buckets.
type PackageKind string

const (
	KindLibrary  PackageKind = "library"
	KindSource   PackageKind = "source"
	KindInternal PackageKind = "internal"
)

// Package is a resolved library or a bucket.
type Package struct {
	Ref         int
	Name        string
	Path        string
	Version     string
	Kind        PackageKind
	Size        Size
	Issuers     []Issuer
	Assets      []*Asset
	Modules     []*Module
	Ignored     bool
	SideEffects stats.SideEffects
}

// ThirdParty reports whether the package is an installed library.
func (p *Package) ThirdParty() bool {
	return p.Kind == KindLibrary
}

// Chunk is one bundler chunk.
type Chunk struct {
	ID        stats.ID
	Ref       int
	Names     []string
	Entry     bool
	Async     bool
	Exclusive bool
	Assets    []*Asset
	Modules   []*Module
	Children  []stats.ID
	// Required holds the chunks reached through lowered dynamic imports
	// of the chunk's modules. Only populated in strict chunk mode.
	Required []stats.ID
	Hash     string
}

// AddAsset appends a to the chunk, once.
func (c *Chunk) AddAsset(a *Asset) {
	for _, existing := range c.Assets {
		if existing == a {
			return
		}
	}
	c.Assets = append(c.Assets, a)
}

// AddModule appends m unless the chunk already holds it.
func (c *Chunk) AddModule(m *Module) {
	for _, existing := range c.Modules {
		if existing == m {
			return
		}
	}
	c.Modules = append(c.Modules, m)
}

// PackageUsage is the per-entry-point appendix of one package.
type PackageUsage struct {
	Ref     int      `json:"ref" yaml:"ref"`
	Size    Size     `json:"size" yaml:"size"`
	Issuers []Issuer `json:"issuers,omitempty" yaml:"issuers,omitempty"`
	Assets  []int    `json:"assets" yaml:"assets"`
	Notes   []Note   `json:"notes,omitempty" yaml:"notes,omitempty"`
	// Sync is true when the package is reachable from an initial chunk.
	Sync bool `json:"sync" yaml:"sync"`
}

// EntryPoint is one named bundler entry.
type EntryPoint struct {
	Name          string
	Size          Size
	InitialSize   Size
	Chunks        []*Chunk
	InitialChunks []*Chunk
	Assets        []*Asset
	Packages      []PackageUsage
	Audits        []AuditResult
	Score         int
}

// PackageGroup is one package reduced over a set of chunks.
type PackageGroup struct {
	Package *Package
	Size    Size
	Issuers []Issuer
	Assets  []*Asset
	Notes   []Note
	Modules []*Module
	// Sync is true when at least one module comes from an initial chunk.
	Sync bool
}
