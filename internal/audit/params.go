package audit

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// Params is the entry-point data handed to external rules. It holds plain
// values only, so copies never alias the graph.
type Params struct {
	Name        string         `json:"name"`
	Family      string         `json:"family"`
	PublicPath  string         `json:"publicPath"`
	Size        bundle.Size    `json:"size"`
	InitialSize bundle.Size    `json:"initialSize"`
	EntryCount  int            `json:"entryCount"`
	Assets      []AssetParam   `json:"assets"`
	Chunks      []ChunkParam   `json:"chunks"`
	Packages    []PackageParam `json:"packages"`
}

// AssetParam describes one asset.
type AssetParam struct {
	Ref          int         `json:"ref"`
	Name         string      `json:"name"`
	Type         string      `json:"type"`
	Size         bundle.Size `json:"size"`
	Intermediate bool        `json:"intermediate"`
	SourceMap    bool        `json:"sourcemap"`
	Modules      int         `json:"modules"`
}

// ChunkParam describes one chunk.
type ChunkParam struct {
	Ref       int      `json:"ref"`
	ID        string   `json:"id"`
	Names     []string `json:"names,omitempty"`
	Async     bool     `json:"async"`
	Exclusive bool     `json:"exclusive"`
	Assets    []int    `json:"assets"`
}

// PackageParam describes one package as used by the entry point.
type PackageParam struct {
	Ref     int             `json:"ref"`
	Name    string          `json:"name"`
	Version string          `json:"version,omitempty"`
	Kind    string          `json:"kind"`
	Size    bundle.Size     `json:"size"`
	Sync    bool            `json:"sync"`
	Issuers []bundle.Issuer `json:"issuers,omitempty"`
	Assets  []int           `json:"assets"`
}

// NewParams snapshots a view.
func NewParams(v *View) Params {
	p := Params{
		Name:        v.Name,
		Family:      string(v.Family),
		PublicPath:  v.PublicPath,
		Size:        v.Size,
		InitialSize: v.InitialSize,
		EntryCount:  v.EntryCount,
	}
	for _, a := range v.Assets {
		p.Assets = append(p.Assets, AssetParam{
			Ref:          a.Ref,
			Name:         a.Name,
			Type:         string(a.Type),
			Size:         a.Size,
			Intermediate: a.Intermediate,
			SourceMap:    a.SourceMap,
			Modules:      len(a.Modules),
		})
	}
	for _, c := range v.Chunks {
		cp := ChunkParam{Ref: c.Ref, ID: c.ID.Key(), Names: c.Names, Async: c.Async, Exclusive: c.Exclusive}
		for _, a := range c.Assets {
			cp.Assets = append(cp.Assets, a.Ref)
		}
		p.Chunks = append(p.Chunks, cp)
	}
	for _, g := range v.Packages {
		pp := PackageParam{
			Ref:     g.Package.Ref,
			Name:    g.Package.Name,
			Version: g.Package.Version,
			Kind:    string(g.Package.Kind),
			Size:    g.Size,
			Sync:    g.Sync,
			Issuers: g.Issuers,
		}
		for _, a := range g.Assets {
			pp.Assets = append(pp.Assets, a.Ref)
		}
		p.Packages = append(p.Packages, pp)
	}
	return p
}

// Copy returns a deep copy of p.
func (p Params) Copy() (Params, error) {
	var out Params
	if err := deepcopy.Copy(&out, p); err != nil {
		return Params{}, fmt.Errorf("copying rule params: %w", err)
	}
	return out, nil
}
