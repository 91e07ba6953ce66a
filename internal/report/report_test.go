package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/graph"
	"github.com/hargabyte/bundlescope/internal/stats"
)

func fixture() *graph.Result {
	main := &bundle.Asset{Ref: 1, Name: "main.js", Type: bundle.TypeJS, Size: bundle.Size{Raw: 300, Gzip: 100}, SourceMap: true, Hash: "abc"}
	lazy := &bundle.Asset{Ref: 2, Name: "lazy.js", Type: bundle.TypeJS, Size: bundle.Size{Raw: 50}}

	c1 := &bundle.Chunk{Ref: 1, ID: stats.NumericID(0), Names: []string{"main"}, Entry: true, Assets: []*bundle.Asset{main}, Children: []stats.ID{stats.NumericID(1)}}
	c2 := &bundle.Chunk{Ref: 2, ID: stats.NumericID(1), Async: true, Assets: []*bundle.Asset{lazy}}
	main.Chunks = []*bundle.Chunk{c1}
	lazy.Chunks = []*bundle.Chunk{c2}

	src := &bundle.Package{Ref: 1, Name: bundle.SourceCode, Path: bundle.SourceCode, Kind: bundle.KindSource, Assets: []*bundle.Asset{main, lazy}}
	lodash := &bundle.Package{
		Ref: 2, Name: "lodash", Path: "/app/node_modules/lodash", Version: "4.17.21", Kind: bundle.KindLibrary,
		Size:        bundle.Size{Raw: 120},
		Issuers:     []bundle.Issuer{{Ref: 1, Module: "./src/index.js", Type: "harmony import"}},
		Assets:      []*bundle.Asset{main},
		SideEffects: stats.SideEffects{Declared: true},
	}

	inlined := &bundle.Module{Key: "concat:1:/app/node_modules/lodash/map.js", Path: "/app/node_modules/lodash/map.js", Ref: 2, Package: lodash}
	m1 := &bundle.Module{Key: "1", Path: "/app/src/index.js", Ref: 1, Package: src, Concatenated: []*bundle.Module{inlined}}
	m2 := &bundle.Module{Key: "2", Path: "/app/node_modules/lodash/index.js", Ref: 2, Package: lodash}
	src.Modules = []*bundle.Module{m1}
	lodash.Modules = []*bundle.Module{m2, inlined}

	score := 0.9
	ep := &bundle.EntryPoint{
		Name:          "main",
		Size:          bundle.Size{Raw: 350},
		InitialSize:   bundle.Size{Raw: 300},
		Chunks:        []*bundle.Chunk{c1, c2},
		InitialChunks: []*bundle.Chunk{c1},
		Assets:        []*bundle.Asset{main, lazy},
		Packages: []bundle.PackageUsage{
			{Ref: 1, Size: bundle.Size{Raw: 230}, Assets: []int{1, 2}, Sync: true},
			{Ref: 2, Size: bundle.Size{Raw: 120}, Assets: []int{1}, Sync: true, Issuers: lodash.Issuers, Notes: []bundle.Note{{Kind: bundle.NoteConcat, Ref: 1}}},
		},
		Audits: []bundle.AuditResult{{ID: "large-assets", Title: "Keep initial assets small", Score: bundle.LevelGood, Weight: 2, NumericScore: &score}},
		Score:  90,
	}

	return &graph.Result{
		Family:      stats.FamilyWebpack,
		PublicPath:  "/",
		Assets:      []*bundle.Asset{main, lazy},
		Chunks:      []*bundle.Chunk{c1, c2},
		Modules:     []*bundle.Module{m1, m2},
		Packages:    []*bundle.Package{src, lodash},
		EntryPoints: []*bundle.EntryPoint{ep},
		Score:       90,
	}
}

func testReport() *Report {
	return Build(fixture(), Meta{ID: "run-1", Project: "shop", GeneratedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)})
}

func TestBuild(t *testing.T) {
	r := testReport()

	assert.Equal(t, SchemaVersion, r.Version)
	assert.Equal(t, 90, r.Score)
	require.Len(t, r.Assets, 2)
	assert.Equal(t, []int{1}, r.Assets[0].Chunks)
	require.Len(t, r.Chunks, 2)
	assert.Equal(t, []int{2}, r.Chunks[1].Assets)
	assert.Equal(t, []stats.ID{stats.NumericID(1)}, r.Chunks[0].Children)
	require.Len(t, r.Packages, 2)
	assert.Equal(t, 2, r.Packages[1].Modules)

	ep, ok := r.EntryPoint("main")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, ep.Chunks)
	assert.Equal(t, []int{1}, ep.InitialChunks)
	assert.Len(t, ep.Audits, 1)

	require.NoError(t, r.Validate())
}

func TestRoundTrip(t *testing.T) {
	r := testReport()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r))
	assert.Contains(t, buf.String(), `"numeric_score": 0.9`)

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)

	data, err := Marshal(decoded)
	require.NoError(t, err)
	again, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func TestValidateDanglingRefs(t *testing.T) {
	r := testReport()
	r.EntryPoints[0].Assets = append(r.EntryPoints[0].Assets, 9)
	r.EntryPoints[0].Packages[1].Notes[0].Ref = 7
	r.Packages[1].Issuers[0].Ref = 8

	err := r.Validate()
	require.Error(t, err)

	var refs []int
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var re *RefError
		if errors.As(e, &re) {
			refs = append(refs, re.Ref)
		}
	}
	assert.ElementsMatch(t, []int{9, 7, 8, 8}, refs, "entry usage issuers share the package issuer slice")

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r))
	_, err = Decode(&buf)
	assert.Error(t, err)
}

func TestValidateDuplicateRefs(t *testing.T) {
	r := testReport()
	r.Assets[1].Ref = 1
	assert.ErrorContains(t, r.Validate(), "duplicate asset ref 1")
}

func TestDecodeRejectsNewerSchema(t *testing.T) {
	_, err := Unmarshal([]byte(`{"version": 99, "entrypoints": [], "assets": [], "chunks": [], "packages": []}`))
	assert.ErrorContains(t, err, "newer")
}

func TestBaseline(t *testing.T) {
	b := testReport().Baseline()

	assert.Equal(t, []stats.BaselineAsset{
		{Name: "main.js", Size: 300, Hash: "abc"},
		{Name: "lazy.js", Size: 50},
	}, b.Assets)
	assert.Equal(t, map[string][]string{"main": {"main.js", "lazy.js"}}, b.EntryPoints)
}

func TestModuleMap(t *testing.T) {
	mm := NewModuleMap(fixture())

	assert.Len(t, mm, 3)
	assert.Equal(t, ModuleRef{Path: "/app/src/index.js", Ref: 1}, mm["1"])
	assert.Equal(t, 2, mm["concat:1:/app/node_modules/lodash/map.js"].Ref)
}

func TestAttribution(t *testing.T) {
	attr := NewAttribution(fixture())

	require.Len(t, attr, 1)
	lodash := attr[2]
	assert.Equal(t, "lodash", lodash.Name)
	assert.True(t, lodash.SideEffects.Declared)
	assert.False(t, lodash.SideEffects.Value)
	assert.Equal(t, 1, lodash.Issuers[0].Ref)
}
