package audit

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

func library(ref int, name, version string, size int64, esm bool) *bundle.PackageGroup {
	pkg := &bundle.Package{Ref: ref, Name: name, Version: version, Kind: bundle.KindLibrary, Path: "node_modules/" + name}
	mod := &bundle.Module{Key: name, Path: pkg.Path + "/index.js", Package: pkg, Size: bundle.Size{Raw: size}, ESM: esm}
	return &bundle.PackageGroup{Package: pkg, Size: bundle.Size{Raw: size}, Modules: []*bundle.Module{mod}, Sync: true}
}

func resultIDs(results []bundle.AuditResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

func find(results []bundle.AuditResult, id string) *bundle.AuditResult {
	for i := range results {
		if results[i].ID == id {
			return &results[i]
		}
	}
	return nil
}

func ptr(f float64) *float64 { return &f }

func TestScore(t *testing.T) {
	t.Run("weighted mean", func(t *testing.T) {
		results := []bundle.AuditResult{
			{ID: "a", Weight: 3, NumericScore: ptr(1)},
			{ID: "b", Weight: 1, NumericScore: ptr(0)},
		}
		assert.Equal(t, 75, Score(results))
	})

	t.Run("zero weight is ignored", func(t *testing.T) {
		base := []bundle.AuditResult{{ID: "a", Weight: 2, NumericScore: ptr(0.5)}}
		for _, v := range []float64{0, 0.3, 1} {
			with := append(append([]bundle.AuditResult{}, base...), bundle.AuditResult{ID: "z", Weight: 0, NumericScore: ptr(v)})
			assert.Equal(t, Score(base), Score(with))
		}
	})

	t.Run("missing numeric score is ignored", func(t *testing.T) {
		results := []bundle.AuditResult{{ID: "a", Weight: 1, NumericScore: ptr(0.2)}, {ID: "b", Weight: 5}}
		assert.Equal(t, 20, Score(results))
	})

	t.Run("range", func(t *testing.T) {
		assert.Equal(t, 100, Score(nil))
		assert.Equal(t, 100, Score([]bundle.AuditResult{{Weight: 1, NumericScore: ptr(7)}}))
		assert.Equal(t, 0, Score([]bundle.AuditResult{{Weight: 1, NumericScore: ptr(-3)}}))
	})
}

func TestBundleScore(t *testing.T) {
	assert.Equal(t, 100, BundleScore(nil))
	assert.Equal(t, 50, BundleScore([]int{40, 60}))
	assert.Equal(t, 100, BundleScore([]int{100, 100, 100}))
}

func TestScoreBetween(t *testing.T) {
	assert.Equal(t, 1.0, ScoreBetween(5, 6, 12))
	assert.Equal(t, 0.5, ScoreBetween(9, 6, 12))
	assert.Equal(t, 0.0, ScoreBetween(20, 6, 12))
	assert.Equal(t, 1.0, ScoreBetween(0.9, 0.8, 0.2), "higher is better when good exceeds bad")
}

func TestFamily(t *testing.T) {
	assert.Equal(t, "date", Family("moment"))
	assert.Equal(t, "date", Family("dayjs"))
	assert.Equal(t, "lodash", Family("lodash.debounce"))
	assert.Equal(t, "left-pad", Family("left-pad"))
}

func TestCheckDuplicates(t *testing.T) {
	t.Run("interchangeable libraries are flagged", func(t *testing.T) {
		v := &View{Packages: []*bundle.PackageGroup{
			library(1, "moment", "1.0.0", 1000, false),
			library(2, "dayjs", "1.0.0", 500, true),
			library(3, "react", "18.2.0", 2000, true),
		}}
		f, err := checkDuplicates(context.Background(), v, DefaultSettings())
		require.NoError(t, err)
		require.NotNil(t, f)
		require.NotNil(t, f.Detail)
		require.Len(t, f.Detail.Rows, 1)
		assert.Equal(t, "date", f.Detail.Rows[0][0])
		assert.Contains(t, f.Detail.Rows[0][1], "moment@1.0.0")
		assert.Contains(t, f.Detail.Rows[0][1], "dayjs@1.0.0")
		assert.Less(t, f.Score, 0.7)
	})

	t.Run("single library is not flagged", func(t *testing.T) {
		v := &View{Packages: []*bundle.PackageGroup{library(1, "moment", "1.0.0", 1000, false)}}
		f, err := checkDuplicates(context.Background(), v, DefaultSettings())
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Nil(t, f.Detail)
		assert.Equal(t, 1.0, f.Score)
	})

	t.Run("ignored packages are skipped", func(t *testing.T) {
		dup := library(2, "dayjs", "1.0.0", 500, true)
		dup.Package.Ignored = true
		v := &View{Packages: []*bundle.PackageGroup{library(1, "moment", "1.0.0", 1000, false), dup}}
		f, err := checkDuplicates(context.Background(), v, DefaultSettings())
		require.NoError(t, err)
		assert.Equal(t, 1.0, f.Score)
	})
}

func TestCacheInvalidation(t *testing.T) {
	base := &stats.Baseline{Assets: []stats.BaselineAsset{
		{Name: "main.abc.js", Size: 300, Hash: "h1"},
		{Name: "vendor.def.js", Size: 100, Hash: "h2"},
	}}

	t.Run("superset keeps every name", func(t *testing.T) {
		current := []*bundle.Asset{{Name: "main.abc.js"}, {Name: "vendor.def.js"}, {Name: "extra.js"}}
		inv := CompareBaseline("main", current, base)
		assert.Equal(t, 0.0, inv.Rate)
		assert.Empty(t, inv.Invalidated)
	})

	t.Run("disjoint names invalidate everything", func(t *testing.T) {
		current := []*bundle.Asset{{Name: "main.123.js"}, {Name: "vendor.456.js"}}
		inv := CompareBaseline("main", current, base)
		assert.Equal(t, 1.0, inv.Rate)
		assert.Len(t, inv.Invalidated, 2)
	})

	t.Run("rate is weighted by bytes and renames are detected", func(t *testing.T) {
		current := []*bundle.Asset{{Name: "main.abc.js", Hash: "h1"}, {Name: "vendor.999.js", Hash: "h2"}}
		v := &View{Name: "main", Assets: current, Baseline: base}
		res := CacheInvalidation(v, 2)

		require.NotNil(t, res.NumericScore)
		assert.InDelta(t, 0.75, *res.NumericScore, 1e-9)
		assert.Equal(t, 2.0, res.Weight)
		require.NotNil(t, res.Detail)
		assert.Equal(t, []string{"vendor.def.js", "100 B", "vendor.999.js"}, res.Detail.Rows[0])
	})

	t.Run("entry-specific baseline", func(t *testing.T) {
		scoped := &stats.Baseline{
			Assets:      base.Assets,
			EntryPoints: map[string][]string{"admin": {"vendor.def.js"}},
		}
		current := []*bundle.Asset{{Name: "vendor.def.js"}}
		assert.Equal(t, 0.0, CompareBaseline("admin", current, scoped).Rate)
		assert.Equal(t, 0.75, CompareBaseline("main", current, scoped).Rate)
	})
}

func TestCheckHTTP2(t *testing.T) {
	var assets []*bundle.Asset
	for i := 0; i < 9; i++ {
		assets = append(assets, &bundle.Asset{Ref: i, Name: string(rune('a'+i)) + ".js", Type: bundle.TypeJS})
	}
	v := &View{InitialChunks: []*bundle.Chunk{{Assets: assets}}}

	f, err := checkHTTP2(context.Background(), v, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0.5, f.Score)
	assert.Equal(t, &bundle.Throttle{Good: 6, Bad: 12}, f.Throttle)
}

func TestCheckPreconnect(t *testing.T) {
	html := `<html><head>
<link rel="preconnect" href="https://fonts.example.com">
<link rel="stylesheet" href="https://fonts.example.com/css">
<script src="https://cdn.example.net/lib.js"></script>
<script src="/main.js"></script>
</head></html>`
	v := &View{Assets: []*bundle.Asset{{Name: "index.html", Type: bundle.TypeHTML, Content: []byte(html)}}}

	f, err := checkPreconnect(context.Background(), v, DefaultSettings())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Equal(t, 0.5, f.Score)
	require.NotNil(t, f.Detail)
	assert.Equal(t, []string{"cdn.example.net"}, f.Detail.Items)

	none, err := checkPreconnect(context.Background(), &View{}, DefaultSettings())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCheckMinification(t *testing.T) {
	var src string
	for i := 0; i < 400; i++ {
		src += "function   long_name_here ( a ,  b )  {\n    return   a  +  b ;\n}\n\n"
	}
	v := &View{
		Assets: []*bundle.Asset{{Ref: 1, Name: "main.js", Type: bundle.TypeJS, Content: []byte(src)}},
		Cache:  NewCache(),
	}
	f, err := checkMinification(context.Background(), v, DefaultSettings())
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.Less(t, f.Score, 1.0)
	require.NotNil(t, f.Detail)
	assert.Equal(t, "main.js", f.Detail.Rows[0][0])
}

func TestValidateResult(t *testing.T) {
	res, err := ValidateResult("custom", map[string]any{
		"id":           "custom",
		"title":        "Custom",
		"weight":       float64(2),
		"numericScore": 1.5,
		"detail":       map[string]any{"type": "list", "items": []any{"a"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *res.NumericScore)
	assert.Equal(t, bundle.LevelGood, res.Score)
	assert.Equal(t, []string{"a"}, res.Detail.Items)

	invalid := []map[string]any{
		nil,
		{"title": "x", "weight": 1.0},
		{"id": "x", "weight": 1.0},
		{"id": "x", "title": "x"},
		{"id": "x", "title": "x", "weight": "1"},
		{"id": "x", "title": "x", "weight": 1.0, "score": "Great"},
	}
	for _, raw := range invalid {
		_, err := ValidateResult("custom", raw)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "%v", raw)
	}
}

func testView() *View {
	main := &bundle.Asset{Ref: 0, Name: "main.js", Type: bundle.TypeJS, Size: bundle.Size{Raw: 1000}, Content: []byte("var a = 1;")}
	return &View{
		Name:          "main",
		Assets:        []*bundle.Asset{main},
		InitialChunks: []*bundle.Chunk{{Assets: []*bundle.Asset{main}}},
		Packages: []*bundle.PackageGroup{
			library(1, "moment", "1.0.0", 1000, false),
			library(2, "dayjs", "1.0.0", 500, true),
		},
		Cache: NewCache(),
	}
}

func TestEngineExternalScriptTimeout(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "rules/slow.js", []byte(`function audit() { while (true) {} }`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "rules/ok.js", []byte(`function audit(p) {
	return {id: "ok", title: "Assets counted", weight: 1, numericScore: p.assets.length};
}`), 0o644))

	settings := DefaultSettings()
	settings.SandboxTimeout = 200 * time.Millisecond
	settings.External = []ExternalRule{{ID: "slow", Script: "rules/slow.js"}, {ID: "ok", Script: "rules/ok.js"}}

	results := NewEngine(settings, fs).Audit(context.Background(), testView())
	ids := resultIDs(results)

	assert.Contains(t, ids, "duplicate-libraries")
	assert.Contains(t, ids, "ok")
	assert.NotContains(t, ids, "slow")
	assert.Equal(t, "ok", ids[len(ids)-1], "external rules come after built-in rules")
}

func TestEngineTrustedFuncGetsCopy(t *testing.T) {
	settings := DefaultSettings()
	settings.External = []ExternalRule{{ID: "mutate"}, {ID: "observe"}}

	engine := NewEngine(settings, nil)
	engine.RegisterFunc("mutate", func(_ context.Context, p Params) (map[string]any, error) {
		p.Assets[0].Name = "changed.js"
		return map[string]any{"id": "mutate", "title": "Mutate", "weight": float64(0)}, nil
	})
	var seen string
	engine.RegisterFunc("observe", func(_ context.Context, p Params) (map[string]any, error) {
		seen = p.Assets[0].Name
		return map[string]any{"id": "observe", "title": "Observe", "weight": float64(0)}, nil
	})

	v := testView()
	results := engine.Audit(context.Background(), v)

	assert.Equal(t, "main.js", v.Assets[0].Name)
	assert.Equal(t, "main.js", seen)
	assert.NotNil(t, find(results, "mutate"))
	assert.NotNil(t, find(results, "observe"))
}

func TestEngineDisabledAndWeights(t *testing.T) {
	settings := DefaultSettings()
	settings.Disabled = []string{"esm"}
	settings.Weights = map[string]float64{"duplicate-libraries": 10}

	v := testView()
	v.Baseline = &stats.Baseline{Assets: []stats.BaselineAsset{{Name: "main.js", Size: 10}}}
	results := NewEngine(settings, nil).Audit(context.Background(), v)

	assert.Nil(t, find(results, "esm"))
	dup := find(results, "duplicate-libraries")
	require.NotNil(t, dup)
	assert.Equal(t, 10.0, dup.Weight)

	ci := find(results, CacheInvalidationID)
	require.NotNil(t, ci)
	assert.Equal(t, 1.0, *ci.NumericScore)
}

func TestEngineDescribe(t *testing.T) {
	settings := DefaultSettings()
	settings.Disabled = []string{"esm", "gone"}
	settings.Weights = map[string]float64{CacheInvalidationID: 5}
	settings.External = []ExternalRule{
		{ID: "budget", Script: "rules/budget.js"},
		{ID: "local"},
		{ID: "gone", Script: "rules/gone.js"},
	}

	engine := NewEngine(settings, nil)
	engine.RegisterFunc("local", func(context.Context, Params) (map[string]any, error) { return nil, nil })

	rules := engine.Describe()
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	assert.NotContains(t, ids, "esm")
	assert.NotContains(t, ids, "gone")
	assert.Equal(t, []string{CacheInvalidationID, "budget", "local"}, ids[len(ids)-3:])

	n := len(rules)
	assert.Equal(t, 5.0, rules[n-3].Weight)
	assert.Equal(t, "rules/budget.js", rules[n-2].Source)
	assert.Equal(t, "trusted", rules[n-1].Source)
	assert.Equal(t, "builtin", rules[0].Source)
}
