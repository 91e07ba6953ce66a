package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/stats"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	cache, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testReport(id, project string, offset time.Duration, score int) *report.Report {
	return &report.Report{
		Version:     report.SchemaVersion,
		ID:          id,
		Project:     project,
		Family:      stats.FamilyWebpack,
		GeneratedAt: epoch.Add(offset),
		Score:       score,
		EntryPoints: []report.EntryPoint{{
			Name:          "main",
			Score:         score,
			Chunks:        []int{0},
			InitialChunks: []int{0},
			Assets:        []int{0},
			Packages:      []bundle.PackageUsage{},
		}},
		Assets: []report.Asset{{
			Ref: 0, Name: "main." + id + ".js", Type: bundle.TypeJS,
			Size: bundle.Size{Raw: 1000}, Chunks: []int{0}, Hash: "h-" + id,
		}},
		Chunks:   []report.Chunk{{Ref: 0, ID: stats.NumericID(0), Entry: true, Assets: []int{0}}},
		Packages: []report.Package{},
	}
}

func TestCacheOpenClose(t *testing.T) {
	dir := t.TempDir()

	cache, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), cache.Path())
	require.NoError(t, cache.Close())

	// Reopening keeps the schema and data
	cache, err = Open(dir)
	require.NoError(t, err)
	defer cache.Close()

	st, err := cache.GetStats()
	require.NoError(t, err)
	assert.Zero(t, st.Reports)
}

func TestSaveAndGetReport(t *testing.T) {
	cache := setupTestCache(t)

	want := testReport("run-1", "shop", 0, 72)
	require.NoError(t, cache.SaveReport(want))

	got, err := cache.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Score, got.Score)
	assert.True(t, want.GeneratedAt.Equal(got.GeneratedAt))
	assert.Equal(t, want.Assets, got.Assets)

	// Saving the same id replaces the row
	want.Score = 90
	require.NoError(t, cache.SaveReport(want))
	got, err = cache.GetReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.Score)

	_, err = cache.GetReport("missing")
	assert.ErrorIs(t, err, ErrNoReports)
}

func TestLatestReport(t *testing.T) {
	cache := setupTestCache(t)

	_, err := cache.LatestReport("shop")
	assert.ErrorIs(t, err, ErrNoReports)

	require.NoError(t, cache.SaveReport(testReport("b", "shop", time.Hour, 60)))
	require.NoError(t, cache.SaveReport(testReport("a", "shop", 0, 50)))
	require.NoError(t, cache.SaveReport(testReport("c", "admin", 2*time.Hour, 40)))
	// Sub-second ordering must hold even when fractions differ in length
	require.NoError(t, cache.SaveReport(testReport("d", "shop", time.Hour+500*time.Millisecond, 70)))

	latest, err := cache.LatestReport("shop")
	require.NoError(t, err)
	assert.Equal(t, "d", latest.ID)

	base := latest.Baseline()
	require.Len(t, base.Assets, 1)
	assert.Equal(t, "main.d.js", base.Assets[0].Name)
	assert.Equal(t, "h-d", base.Assets[0].Hash)
}

func TestListReports(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.SaveReport(testReport("a", "shop", 0, 50)))
	require.NoError(t, cache.SaveReport(testReport("b", "shop", time.Minute, 60)))
	require.NoError(t, cache.SaveReport(testReport("c", "admin", 2*time.Minute, 40)))

	all, err := cache.ListReports("", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, ids(all))
	assert.Equal(t, stats.FamilyWebpack, all[0].Family)
	assert.True(t, epoch.Add(2*time.Minute).Equal(all[0].GeneratedAt))

	shop, err := cache.ListReports("shop", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(shop))

	st, err := cache.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), st.Reports)
	assert.Equal(t, int64(2), st.Projects)
}

func TestPrune(t *testing.T) {
	cache := setupTestCache(t)

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, cache.SaveReport(testReport(id, "shop", time.Duration(i)*time.Minute, 50)))
	}
	require.NoError(t, cache.SaveReport(testReport("x", "admin", 0, 50)))

	deleted, err := cache.Prune("shop", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	shop, err := cache.ListReports("shop", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "c"}, ids(shop))

	// Other projects are untouched
	admin, err := cache.ListReports("admin", 0)
	require.NoError(t, err)
	assert.Len(t, admin, 1)

	deleted, err = cache.Prune("shop", 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestClear(t *testing.T) {
	cache := setupTestCache(t)
	require.NoError(t, cache.SaveReport(testReport("a", "shop", 0, 50)))
	require.NoError(t, cache.Clear())

	st, err := cache.GetStats()
	require.NoError(t, err)
	assert.Zero(t, st.Reports)
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
