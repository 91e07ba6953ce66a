package graph

import (
	"context"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/extract"
	"github.com/hargabyte/bundlescope/internal/metrics"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// parsedAsset is the outcome of the concurrent phase for one asset.
type parsedAsset struct {
	size    bundle.Size
	modules *extract.Result
}

// parseAssets creates assets in stats order, then compresses and extracts
// them concurrently, then merges modules sequentially so module discovery
// order only depends on asset order.
func (b *builder) parseAssets(ctx context.Context) error {
	maps := b.sourceMapIndex()

	for _, sa := range b.doc.Assets {
		if b.skipAsset(sa) {
			continue
		}
		a := &bundle.Asset{
			Ref:          len(b.assets) + 1,
			Name:         sa.Name,
			Path:         path.Join(b.doc.OutputPath, sa.Name),
			Type:         bundle.TypeOf(sa.Name),
			Size:         bundle.Size{Raw: sa.Size},
			Intermediate: sa.Info.Development || sa.Info.Intermediate,
			SourceMap:    len(sa.Info.Related.SourceMap) > 0,
		}
		if _, ok := maps[sa.Name+".map"]; ok {
			a.SourceMap = true
		}
		b.readContent(a)
		b.assets = append(b.assets, a)
		b.assetsByName[a.Name] = a
	}

	parsed := make([]parsedAsset, len(b.assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)
	for i, a := range b.assets {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			parsed[i] = b.parseAsset(gctx, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("parsing assets: %w", err)
	}

	for i, a := range b.assets {
		a.Size = parsed[i].size
		metrics.RecordAssetParsed(string(a.Type))
		if parsed[i].modules == nil {
			continue
		}
		for _, ms := range parsed[i].modules.Modules {
			key := ms.ID.Key()
			m, ok := b.modules[key]
			if !ok {
				m = &bundle.Module{
					ID:       ms.ID,
					Key:      key,
					Size:     a.Size.Portion(ms.Size),
					Source:   ms.Source,
					Resolved: true,
				}
				b.addModule(m)
			}
			m.AddAsset(a)
			a.AddModule(m)
		}
	}
	return nil
}

// parseAsset runs on a worker goroutine. It only touches its own asset and
// the concurrency-safe cache, and never lets a failure escape.
func (b *builder) parseAsset(ctx context.Context, a *bundle.Asset) (out parsedAsset) {
	out.size = a.Size
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn().Str("asset", a.Name).Interface("panic", r).Msg("Asset parsing panicked")
			metrics.RecordExtractFailure(string(b.doc.Family))
			out.modules = nil
		}
	}()

	if b.opts.Compression && len(a.Content) > 0 {
		out.size = compressedSize(a.Content)
	}

	if a.Type != bundle.TypeJS {
		return out
	}
	if !b.doc.Family.SizeReport() && len(a.Content) == 0 {
		return out
	}

	x := extract.New()
	defer x.Close()
	res, err := x.Extract(ctx, extract.Input{
		Name:       a.Name,
		Source:     a.Content,
		OutputPath: b.doc.OutputPath,
	}, b.doc.Family, b.doc)
	if err != nil {
		b.log.Warn().Err(err).Str("asset", a.Name).Msg("Module extraction failed")
		metrics.RecordExtractFailure(string(b.doc.Family))
		return out
	}
	out.modules = res
	return out
}

func (b *builder) addModule(m *bundle.Module) {
	b.modules[m.Key] = m
	b.moduleOrder = append(b.moduleOrder, m)
}

// skipAsset reports assets that carry no content of their own.
func (b *builder) skipAsset(sa stats.Asset) bool {
	name := strings.ToLower(path.Base(sa.Name))
	switch {
	case strings.HasSuffix(name, ".map"):
		return true
	case strings.HasPrefix(name, "license") || strings.HasSuffix(name, ".license.txt"):
		return true
	case bundle.TypeOf(sa.Name) == bundle.TypeJS && len(sa.Chunks) == 0 && !b.flags.IncludeAuxiliaryFiles:
		// Chunkless scripts are placeholders such as copied vendor files.
		// Size-report builds have no chunk listing at all.
		return !b.doc.Family.SizeReport()
	}
	return false
}

func (b *builder) readContent(a *bundle.Asset) {
	if b.opts.Fs == nil || !a.Type.IsText() {
		return
	}
	content, err := afero.ReadFile(b.opts.Fs, a.Name)
	if err != nil {
		if !os.IsNotExist(err) {
			b.log.Warn().Err(err).Str("asset", a.Name).Msg("Reading asset failed")
		}
		return
	}
	a.Content = content
	a.Size.Raw = int64(len(content))
	a.Hash = strconv.FormatUint(xxhash.Sum64(content), 16)
}

// sourceMapIndex collects source map names from the stats assets and from
// listing each asset directory of the output filesystem.
func (b *builder) sourceMapIndex() map[string]struct{} {
	maps := make(map[string]struct{})
	dirs := make(map[string]struct{})
	for _, sa := range b.doc.Assets {
		if strings.HasSuffix(sa.Name, ".map") {
			maps[sa.Name] = struct{}{}
		}
		dirs[path.Dir(sa.Name)] = struct{}{}
	}
	if b.opts.Fs == nil {
		return maps
	}
	for dir := range dirs {
		entries, err := afero.ReadDir(b.opts.Fs, dir)
		if err != nil {
			b.log.Warn().Err(err).Str("dir", dir).Msg("Listing output directory failed")
			continue
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".map") {
				maps[path.Join(dir, e.Name())] = struct{}{}
			}
		}
	}
	return maps
}
