package audit

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

const cacheInvalidationWeight = 2

// BuiltinRules returns the built-in rules in registration order.
func BuiltinRules() []Rule {
	return []Rule{
		{
			ID:          "duplicate-libraries",
			Title:       "Avoid duplicate libraries",
			Description: "Several libraries serving the same purpose, or several copies of one library, are bundled.",
			Weight:      3,
			Check:       checkDuplicates,
		},
		{
			ID:          "large-assets",
			Title:       "Keep initial assets small",
			Description: "Large synchronous assets delay the first render.",
			Weight:      2,
			Check:       checkLargeAssets,
		},
		{
			ID:          "large-libraries",
			Title:       "Avoid large synchronous libraries",
			Description: "Large third-party libraries loaded synchronously delay the first render.",
			Weight:      2,
			Check:       checkLargeLibraries,
		},
		{
			ID:          "minification",
			Title:       "Minify scripts and stylesheets",
			Description: "Assets contain whitespace and formatting that minification would remove.",
			Weight:      2,
			Check:       checkMinification,
		},
		{
			ID:          "mixed-content",
			Title:       "Split first-party and third-party code",
			Description: "Assets mixing application and library code are invalidated on every application change.",
			Weight:      1,
			Check:       checkMixedContent,
		},
		{
			ID:          "source-maps",
			Title:       "Publish source maps",
			Description: "Source maps make production errors debuggable.",
			Weight:      0,
			Check:       checkSourceMaps,
		},
		{
			ID:          "http2",
			Title:       "Limit initial requests",
			Description: "Many initial assets compete for bandwidth even over HTTP/2.",
			Weight:      1,
			Check:       checkHTTP2,
		},
		{
			ID:          "preconnect",
			Title:       "Preconnect to required origins",
			Description: "Third-party origins used by the page are not warmed up with preconnect or dns-prefetch hints.",
			Weight:      1,
			Check:       checkPreconnect,
		},
		{
			ID:          "esm",
			Title:       "Prefer ES module libraries",
			Description: "CommonJS libraries cannot be tree-shaken.",
			Weight:      1,
			Check:       checkESM,
		},
		{
			ID:          "tree-shaking",
			Title:       "Let the bundler drop unused exports",
			Description: "Library modules were included without proven export usage.",
			Weight:      1,
			Check:       checkTreeShaking,
		},
		{
			ID:          "uncontrolled-libraries",
			Title:       "Pin library versions",
			Description: "Bundled libraries without a declared version cannot be tracked.",
			Weight:      0,
			Check:       checkUncontrolled,
		},
	}
}

func checkLargeAssets(_ context.Context, v *View, s Settings) (*Finding, error) {
	limit := s.LargeAssetBytes
	var largest int64
	var large []*bundle.Asset
	for _, a := range v.InitialAssets() {
		if a.Size.Raw > largest {
			largest = a.Size.Raw
		}
		if a.Size.Raw > limit {
			large = append(large, a)
		}
	}
	if len(v.InitialAssets()) == 0 {
		return nil, nil
	}

	throttle := &bundle.Throttle{Good: float64(limit), Bad: float64(4 * limit)}
	f := &Finding{Score: ScoreBetween(float64(largest), throttle.Good, throttle.Bad), Throttle: throttle}
	if len(large) > 0 {
		sort.SliceStable(large, func(i, j int) bool { return large[i].Size.Raw > large[j].Size.Raw })
		f.Detail = &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Asset", "Size", "Gzip"}}
		for _, a := range large {
			f.Detail.Rows = append(f.Detail.Rows, []string{a.Name, humanize.IBytes(uint64(a.Size.Raw)), humanize.IBytes(uint64(a.Size.Gzip))})
		}
		f.Description = fmt.Sprintf("%d initial assets exceed %s.", len(large), humanize.IBytes(uint64(limit)))
	}
	return f, nil
}

func checkLargeLibraries(_ context.Context, v *View, s Settings) (*Finding, error) {
	limit := s.LargeLibraryBytes
	var largest int64
	var large []*bundle.PackageGroup
	var found bool
	for _, g := range v.Libraries() {
		if !g.Sync {
			continue
		}
		found = true
		if g.Size.Raw > largest {
			largest = g.Size.Raw
		}
		if g.Size.Raw > limit {
			large = append(large, g)
		}
	}
	if !found {
		return nil, nil
	}

	throttle := &bundle.Throttle{Good: float64(limit), Bad: float64(4 * limit)}
	f := &Finding{Score: ScoreBetween(float64(largest), throttle.Good, throttle.Bad), Throttle: throttle}
	if len(large) > 0 {
		sort.SliceStable(large, func(i, j int) bool { return large[i].Size.Raw > large[j].Size.Raw })
		f.Detail = &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Library", "Version", "Size"}}
		for _, g := range large {
			f.Detail.Rows = append(f.Detail.Rows, []string{g.Package.Name, g.Package.Version, humanize.IBytes(uint64(g.Size.Raw))})
		}
	}
	return f, nil
}

func checkMinification(_ context.Context, v *View, s Settings) (*Finding, error) {
	var total, wasted int64
	var rows [][]string
	for _, a := range v.Assets {
		if a.Intermediate || (a.Type != bundle.TypeJS && a.Type != bundle.TypeCSS) || len(a.Content) == 0 {
			continue
		}
		minLen, ok := v.Cache.MinifiedLength(a)
		if !ok {
			continue
		}
		raw := int64(len(a.Content))
		total += raw
		savings := raw - minLen
		if savings <= 0 {
			continue
		}
		if float64(savings)/float64(raw) < s.MinifyMinRatio || savings < s.MinifyMinBytes {
			continue
		}
		wasted += savings
		rows = append(rows, []string{a.Name, humanize.IBytes(uint64(raw)), humanize.IBytes(uint64(savings))})
	}
	if total == 0 {
		return nil, nil
	}

	throttle := &bundle.Throttle{Good: 0, Bad: 0.5}
	f := &Finding{Score: ScoreBetween(float64(wasted)/float64(total), throttle.Good, throttle.Bad), Throttle: throttle}
	if len(rows) > 0 {
		f.Detail = &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Asset", "Size", "Savings"}, Rows: rows}
	}
	return f, nil
}

// ratioFinding scores 1 minus the share of bad bytes.
func ratioFinding(bad, total int64, detail *bundle.Detail) *Finding {
	if total <= 0 {
		return &Finding{Score: 1}
	}
	f := &Finding{Score: 1 - float64(bad)/float64(total)}
	if detail != nil && (len(detail.Rows) > 0 || len(detail.Items) > 0) {
		f.Detail = detail
	}
	return f
}
