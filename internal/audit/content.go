package audit

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/htmlscan"
)

// checkMixedContent flags scripts that bundle application code together
// with library code.
func checkMixedContent(_ context.Context, v *View, _ Settings) (*Finding, error) {
	var total, mixed int64
	detail := &bundle.Detail{Type: bundle.DetailList}
	scripts := 0
	for _, a := range v.Assets {
		if a.Type != bundle.TypeJS || a.Intermediate || len(a.Modules) == 0 {
			continue
		}
		scripts++
		total += a.Size.Raw
		var first, third bool
		for _, m := range a.Modules {
			if m.Package == nil {
				continue
			}
			switch m.Package.Kind {
			case bundle.KindSource:
				first = true
			case bundle.KindLibrary:
				third = true
			}
		}
		if first && third {
			mixed += a.Size.Raw
			detail.Items = append(detail.Items, a.Name)
		}
	}
	if scripts == 0 {
		return nil, nil
	}
	return ratioFinding(mixed, total, detail), nil
}

func checkSourceMaps(_ context.Context, v *View, _ Settings) (*Finding, error) {
	var total, missing int64
	detail := &bundle.Detail{Type: bundle.DetailList}
	for _, a := range v.Assets {
		if (a.Type != bundle.TypeJS && a.Type != bundle.TypeCSS) || a.Intermediate {
			continue
		}
		total += a.Size.Raw
		if !a.SourceMap {
			missing += a.Size.Raw
			detail.Items = append(detail.Items, a.Name)
		}
	}
	if total == 0 && len(detail.Items) == 0 {
		return nil, nil
	}
	return ratioFinding(missing, total, detail), nil
}

func checkHTTP2(_ context.Context, v *View, s Settings) (*Finding, error) {
	var count int
	for _, a := range v.InitialAssets() {
		if a.Type == bundle.TypeJS || a.Type == bundle.TypeCSS {
			count++
		}
	}
	if count == 0 {
		return nil, nil
	}
	limit := float64(s.MaxInitialAssets)
	throttle := &bundle.Throttle{Good: limit, Bad: 2 * limit}
	f := &Finding{Score: ScoreBetween(float64(count), throttle.Good, throttle.Bad), Throttle: throttle}
	if count > s.MaxInitialAssets {
		f.Description = fmt.Sprintf("%d initial scripts and stylesheets are requested; keep it to %d.", count, s.MaxInitialAssets)
	}
	return f, nil
}

// checkPreconnect compares the origins referenced by HTML documents with
// their preconnect and dns-prefetch hints.
func checkPreconnect(_ context.Context, v *View, _ Settings) (*Finding, error) {
	origins := make(map[string]struct{})
	hinted := make(map[string]struct{})
	var order []string
	documents := 0

	for _, a := range v.Assets {
		if a.Type != bundle.TypeHTML || len(a.Content) == 0 {
			continue
		}
		documents++
		tags, err := htmlscan.Scan(a.Content)
		if err != nil && len(tags) == 0 {
			return nil, fmt.Errorf("scanning %s: %w", a.Name, err)
		}
		refs := append(htmlscan.ScriptSources(tags), htmlscan.Stylesheets(tags)...)
		for _, ref := range refs {
			if o := origin(ref); o != "" {
				if _, seen := origins[o]; !seen {
					origins[o] = struct{}{}
					order = append(order, o)
				}
			}
		}
		for _, h := range htmlscan.Hints(tags) {
			if o := origin(h); o != "" {
				hinted[o] = struct{}{}
			}
		}
	}
	if documents == 0 {
		return nil, nil
	}

	detail := &bundle.Detail{Type: bundle.DetailList}
	for _, o := range order {
		if _, ok := hinted[o]; !ok {
			detail.Items = append(detail.Items, o)
		}
	}
	return ratioFinding(int64(len(detail.Items)), int64(len(order)), detail), nil
}

// origin returns the host of an absolute or protocol-relative URL, or ""
// for same-origin references.
func origin(ref string) string {
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}

// checkESM flags library bytes that only come from CommonJS modules.
func checkESM(_ context.Context, v *View, _ Settings) (*Finding, error) {
	libs := v.Libraries()
	if len(libs) == 0 {
		return nil, nil
	}
	var total, cjs int64
	detail := &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Library", "Size"}}
	for _, g := range libs {
		total += g.Size.Raw
		esm := false
		for _, m := range g.Modules {
			if m.ESM {
				esm = true
				break
			}
		}
		if !esm {
			cjs += g.Size.Raw
			detail.Rows = append(detail.Rows, []string{g.Package.Name, humanize.IBytes(uint64(g.Size.Raw))})
		}
	}
	return ratioFinding(cjs, total, detail), nil
}

// checkTreeShaking flags ES module library code kept without proven export
// usage, either because the bundler reported no usage or bailed out.
func checkTreeShaking(_ context.Context, v *View, _ Settings) (*Finding, error) {
	var total, unshaken int64
	seen := make(map[string]struct{})
	detail := &bundle.Detail{Type: bundle.DetailList}
	for _, g := range v.Libraries() {
		for _, m := range g.Modules {
			if !m.ESM {
				continue
			}
			total += m.Size.Raw
			if m.TreeShaking.Known && len(m.TreeShaking.Bailouts) == 0 {
				continue
			}
			unshaken += m.Size.Raw
			if _, dup := seen[g.Package.Name]; !dup {
				seen[g.Package.Name] = struct{}{}
				detail.Items = append(detail.Items, g.Package.Name)
			}
		}
	}
	if total == 0 {
		return nil, nil
	}
	return ratioFinding(unshaken, total, detail), nil
}

func checkUncontrolled(_ context.Context, v *View, _ Settings) (*Finding, error) {
	libs := v.Libraries()
	if len(libs) == 0 {
		return nil, nil
	}
	detail := &bundle.Detail{Type: bundle.DetailList}
	for _, g := range libs {
		if g.Package.Version == "" {
			detail.Items = append(detail.Items, g.Package.Name)
		}
	}
	return ratioFinding(int64(len(detail.Items)), int64(len(libs)), detail), nil
}
