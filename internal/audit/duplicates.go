package audit

import (
	"context"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/mod/semver"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// families groups interchangeable libraries under one functional name.
var families = map[string][]string{
	"date":       {"moment", "dayjs", "date-fns", "luxon", "@js-joda/core", "moment-timezone"},
	"lodash":     {"lodash", "lodash-es", "underscore", "lodash.*"},
	"http":       {"axios", "superagent", "got", "ky", "node-fetch", "cross-fetch", "isomorphic-fetch", "whatwg-fetch"},
	"polyfill":   {"core-js", "@babel/polyfill", "babel-polyfill", "polyfill-library"},
	"promise":    {"bluebird", "q", "es6-promise", "promise-polyfill"},
	"uuid":       {"uuid", "nanoid", "shortid"},
	"classnames": {"classnames", "clsx"},
	"markdown":   {"marked", "markdown-it", "showdown", "remarkable"},
	"react":      {"react", "preact"},
	"jquery":     {"jquery", "zepto", "cash-dom"},
	"animation":  {"animejs", "gsap", "velocity-animate"},
	"emitter":    {"events", "eventemitter3", "mitt", "tiny-emitter"},
}

var familyOf = func() map[string]string {
	m := make(map[string]string)
	for family, names := range families {
		for _, n := range names {
			m[n] = family
		}
	}
	return m
}()

// Family returns the functional family of a package name. Packages outside
// every family form a family of their own.
func Family(name string) string {
	if f, ok := familyOf[name]; ok {
		return f
	}
	for pattern, f := range familyOf {
		if strings.HasSuffix(pattern, ".*") && strings.HasPrefix(name, strings.TrimSuffix(pattern, "*")) {
			return f
		}
	}
	return name
}

// checkDuplicates flags families bundled from more than one package path.
// Every copy beyond the largest one in a family counts as wasted bytes.
func checkDuplicates(_ context.Context, v *View, _ Settings) (*Finding, error) {
	libs := v.Libraries()
	if len(libs) == 0 {
		return nil, nil
	}

	byFamily := make(map[string][]*bundle.PackageGroup)
	var order []string
	var total int64
	for _, g := range libs {
		f := Family(g.Package.Name)
		if _, ok := byFamily[f]; !ok {
			order = append(order, f)
		}
		byFamily[f] = append(byFamily[f], g)
		total += g.Size.Raw
	}

	detail := &bundle.Detail{Type: bundle.DetailTable, Headings: []string{"Family", "Packages", "Wasted"}}
	var wasted int64
	for _, f := range order {
		groups := byFamily[f]
		if len(groups) < 2 {
			continue
		}
		sort.SliceStable(groups, func(i, j int) bool {
			if groups[i].Package.Name != groups[j].Package.Name {
				return groups[i].Package.Name < groups[j].Package.Name
			}
			return semver.Compare(canonicalVersion(groups[i].Package.Version), canonicalVersion(groups[j].Package.Version)) < 0
		})

		var largest, sum int64
		labels := make([]string, len(groups))
		for i, g := range groups {
			labels[i] = g.Package.Name
			if g.Package.Version != "" {
				labels[i] += "@" + g.Package.Version
			}
			sum += g.Size.Raw
			if g.Size.Raw > largest {
				largest = g.Size.Raw
			}
		}
		wasted += sum - largest
		detail.Rows = append(detail.Rows, []string{f, strings.Join(labels, ", "), humanize.IBytes(uint64(sum - largest))})
	}

	if len(detail.Rows) == 0 {
		return &Finding{Score: 1}, nil
	}

	// Any duplicated family caps the score at Warn; wasted bytes lower it.
	share := 0.0
	if total > 0 {
		share = float64(wasted) / float64(total)
	}
	return &Finding{Score: 0.6 * (1 - clamp01(share*2)), Detail: detail}, nil
}

func canonicalVersion(v string) string {
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
