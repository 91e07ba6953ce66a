package graph

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// registry is the single authority for package refs. Refs are assigned on
// first sight of a package path and never change afterwards.
type registry struct {
	byPath  map[string]*bundle.Package
	ordered []*bundle.Package

	versionsByPath map[string]stats.PackageVersion
	versionsByName map[string][]stats.PackageVersion

	ignore []string
}

func newRegistry(versions []stats.PackageVersion, ignore []string) *registry {
	r := &registry{
		byPath:         make(map[string]*bundle.Package),
		versionsByPath: make(map[string]stats.PackageVersion),
		versionsByName: make(map[string][]stats.PackageVersion),
		ignore:         ignore,
	}
	for _, v := range versions {
		if v.Path != "" {
			r.versionsByPath[normalizePackagePath(v.Path)] = v
		}
		r.versionsByName[v.Name] = append(r.versionsByName[v.Name], v)
	}
	return r
}

// resolve returns the package owning a cleaned module path.
func (r *registry) resolve(modulePath string) *bundle.Package {
	name, pkgPath, kind := packageOf(modulePath)
	if p, ok := r.byPath[pkgPath]; ok {
		return p
	}

	p := &bundle.Package{
		Ref:  len(r.ordered) + 1,
		Name: name,
		Path: pkgPath,
		Kind: kind,
	}
	if kind == bundle.KindLibrary {
		if v, ok := r.version(name, pkgPath); ok {
			p.Version = v.Version
			p.SideEffects = v.SideEffects
		}
		p.Ignored = r.ignored(name)
	}
	r.byPath[pkgPath] = p
	r.ordered = append(r.ordered, p)
	return p
}

// version looks the package up by install path, then by name when exactly
// one version of that name is installed.
func (r *registry) version(name, pkgPath string) (stats.PackageVersion, bool) {
	normalized := normalizePackagePath(pkgPath)
	if v, ok := r.versionsByPath[normalized]; ok {
		return v, true
	}
	for p, v := range r.versionsByPath {
		if strings.HasSuffix(normalized, "/"+p) || strings.HasSuffix(p, "/"+normalized) {
			return v, true
		}
	}
	if list := r.versionsByName[name]; len(list) == 1 {
		return list[0], true
	}
	return stats.PackageVersion{}, false
}

func (r *registry) ignored(name string) bool {
	for _, pattern := range r.ignore {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// packageOf maps a module path to its package name, package path and kind.
// The package path runs up to and including the last node_modules/<name>
// segment; scoped names take two segments and `~` aliases node_modules.
func packageOf(modulePath string) (name, pkgPath string, kind bundle.PackageKind) {
	if isInternal(modulePath) {
		return bundle.WebpackInternal, bundle.WebpackInternal, bundle.KindInternal
	}

	segs := strings.Split(modulePath, "/")
	last := -1
	for i, s := range segs {
		if (s == "node_modules" || s == "~") && i+1 < len(segs) {
			last = i
		}
	}
	if last < 0 {
		return bundle.SourceCode, bundle.SourceCode, bundle.KindSource
	}

	end := last + 2
	name = segs[last+1]
	if strings.HasPrefix(name, "@") && last+2 < len(segs) {
		name += "/" + segs[last+2]
		end++
	}
	if name == "" {
		return bundle.SourceCode, bundle.SourceCode, bundle.KindSource
	}
	return name, strings.Join(segs[:end], "/"), bundle.KindLibrary
}

func isInternal(p string) bool {
	for _, prefix := range []string{"webpack/", "(webpack)", "external ", "multi ", "ignored ", "container entry", "provide shared", "consume shared"} {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// cleanPath reduces a module identifier to a file path: loaders, type
// prefixes, queries and the concatenation suffix are removed.
func cleanPath(identifier string) string {
	p := strings.ReplaceAll(identifier, "\\", "/")
	if i := strings.LastIndex(p, "!"); i >= 0 && !isInternal(p) {
		p = p[i+1:]
	}
	if strings.Contains(p, "|") && !isInternal(p) {
		parts := strings.Split(p, "|")
		p = parts[len(parts)-1]
		for _, part := range parts {
			if strings.HasPrefix(part, "/") || strings.HasPrefix(part, "./") || strings.Contains(part, "node_modules") {
				p = part
				break
			}
		}
	}
	if i := strings.Index(p, " + "); i >= 0 && strings.HasSuffix(p, " modules") {
		p = p[:i]
	}
	if i := strings.IndexByte(p, '?'); i > 0 {
		p = p[:i]
	}
	return strings.TrimSpace(p)
}

func normalizePackagePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(path.Clean(p), "/")
}
