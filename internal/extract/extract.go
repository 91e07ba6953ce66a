// Package extract recovers module boundaries from emitted bundle assets.
//
// Classic module-wrapper bundles embed every module as a function inside a
// hash or array literal; the extractor finds that literal with a single
// pre-order walk over the JavaScript AST. Size-report bundler families report
// per-input sizes directly, so their extraction reads the stats document and
// never parses text.
package extract

import (
	"context"
	"fmt"

	"github.com/hargabyte/bundlescope/internal/parser"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// ModuleSource is one module recovered from an asset.
type ModuleSource struct {
	ID stats.ID
	// Start and End are byte offsets into the asset text. Both are zero for
	// size-report families.
	Start int
	End   int
	// Size is the byte length of the module slice, or the reported size.
	Size int64
	// Source is the module text when it is known.
	Source string
}

// Result holds the modules of one asset in discovery order.
type Result struct {
	Modules []ModuleSource
	index   map[string]int
}

func newResult() *Result {
	return &Result{index: make(map[string]int)}
}

func (r *Result) add(m ModuleSource) {
	if _, dup := r.index[m.ID.Key()]; dup {
		return
	}
	r.index[m.ID.Key()] = len(r.Modules)
	r.Modules = append(r.Modules, m)
}

// Lookup returns the module with the given id.
func (r *Result) Lookup(id stats.ID) (ModuleSource, bool) {
	if r == nil {
		return ModuleSource{}, false
	}
	i, ok := r.index[id.Key()]
	if !ok {
		return ModuleSource{}, false
	}
	return r.Modules[i], true
}

// Len returns the number of recovered modules.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Modules)
}

// Input is one asset handed to the extractor.
type Input struct {
	// Name is the asset name as listed in the stats document.
	Name string
	// Source is the asset text. Unused by size-report families.
	Source []byte
	// OutputPath is the build output directory.
	OutputPath string
}

type extractorFunc func(ctx context.Context, x *Extractor, in Input, doc *stats.Document) (*Result, error)

var extractors = map[stats.Family]extractorFunc{
	stats.FamilyWebpack: extractWrapped,
	stats.FamilyEsbuild: extractReported,
	stats.FamilyRollup:  extractReported,
}

// UnsupportedFamilyError is returned for a family with no extractor.
type UnsupportedFamilyError struct {
	Family stats.Family
}

// Error implements the error interface.
func (e *UnsupportedFamilyError) Error() string {
	return fmt.Sprintf("no module extractor for bundler family %q", e.Family)
}

// Extractor owns a parser and is not safe for concurrent use.
type Extractor struct {
	parser *parser.Parser
}

// New creates an extractor.
func New() *Extractor {
	return &Extractor{parser: parser.New()}
}

// Close releases the underlying parser.
func (x *Extractor) Close() {
	x.parser.Close()
}

// Extract returns the modules contained in one asset.
func (x *Extractor) Extract(ctx context.Context, in Input, family stats.Family, doc *stats.Document) (*Result, error) {
	fn, ok := extractors[family]
	if !ok {
		return nil, &UnsupportedFamilyError{Family: family}
	}
	return fn(ctx, x, in, doc)
}
