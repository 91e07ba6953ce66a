package extract

import (
	"context"
	"path"
	"strings"

	"github.com/hargabyte/bundlescope/internal/stats"
)

// extractReported reads per-input sizes of one output from the stats
// document. Inputs reporting zero bytes are kept so the module graph still
// knows they were bundled.
func extractReported(_ context.Context, _ *Extractor, in Input, doc *stats.Document) (*Result, error) {
	res := newResult()
	out, ok := findOutput(doc, in.Name, in.OutputPath)
	if !ok || out.Inputs == nil {
		return res, nil
	}

	for pair := out.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		m := ModuleSource{ID: stats.StringID(pair.Key)}
		v := pair.Value
		switch {
		case v.BytesInOutput > 0:
			m.Size = v.BytesInOutput
		case v.Code != nil:
			m.Size = int64(len(*v.Code))
		default:
			m.Size = v.RenderedLength
		}
		if v.Code != nil {
			m.Source = *v.Code
		}
		res.add(m)
	}
	return res, nil
}

// findOutput locates the output metadata for an asset: exact key first, then
// the key joined with the output directory, then a path-suffix match.
func findOutput(doc *stats.Document, name, outputPath string) (stats.Output, bool) {
	if doc == nil || doc.Outputs == nil {
		return stats.Output{}, false
	}
	if out, ok := doc.Outputs.Get(name); ok {
		return out, true
	}
	if outputPath != "" {
		if out, ok := doc.Outputs.Get(path.Join(outputPath, name)); ok {
			return out, true
		}
	}
	for pair := doc.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		if strings.HasSuffix(pair.Key, "/"+name) {
			return pair.Value, true
		}
	}
	base := path.Base(name)
	for pair := doc.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		if path.Base(pair.Key) == base {
			return pair.Value, true
		}
	}
	return stats.Output{}, false
}
