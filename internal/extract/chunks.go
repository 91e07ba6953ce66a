package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/hargabyte/bundlescope/internal/parser"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// FindRequiredChunks returns the chunk ids a module loads through lowered
// dynamic imports: `r.e(<id>)` and `r.O(0, [<ids>], ...)`.
func (x *Extractor) FindRequiredChunks(ctx context.Context, moduleSource string) ([]stats.ID, error) {
	// Module bodies are function expressions, which only parse as
	// expressions when wrapped.
	src := []byte("(" + moduleSource + ")")
	tree, err := x.parser.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{src: src}
	var ids []stats.ID
	seen := make(map[string]struct{})
	addID := func(n *sitter.Node) {
		id, ok := w.literalID(n)
		if !ok {
			return
		}
		if _, dup := seen[id.Key()]; dup {
			return
		}
		seen[id.Key()] = struct{}{}
		ids = append(ids, id)
	}

	for _, call := range tree.FindNodesByType("call_expression") {
		callee := parser.Field(call, "function")
		if callee == nil || callee.Type() != "member_expression" {
			continue
		}
		prop := callee.ChildByFieldName("property")
		if prop == nil {
			continue
		}
		args := parser.CallArguments(call)

		switch prop.Content(src) {
		case "e":
			if len(args) == 1 {
				addID(args[0])
			}
		case "O":
			if len(args) < 2 || args[0].Content(src) != "0" || args[1].Type() != "array" {
				continue
			}
			for _, e := range w.arrayElements(args[1]) {
				addID(e)
			}
		}
	}
	return ids, nil
}

func (w *walker) literalID(n *sitter.Node) (stats.ID, bool) {
	switch {
	case n == nil:
		return stats.ID{}, false
	case w.isNumericID(n):
		return stats.ID{Value: n.Content(w.src), Numeric: true}, true
	case n.Type() == "string":
		return stats.StringID(parser.StringValue(n, w.src)), true
	}
	return stats.ID{}, false
}
