package extract

import (
	"context"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/hargabyte/bundlescope/internal/parser"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// moduleList is a module hash or array literal found in the AST. minID is the
// offset added to array indices by the Array(n).concat form.
type moduleList struct {
	node  *sitter.Node
	minID int
}

// walker finds the first module list in a pre-order walk.
type walker struct {
	src   []byte
	found *moduleList
}

func extractWrapped(ctx context.Context, x *Extractor, in Input, _ *stats.Document) (*Result, error) {
	tree, err := x.parser.Parse(ctx, in.Source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()
	tree.Name = in.Name

	w := &walker{src: in.Source}
	w.visit(tree.Root)

	if w.found == nil {
		if pe := tree.FirstError(); pe != nil {
			return nil, pe
		}
		return newResult(), nil
	}
	return w.locations(w.found), nil
}

func (w *walker) visit(n *sitter.Node) {
	if n == nil || w.found != nil {
		return
	}

	switch n.Type() {
	case "program":
		for _, stmt := range parser.NamedChildren(n) {
			if stmt.Type() == "expression_statement" {
				if list := w.topLevelIIFE(stmt); list != nil {
					w.found = list
					return
				}
			}
			w.visit(stmt)
			if w.found != nil {
				return
			}
		}

	case "assignment_expression":
		if list := w.exportsModules(n); list != nil {
			w.found = list
			return
		}
		w.visit(n.ChildByFieldName("right"))

	case "call_expression":
		if list := w.callShapes(n); list != nil {
			w.found = list
			return
		}
		// Plugins and library output targets may wrap the module list in
		// extra IIFEs, so only the arguments are searched further.
		for _, arg := range parser.CallArguments(n) {
			w.visit(arg)
		}

	default:
		for _, c := range parser.NamedChildren(n) {
			w.visit(c)
		}
	}
}

// exportsModules matches `exports.modules = <hash>`.
func (w *walker) exportsModules(n *sitter.Node) *moduleList {
	left := parser.Field(n, "left")
	right := parser.Field(n, "right")
	if left == nil || right == nil || left.Type() != "member_expression" {
		return nil
	}
	obj := parser.Field(left, "object")
	prop := left.ChildByFieldName("property")
	if obj == nil || prop == nil || obj.Content(w.src) != "exports" || prop.Content(w.src) != "modules" {
		return nil
	}
	if !w.isModulesHash(right) {
		return nil
	}
	return &moduleList{node: right}
}

// topLevelIIFE matches a program-level self-invoking function with neither
// arguments nor parameters whose first variable declaration initializes the
// module list.
func (w *walker) topLevelIIFE(stmt *sitter.Node) *moduleList {
	exprs := parser.NamedChildren(stmt)
	if len(exprs) == 0 {
		return nil
	}
	call := parser.Unparen(exprs[0])
	if call.Type() == "unary_expression" {
		call = parser.Field(call, "argument")
	}
	if call == nil || call.Type() != "call_expression" {
		return nil
	}
	return w.selfInvokingList(call)
}

// selfInvokingList inspects `(function(){ var m = <list>; ... })()`.
func (w *walker) selfInvokingList(call *sitter.Node) *moduleList {
	fn := parser.Field(call, "function")
	if !parser.IsFunction(fn) || len(parser.CallArguments(call)) != 0 || parser.FunctionParams(fn) != 0 {
		return nil
	}
	return w.firstDeclaredList(parser.FunctionBody(fn))
}

func (w *walker) firstDeclaredList(body *sitter.Node) *moduleList {
	if body == nil || body.Type() != "statement_block" {
		return nil
	}
	for _, stmt := range parser.NamedChildren(body) {
		switch stmt.Type() {
		case "variable_declaration", "lexical_declaration":
		default:
			continue
		}
		for _, decl := range parser.NamedChildren(stmt) {
			if decl.Type() != "variable_declarator" {
				continue
			}
			if list := w.modulesList(parser.Field(decl, "value")); list != nil {
				return list
			}
		}
		return nil
	}
	return nil
}

func (w *walker) callShapes(call *sitter.Node) *moduleList {
	callee := parser.Field(call, "function")
	args := parser.CallArguments(call)
	if callee == nil {
		return nil
	}

	// (function(modules){ ...runtime... })(<list>)
	if parser.IsFunction(callee) && callee.ChildByFieldName("name") == nil && len(args) == 1 {
		if list := w.simpleModulesList(args[0]); list != nil {
			return list
		}
	}

	// wrapper(function(){ return <list> })
	if len(args) == 1 && parser.IsFunction(args[0]) && parser.FunctionParams(args[0]) == 0 {
		if list := w.returnedList(args[0]); list != nil {
			return list
		}
	}

	// Nested (function(){ var m = <list>; })()
	if list := w.selfInvokingList(call); list != nil {
		return list
	}

	// webpackJsonp([<chunks>], <modules>, ...)
	if callee.Type() == "identifier" && w.mayBeAsyncChunkArguments(args) {
		if list := w.modulesList(args[1]); list != nil {
			return list
		}
	}

	// (self.webpackChunk = self.webpackChunk || []).push([[<chunks>], <modules>, ...])
	if list := w.asyncChunkPush(callee, args); list != nil {
		return list
	}

	// globalObject.chunkCallback([<chunks>], <modules>)
	if callee.Type() == "member_expression" && len(args) == 2 && w.isChunkIDs(args[0]) {
		if list := w.modulesList(args[1]); list != nil {
			return list
		}
	}

	return nil
}

func (w *walker) returnedList(fn *sitter.Node) *moduleList {
	body := parser.FunctionBody(fn)
	if body == nil {
		return nil
	}
	if body.Type() != "statement_block" {
		return w.simpleModulesList(parser.Unparen(body))
	}
	for _, stmt := range parser.NamedChildren(body) {
		if stmt.Type() != "return_statement" {
			continue
		}
		values := parser.NamedChildren(stmt)
		if len(values) == 1 {
			return w.simpleModulesList(parser.Unparen(values[0]))
		}
		return nil
	}
	return nil
}

func (w *walker) asyncChunkPush(callee *sitter.Node, args []*sitter.Node) *moduleList {
	if callee.Type() != "member_expression" || len(args) != 1 || args[0].Type() != "array" {
		return nil
	}
	prop := callee.ChildByFieldName("property")
	obj := parser.Field(callee, "object")
	if prop == nil || prop.Content(w.src) != "push" || obj == nil || obj.Type() != "assignment_expression" {
		return nil
	}
	elems := w.arrayElements(args[0])
	if !w.mayBeAsyncChunkArguments(elems) {
		return nil
	}
	return w.modulesList(elems[1])
}

func (w *walker) mayBeAsyncChunkArguments(args []*sitter.Node) bool {
	return len(args) >= 2 && args[0] != nil && w.isChunkIDs(args[0])
}

func (w *walker) isChunkIDs(n *sitter.Node) bool {
	if n == nil || n.Type() != "array" {
		return false
	}
	for _, e := range w.arrayElements(n) {
		if !w.isModuleID(e) {
			return false
		}
	}
	return true
}

// modulesList returns the module list at n in any supported literal form.
func (w *walker) modulesList(n *sitter.Node) *moduleList {
	n = parser.Unparen(n)
	if list := w.simpleModulesList(n); list != nil {
		return list
	}
	return w.optimizedModulesArray(n)
}

func (w *walker) simpleModulesList(n *sitter.Node) *moduleList {
	if w.isModulesHash(n) || w.isModulesArray(n) {
		return &moduleList{node: n}
	}
	return nil
}

// optimizedModulesArray matches `Array(<minId>).concat([<modules>])`.
func (w *walker) optimizedModulesArray(n *sitter.Node) *moduleList {
	if n == nil || n.Type() != "call_expression" {
		return nil
	}
	callee := parser.Field(n, "function")
	args := parser.CallArguments(n)
	if callee == nil || callee.Type() != "member_expression" || len(args) != 1 || !w.isModulesArray(args[0]) {
		return nil
	}
	prop := callee.ChildByFieldName("property")
	inner := parser.Field(callee, "object")
	if prop == nil || prop.Content(w.src) != "concat" || inner == nil || inner.Type() != "call_expression" {
		return nil
	}
	ctor := parser.Field(inner, "function")
	if ctor == nil || ctor.Type() != "identifier" || ctor.Content(w.src) != "Array" {
		return nil
	}
	minID := 0
	switch ctorArgs := parser.CallArguments(inner); len(ctorArgs) {
	case 0:
	case 1:
		if !w.isNumericID(ctorArgs[0]) {
			return nil
		}
		n, err := strconv.Atoi(ctorArgs[0].Content(w.src))
		if err != nil {
			return nil
		}
		minID = n
	default:
		return nil
	}
	return &moduleList{node: args[0], minID: minID}
}

func (w *walker) isModulesHash(n *sitter.Node) bool {
	if n == nil || n.Type() != "object" {
		return false
	}
	for _, prop := range parser.NamedChildren(n) {
		if prop.Type() != "pair" || !w.isModuleWrapper(parser.Field(prop, "value")) {
			return false
		}
	}
	return true
}

func (w *walker) isModulesArray(n *sitter.Node) bool {
	if n == nil || n.Type() != "array" {
		return false
	}
	for _, e := range w.arrayElements(n) {
		if e != nil && !w.isModuleWrapper(e) {
			return false
		}
	}
	return true
}

// isModuleWrapper accepts an anonymous function, a module id, or an
// [id, ...args] array left behind by deduplication passes.
func (w *walker) isModuleWrapper(n *sitter.Node) bool {
	n = parser.Unparen(n)
	if n == nil {
		return false
	}
	if parser.IsFunction(n) {
		return n.ChildByFieldName("name") == nil
	}
	if w.isModuleID(n) {
		return true
	}
	if n.Type() == "array" {
		elems := w.arrayElements(n)
		return len(elems) > 1 && w.isModuleID(elems[0])
	}
	return false
}

func (w *walker) isModuleID(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	return n.Type() == "string" || w.isNumericID(n)
}

func (w *walker) isNumericID(n *sitter.Node) bool {
	return n != nil && n.Type() == "number" && parser.IsDigits(n.Content(w.src))
}

// arrayElements returns the positional elements of an array literal. Holes
// are returned as nil entries so indices line up with runtime indices.
func (w *walker) arrayElements(n *sitter.Node) []*sitter.Node {
	var elems []*sitter.Node
	var pending *sitter.Node
	seen := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case c.Type() == ",":
			elems = append(elems, pending)
			pending = nil
			seen = false
		case c.IsNamed() && c.Type() != "comment":
			pending = parser.Unparen(c)
			seen = true
		}
	}
	if seen {
		elems = append(elems, pending)
	}
	return elems
}

// locations maps every module of the list to its source slice.
func (w *walker) locations(list *moduleList) *Result {
	res := newResult()
	n := list.node
	switch n.Type() {
	case "object":
		for _, prop := range parser.NamedChildren(n) {
			id, ok := w.keyID(prop.ChildByFieldName("key"))
			if !ok {
				continue
			}
			res.add(w.slice(id, parser.Field(prop, "value")))
		}
	case "array":
		for i, e := range w.arrayElements(n) {
			if e == nil {
				continue
			}
			res.add(w.slice(stats.NumericID(list.minID+i), e))
		}
	}
	return res
}

func (w *walker) keyID(key *sitter.Node) (stats.ID, bool) {
	if key == nil {
		return stats.ID{}, false
	}
	switch key.Type() {
	case "number":
		return stats.ID{Value: key.Content(w.src), Numeric: true}, true
	case "string":
		return stats.StringID(parser.StringValue(key, w.src)), true
	case "property_identifier":
		return stats.StringID(key.Content(w.src)), true
	}
	return stats.ID{}, false
}

func (w *walker) slice(id stats.ID, n *sitter.Node) ModuleSource {
	start, end := int(n.StartByte()), int(n.EndByte())
	return ModuleSource{
		ID:     id,
		Start:  start,
		End:    end,
		Size:   int64(end - start),
		Source: string(w.src[start:end]),
	}
}
