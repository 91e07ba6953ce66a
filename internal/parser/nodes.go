package parser

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// NamedChildren returns the named children of n, skipping comments.
func NamedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Unparen strips any number of enclosing parenthesized expressions.
func Unparen(n *sitter.Node) *sitter.Node {
	for n != nil && n.Type() == "parenthesized_expression" {
		inner := NamedChildren(n)
		if len(inner) != 1 {
			return n
		}
		n = inner[0]
	}
	return n
}

// Field returns the child at the named field, with parentheses stripped.
func Field(n *sitter.Node, name string) *sitter.Node {
	if n == nil {
		return nil
	}
	return Unparen(n.ChildByFieldName(name))
}

// IsFunction reports whether n is a function or arrow function expression.
// Grammar revisions disagree on the name of the function expression node, so
// both spellings are accepted.
func IsFunction(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "function", "function_expression", "arrow_function":
		return true
	}
	return false
}

// FunctionParams returns the number of declared parameters of a function
// node. An arrow function with a bare identifier parameter counts as one.
func FunctionParams(n *sitter.Node) int {
	if params := n.ChildByFieldName("parameters"); params != nil {
		return len(NamedChildren(params))
	}
	if n.ChildByFieldName("parameter") != nil {
		return 1
	}
	return 0
}

// FunctionBody returns the body of a function node.
func FunctionBody(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	return n.ChildByFieldName("body")
}

// CallArguments returns the argument expressions of a call_expression, with
// parentheses stripped.
func CallArguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	nodes := NamedChildren(args)
	for i, a := range nodes {
		nodes[i] = Unparen(a)
	}
	return nodes
}

// StringValue returns the unquoted content of a string literal node.
func StringValue(n *sitter.Node, source []byte) string {
	text := n.Content(source)
	if len(text) >= 2 {
		q := text[0]
		if (q == '"' || q == '\'' || q == '`') && text[len(text)-1] == q {
			text = text[1 : len(text)-1]
		}
	}
	return text
}

// IsDigits reports whether s is a non-empty string of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}
