// Package tree builds the module-size tree of one asset.
//
// Module display paths are split on "/" and inserted as folder nodes with
// module leaves. Folders holding a single folder are then collapsed into one
// node so deep package paths stay readable.
package tree

import (
	"sort"
	"strings"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// Separator joins the names of collapsed folders.
const Separator = "/"

// Node is a folder or a module leaf.
type Node struct {
	Name string
	// Path is the full display path from the root.
	Path string
	// Modules is set on leaves only. Several modules may share a display
	// path when they differ only by loader or query.
	Modules []*bundle.Module
	// Concatenated lists the paths of modules inlined into this leaf.
	Concatenated []string

	parent   *Node
	children []*Node
	byName   map[string]*Node
	size     *bundle.Size
}

// IsLeaf reports whether the node holds modules.
func (n *Node) IsLeaf() bool {
	return len(n.Modules) > 0
}

// Children returns the child nodes in insertion order.
func (n *Node) Children() []*Node {
	return n.children
}

// Size is the sum of the module sizes below n. It is computed once and
// recomputed after a child is added anywhere below n.
func (n *Node) Size() bundle.Size {
	if n.size != nil {
		return *n.size
	}
	var s bundle.Size
	for _, m := range n.Modules {
		s = s.Add(m.Size)
	}
	for _, c := range n.children {
		s = s.Add(c.Size())
	}
	n.size = &s
	return s
}

func (n *Node) invalidate() {
	for p := n; p != nil; p = p.parent {
		p.size = nil
	}
}

func (n *Node) addChild(c *Node) {
	if n.byName == nil {
		n.byName = make(map[string]*Node)
	}
	c.parent = n
	n.children = append(n.children, c)
	n.byName[c.Name] = c
	n.invalidate()
}

func (n *Node) child(name string) *Node {
	return n.byName[name]
}

// Build creates the tree of the modules of one asset. The root is named
// after the asset.
func Build(asset string, modules []*bundle.Module) *Node {
	root := &Node{Name: asset}
	for _, m := range modules {
		insert(root, m)
	}
	collapse(root)
	return root
}

func insert(root *Node, m *bundle.Module) {
	segs := Segments(DisplayPath(m))
	if len(segs) == 0 {
		return
	}

	n := root
	for i, seg := range segs {
		next := n.child(seg)
		if next == nil {
			next = &Node{Name: seg, Path: strings.Join(segs[:i+1], "/")}
			n.addChild(next)
		}
		n = next
	}

	n.Modules = append(n.Modules, m)
	for _, c := range m.Concatenated {
		n.Concatenated = append(n.Concatenated, DisplayPath(c))
	}
	n.invalidate()
}

// DisplayPath is the path a module is shown under.
func DisplayPath(m *bundle.Module) string {
	for _, p := range []string{m.Name, m.Path, m.Identifier, m.Key} {
		if p != "" {
			return p
		}
	}
	return m.ID.Key()
}

// Segments splits a display path. Empty and "." segments are dropped and
// the "~" alias becomes node_modules.
func Segments(p string) []string {
	p = strings.ReplaceAll(p, "\\", "/")
	var out []string
	for _, s := range strings.Split(p, "/") {
		switch s {
		case "", ".":
			continue
		case "~":
			s = "node_modules"
		}
		out = append(out, s)
	}
	return out
}

// collapse merges every folder whose only child is a folder into that
// child, bottom-up. The root itself is never merged.
func collapse(n *Node) {
	for _, c := range n.children {
		collapse(c)
	}
	n.byName = reindex(n.children)
	if n.parent == nil {
		return
	}
	for len(n.children) == 1 && !n.IsLeaf() {
		only := n.children[0]
		if only.IsLeaf() {
			return
		}
		n.Name += Separator + only.Name
		n.Path = only.Path
		n.children = only.children
		n.byName = only.byName
		for _, gc := range n.children {
			gc.parent = n
		}
		n.size = nil
	}
}

func reindex(children []*Node) map[string]*Node {
	m := make(map[string]*Node, len(children))
	for _, c := range children {
		m[c.Name] = c
	}
	return m
}

// Find returns the node at a display path, following collapsed folders.
func (n *Node) Find(p string) *Node {
	segs := Segments(p)
	cur := n
	for len(segs) > 0 {
		var next *Node
		var used int
		for _, c := range cur.children {
			parts := strings.Split(c.Name, Separator)
			if len(parts) <= len(segs) && strings.Join(segs[:len(parts)], Separator) == c.Name {
				next, used = c, len(parts)
				break
			}
		}
		if next == nil {
			return nil
		}
		cur, segs = next, segs[used:]
	}
	return cur
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the children of the visited node.
func (n *Node) Walk(fn func(n *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}

// Entry is the serializable form of a node.
type Entry struct {
	Name         string      `json:"name" yaml:"name"`
	Path         string      `json:"path,omitempty" yaml:"path,omitempty"`
	Size         bundle.Size `json:"size" yaml:"size"`
	Modules      []string    `json:"modules,omitempty" yaml:"modules,omitempty"`
	Concatenated []string    `json:"concatenated,omitempty" yaml:"concatenated,omitempty"`
	Children     []Entry     `json:"children,omitempty" yaml:"children,omitempty"`
}

// Entry snapshots the tree below n with children sorted by descending raw
// size.
func (n *Node) Entry() Entry {
	e := Entry{Name: n.Name, Path: n.Path, Size: n.Size(), Concatenated: n.Concatenated}
	for _, m := range n.Modules {
		e.Modules = append(e.Modules, m.Key)
	}
	for _, c := range n.children {
		e.Children = append(e.Children, c.Entry())
	}
	sort.SliceStable(e.Children, func(i, j int) bool {
		return e.Children[i].Size.Raw > e.Children[j].Size.Raw
	})
	return e
}
