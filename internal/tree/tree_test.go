package tree

import (
	"strings"
	"testing"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

func mod(name string, raw int64) *bundle.Module {
	return &bundle.Module{Key: name, Name: name, Size: bundle.Size{Raw: raw}}
}

func names(nodes []*Node) string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return strings.Join(out, ",")
}

func TestBuildCollapsesSingleFolders(t *testing.T) {
	root := Build("main.js", []*bundle.Module{
		mod("./src/index.js", 10),
		mod("./src/components/button.js", 5),
		mod("./node_modules/lodash/lib/map.js", 20),
		mod("./~/react/index.js", 7),
	})

	if root.Name != "main.js" {
		t.Errorf("root must keep the asset name, got %q", root.Name)
	}
	if got := names(root.Children()); got != "src,node_modules" {
		t.Fatalf("unexpected top level %s", got)
	}
	if got := root.Size().Raw; got != 42 {
		t.Errorf("expected root size 42, got %d", got)
	}

	src := root.Children()[0]
	if got := names(src.Children()); got != "index.js,components" {
		t.Errorf("unexpected src children %s", got)
	}
	if leaf := src.Find("components/button.js"); leaf == nil || !leaf.IsLeaf() {
		t.Error("a folder must not be merged into its only leaf")
	}

	nm := root.Children()[1]
	if got := names(nm.Children()); got != "lodash/lib,react" {
		t.Errorf("expected lodash folders collapsed, got %s", got)
	}
	if n := root.Find("node_modules/lodash/lib/map.js"); n == nil || n.Size().Raw != 20 {
		t.Error("expected to find map.js through the collapsed folder")
	}
	if n := root.Find("node_modules/react/index.js"); n == nil {
		t.Error("expected ~ alias to resolve under node_modules")
	}
	if root.Find("src/missing.js") != nil {
		t.Error("unexpected node for missing path")
	}
}

func TestBuildNeverMergesRoot(t *testing.T) {
	root := Build("vendor.js", []*bundle.Module{mod("node_modules/a/b/c.js", 1)})
	if root.Name != "vendor.js" {
		t.Fatalf("root renamed to %q", root.Name)
	}
	if got := names(root.Children()); got != "node_modules/a/b" {
		t.Errorf("unexpected collapsed child %s", got)
	}
}

func TestConcatenatedOnLeaf(t *testing.T) {
	parent := mod("./src/index.js + 2 modules", 30)
	parent.Concatenated = []*bundle.Module{mod("./src/a.js", 10), mod("./src/b.js", 5)}

	root := Build("main.js", []*bundle.Module{parent})
	var leaves []*Node
	root.Walk(func(n *Node, _ int) bool {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		return true
	})
	if len(leaves) != 1 {
		t.Fatalf("concatenated modules must not become nodes, got %d leaves", len(leaves))
	}
	if got := strings.Join(leaves[0].Concatenated, ","); got != "./src/a.js,./src/b.js" {
		t.Errorf("unexpected concatenated paths %s", got)
	}
	if root.Size().Raw != 30 {
		t.Errorf("expected parent size only, got %d", root.Size().Raw)
	}
}

func TestSizeMemoInvalidatedOnAdd(t *testing.T) {
	root := Build("main.js", []*bundle.Module{mod("src/a.js", 3)})
	if root.Size().Raw != 3 {
		t.Fatalf("expected 3, got %d", root.Size().Raw)
	}
	insert(root, mod("src/b.js", 4))
	if root.Size().Raw != 7 {
		t.Errorf("expected memo to be invalidated, got %d", root.Size().Raw)
	}
}

func TestSharedDisplayPath(t *testing.T) {
	root := Build("main.js", []*bundle.Module{mod("src/a.css", 3), {Key: "2", Path: "src/a.css", Size: bundle.Size{Raw: 2}}})
	leaf := root.Find("src/a.css")
	if leaf == nil || len(leaf.Modules) != 2 || leaf.Size().Raw != 5 {
		t.Errorf("expected both modules on one leaf, got %+v", leaf)
	}
}

func TestWalkSkipsChildren(t *testing.T) {
	root := Build("main.js", []*bundle.Module{mod("a/x.js", 1), mod("b/y.js", 1)})
	var visited []string
	root.Walk(func(n *Node, depth int) bool {
		visited = append(visited, n.Name)
		return depth == 0
	})
	if got := strings.Join(visited, ","); got != "main.js,a,b" {
		t.Errorf("unexpected walk %s", got)
	}
}

func TestEntrySortedBySize(t *testing.T) {
	root := Build("main.js", []*bundle.Module{mod("a.js", 1), mod("b.js", 9)})
	e := root.Entry()
	if len(e.Children) != 2 || e.Children[0].Name != "b.js" || e.Size.Raw != 10 {
		t.Errorf("unexpected entry %+v", e)
	}
}
