package parser

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

// Node is one flattened syntax node. Nodes reference each other by slice
// index instead of pointers, so the tree has no cycles and a subtree swap is
// an index-slot operation.
type Node struct {
	Index     int
	Parent    int // -1 for the root
	Kind      string
	Named     bool
	StartByte int
	EndByte   int
	StartLine int // 1-based
	StartCol  int // 1-based
	EndLine   int
	Children  []int
	NamedKids []int
}

// Arena holds the flattened tree for one parsed source unit.
type Arena struct {
	src   []byte
	path  string
	nodes []Node
	kind  engine.SyntaxKind
	valid bool
}

// Valid reports whether the parse produced a tree free of error or missing
// nodes. Structural rules only run over valid arenas.
func (a *Arena) Valid() bool { return a != nil && a.valid }

// Kind returns the detected syntax kind of the parsed unit.
func (a *Arena) Kind() engine.SyntaxKind {
	if a == nil {
		return engine.KindUnparseable
	}
	return a.kind
}

// Len returns the node count.
func (a *Arena) Len() int { return len(a.nodes) }

// Root returns a view of the root node.
func (a *Arena) Root() NodeView { return NodeView{a: a, idx: 0} }

// At returns a view of the node at index i. Indices come from prior
// traversals and are trusted.
func (a *Arena) At(i int) NodeView { return NodeView{a: a, idx: i} }

// Source returns the raw bytes the arena was built from.
func (a *Arena) Source() []byte { return a.src }

// Walk visits every node in document (pre-)order. Returning false from the
// visitor prunes the subtree.
func (a *Arena) Walk(visit func(NodeView) bool) {
	if a == nil || len(a.nodes) == 0 {
		return
	}
	var rec func(int)
	rec = func(i int) {
		if !visit(NodeView{a: a, idx: i}) {
			return
		}
		for _, c := range a.nodes[i].Children {
			rec(c)
		}
	}
	rec(0)
}

// NodeView is a cheap handle over one arena slot.
type NodeView struct {
	a   *Arena
	idx int
}

// UnitKind exposes the syntax kind of the unit the node belongs to, so
// matchers can vary by module flavor without a side channel.
func (v NodeView) UnitKind() engine.SyntaxKind { return v.a.kind }

// FilePath exposes the path of the unit the node belongs to.
func (v NodeView) FilePath() string { return v.a.path }

func (v NodeView) Index() int     { return v.idx }
func (v NodeView) Kind() string   { return v.a.nodes[v.idx].Kind }
func (v NodeView) Named() bool    { return v.a.nodes[v.idx].Named }
func (v NodeView) StartByte() int { return v.a.nodes[v.idx].StartByte }
func (v NodeView) EndByte() int   { return v.a.nodes[v.idx].EndByte }
func (v NodeView) StartLine() int { return v.a.nodes[v.idx].StartLine }
func (v NodeView) StartCol() int  { return v.a.nodes[v.idx].StartCol }
func (v NodeView) EndLine() int   { return v.a.nodes[v.idx].EndLine }

// Text returns the source slice covered by the node.
func (v NodeView) Text() string {
	n := v.a.nodes[v.idx]
	return string(v.a.src[n.StartByte:n.EndByte])
}

// Parent returns the parent view, or ok=false at the root.
func (v NodeView) Parent() (NodeView, bool) {
	p := v.a.nodes[v.idx].Parent
	if p < 0 {
		return NodeView{}, false
	}
	return NodeView{a: v.a, idx: p}, true
}

// NamedChildCount returns the number of named children.
func (v NodeView) NamedChildCount() int { return len(v.a.nodes[v.idx].NamedKids) }

// NamedChild returns the i-th named child; ok=false when out of range.
func (v NodeView) NamedChild(i int) (NodeView, bool) {
	kids := v.a.nodes[v.idx].NamedKids
	if i < 0 || i >= len(kids) {
		return NodeView{}, false
	}
	return NodeView{a: v.a, idx: kids[i]}, true
}

// FirstChildOfKind scans named children for the first of the given kind.
func (v NodeView) FirstChildOfKind(kind string) (NodeView, bool) {
	for _, c := range v.a.nodes[v.idx].NamedKids {
		if v.a.nodes[c].Kind == kind {
			return NodeView{a: v.a, idx: c}, true
		}
	}
	return NodeView{}, false
}

// HasAncestor walks up the parent chain and reports whether any ancestor
// satisfies the predicate.
func (v NodeView) HasAncestor(pred func(NodeView) bool) bool {
	cur := v
	for {
		p, ok := cur.Parent()
		if !ok {
			return false
		}
		if pred(p) {
			return true
		}
		cur = p
	}
}

// flatten copies a parsed tree-sitter tree into the arena, pre-order.
func (a *Arena) flatten(n *sitter.Node, parent int) int {
	kind := n.Type()
	if n.IsMissing() {
		// Missing nodes report the expected token's type; normalize so
		// validity checks see them.
		kind = "MISSING"
	}

	idx := len(a.nodes)
	a.nodes = append(a.nodes, Node{
		Index:     idx,
		Parent:    parent,
		Kind:      kind,
		Named:     n.IsNamed(),
		StartByte: int(n.StartByte()),
		EndByte:   int(n.EndByte()),
		StartLine: int(n.StartPoint().Row) + 1,
		StartCol:  int(n.StartPoint().Column) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	})

	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		ci := a.flatten(c, idx)
		a.nodes[idx].Children = append(a.nodes[idx].Children, ci)
		if c.IsNamed() {
			a.nodes[idx].NamedKids = append(a.nodes[idx].NamedKids, ci)
		}
	}
	return idx
}
