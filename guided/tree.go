// Package guided models guided navigation documents: an ordered tree of
// readable units annotated with roles and references to text and audio
// resources.
package guided

import "strings"

// NodeID addresses a node inside a Tree. Nodes are stored in document
// order, so the root is always 0.
type NodeID int

// NoNode is returned by lookups that found nothing.
const NoNode NodeID = -1

// RefKind tells what a content reference points at.
type RefKind int

const (
	TextRef RefKind = iota
	AudioRef
	ImageRef
)

func (k RefKind) String() string {
	switch k {
	case TextRef:
		return "text"
	case AudioRef:
		return "audio"
	case ImageRef:
		return "image"
	default:
		return "unknown"
	}
}

// Ref is a reference from a node to a publication resource.
type Ref struct {
	Kind RefKind
	URL  string

	// Interval is parsed from the temporal fragment of audio references.
	Interval TimeInterval
}

// Href returns the URL without its fragment.
func (r Ref) Href() string {
	base, _ := SplitFragment(r.URL)
	return base
}

// Fragment returns the URL fragment without the leading "#".
func (r Ref) Fragment() string {
	_, frag := SplitFragment(r.URL)
	return frag
}

// Text is the inline text carried by a node.
type Text struct {
	Plain    string
	SSML     string
	Language string
}

type node struct {
	parent   NodeID
	sibling  int
	children []NodeID
	roles    RoleSet
	refs     []Ref
	text     *Text
}

// Tree is an immutable guided navigation tree. Parent links are indices into
// the node arena, so the structure has no owning cycles. A Tree is safe for
// concurrent reads.
type Tree struct {
	nodes []node
}

// NewTree builds a tree from its document form. root becomes node 0.
func NewTree(root Object) *Tree {
	t := &Tree{}
	t.add(root, NoNode, 0)
	return t
}

func (t *Tree) add(obj Object, parent NodeID, sibling int) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, node{
		parent:  parent,
		sibling: sibling,
		roles:   NewRoleSet(obj.Roles...),
		refs:    obj.refs(),
		text:    obj.Text.value(),
	})

	children := make([]NodeID, 0, len(obj.Children))
	for i, child := range obj.Children {
		children = append(children, t.add(child, id, i))
	}
	t.nodes[id].children = children
	return id
}

// Root returns the root node.
func (t *Tree) Root() NodeID { return 0 }

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Valid reports whether id addresses a node of this tree.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

// Parent returns the parent of id, or false for the root.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p := t.nodes[id].parent
	return p, p != NoNode
}

// Children returns the children of id in order. The slice must not be
// modified.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].children
}

// Roles returns the role set of id. The set must not be modified.
func (t *Tree) Roles(id NodeID) RoleSet {
	return t.nodes[id].roles
}

// Refs returns the content references of id. The slice must not be modified.
func (t *Tree) Refs(id NodeID) []Ref {
	return t.nodes[id].refs
}

// Ref returns the first reference of the given kind.
func (t *Tree) Ref(id NodeID, kind RefKind) (Ref, bool) {
	for _, r := range t.nodes[id].refs {
		if r.Kind == kind {
			return r, true
		}
	}
	return Ref{}, false
}

// Text returns the inline text of id.
func (t *Tree) Text(id NodeID) (Text, bool) {
	if t.nodes[id].text == nil {
		return Text{}, false
	}
	return *t.nodes[id].text, true
}

// Depth returns the number of ancestors of id.
func (t *Tree) Depth(id NodeID) int {
	depth := 0
	for p := t.nodes[id].parent; p != NoNode; p = t.nodes[p].parent {
		depth++
	}
	return depth
}

// Next returns the document-order successor of id: its first child, else
// its next sibling, else the next sibling of the closest ancestor that has
// one.
func (t *Tree) Next(id NodeID) (NodeID, bool) {
	if children := t.nodes[id].children; len(children) > 0 {
		return children[0], true
	}
	return t.NextAfter(id)
}

// NextAfter returns the first node following the whole subtree of id.
func (t *Tree) NextAfter(id NodeID) (NodeID, bool) {
	for cur := id; ; {
		n := t.nodes[cur]
		if n.parent == NoNode {
			return NoNode, false
		}
		siblings := t.nodes[n.parent].children
		if n.sibling+1 < len(siblings) {
			return siblings[n.sibling+1], true
		}
		cur = n.parent
	}
}

// Previous returns the document-order predecessor of id. It is the exact
// inverse of Next.
func (t *Tree) Previous(id NodeID) (NodeID, bool) {
	n := t.nodes[id]
	if n.parent == NoNode {
		return NoNode, false
	}
	if n.sibling == 0 {
		return n.parent, true
	}
	return t.lastDescendant(t.nodes[n.parent].children[n.sibling-1]), true
}

func (t *Tree) lastDescendant(id NodeID) NodeID {
	for {
		children := t.nodes[id].children
		if len(children) == 0 {
			return id
		}
		id = children[len(children)-1]
	}
}

// Walk visits the subtree of id in document order. Returning false from fn
// stops the walk.
func (t *Tree) Walk(id NodeID, fn func(id NodeID, depth int) bool) {
	base := t.Depth(id)
	end, hasEnd := t.NextAfter(id)
	for cur := id; ; {
		if !fn(cur, t.Depth(cur)-base) {
			return
		}
		next, ok := t.Next(cur)
		if !ok || (hasEnd && next == end) {
			return
		}
		cur = next
	}
}

// Label returns a short human readable description of id, used in outlines
// and logs.
func (t *Tree) Label(id NodeID) string {
	if text, ok := t.Text(id); ok && text.Plain != "" {
		return strings.Join(strings.Fields(text.Plain), " ")
	}
	for _, r := range t.nodes[id].refs {
		return r.URL
	}
	if roles := t.nodes[id].roles; len(roles) > 0 {
		return "[" + roles.String() + "]"
	}
	return ""
}
