// Package dom provides a live, observable document tree: the host
// environment the attribute mirror runs against when no real browser is
// involved (tests, server-side rendering checks, fixtures).
//
// The tree is single-threaded by contract: all mutations and all observer
// callbacks run on one logical thread of execution. Mutations are recorded
// synchronously into observer queues; Document.Flush delivers them in
// batches, in order.
package dom

import "strings"

// NodeType identifies the kind of a tree node. Values follow the DOM
// numeric convention so records serialise compatibly with browser output.
type NodeType int

const (
	ElementNode  NodeType = 1
	TextNode     NodeType = 3
	CommentNode  NodeType = 8
	DocumentNode NodeType = 9
)

// Attr is a single name/value attribute pair.
type Attr struct {
	Name  string
	Value string
}

// Node is one node of the document tree. Nodes are created detached and
// become live (mutations observable) once inserted under a Document root.
type Node struct {
	nodeType NodeType
	tag      string // lower-case element name
	data     string // text or comment content
	attrs    []Attr
	parent   *Node
	children []*Node
	owner    *Document
}

// NewElement creates a detached element node.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{nodeType: ElementNode, tag: strings.ToLower(tag), attrs: attrs}
}

// NewText creates a detached text node.
func NewText(data string) *Node {
	return &Node{nodeType: TextNode, data: data}
}

// NewComment creates a detached comment node.
func NewComment(data string) *Node {
	return &Node{nodeType: CommentNode, data: data}
}

// Type returns the node type. Safe on nil (returns 0).
func (n *Node) Type() NodeType {
	if n == nil {
		return 0
	}
	return n.nodeType
}

// IsElement reports whether the node is an element. Safe on nil.
func (n *Node) IsElement() bool { return n != nil && n.nodeType == ElementNode }

// Tag returns the lower-case element name ("" for non-elements).
func (n *Node) Tag() string {
	if n == nil {
		return ""
	}
	return n.tag
}

// Data returns text or comment content.
func (n *Node) Data() string {
	if n == nil {
		return ""
	}
	return n.data
}

// Parent returns the parent node (nil for detached nodes and roots).
func (n *Node) Parent() *Node {
	if n == nil {
		return nil
	}
	return n.parent
}

// ChildNodes returns the node's children in document order. The returned
// slice is owned by the node; callers must not modify it.
func (n *Node) ChildNodes() []*Node {
	if n == nil {
		return nil
	}
	return n.children
}

// Attr returns the value of the named attribute and whether it is present.
// Safe on nil and non-element nodes.
func (n *Node) Attr(name string) (string, bool) {
	if n == nil || n.nodeType != ElementNode {
		return "", false
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the node's attributes in definition order. The returned
// slice is owned by the node; callers must not modify it.
func (n *Node) Attrs() []Attr {
	if n == nil {
		return nil
	}
	return n.attrs
}

// SetAttr sets the named attribute. A no-op write (same value already
// present) still records a mutation, matching MutationObserver semantics;
// callers that need idempotency compare first.
func (n *Node) SetAttr(name, value string) {
	if n == nil || n.nodeType != ElementNode {
		return
	}
	old, had := n.Attr(name)
	if had {
		for i := range n.attrs {
			if n.attrs[i].Name == name {
				n.attrs[i].Value = value
				break
			}
		}
	} else {
		n.attrs = append(n.attrs, Attr{Name: name, Value: value})
	}
	n.recordAttr(name, old, had)
}

// RemoveAttr removes the named attribute if present.
func (n *Node) RemoveAttr(name string) {
	if n == nil || n.nodeType != ElementNode {
		return
	}
	for i := range n.attrs {
		if n.attrs[i].Name == name {
			old := n.attrs[i].Value
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			n.recordAttr(name, old, true)
			return
		}
	}
}

// SetText replaces the content of a text or comment node.
func (n *Node) SetText(data string) {
	if n == nil || (n.nodeType != TextNode && n.nodeType != CommentNode) {
		return
	}
	n.data = data
}

// AppendChild detaches child from its current parent (if any) and appends
// it as the last child of n. The insertion is recorded as a child-list
// mutation on n when n is part of a live document.
func (n *Node) AppendChild(child *Node) {
	if n == nil || child == nil || child == n {
		return
	}
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	child.adopt(n.owner)
	n.recordChildList([]*Node{child}, nil)
}

// RemoveChild removes child from n. Recorded as a child-list mutation.
func (n *Node) RemoveChild(child *Node) {
	if n == nil || child == nil {
		return
	}
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			child.adopt(nil)
			n.recordChildList(nil, []*Node{child})
			return
		}
	}
}

// Walk visits n and every descendant in document order. Traversal stops
// when fn returns false.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// Contains reports whether other is n or a descendant of n.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// adopt propagates document ownership through a subtree.
func (n *Node) adopt(doc *Document) {
	n.owner = doc
	for _, c := range n.children {
		c.adopt(doc)
	}
}

func (n *Node) recordAttr(name, old string, had bool) {
	if n.owner == nil {
		return
	}
	n.owner.record(Mutation{
		Type:        AttributeChanged,
		Target:      n,
		Attr:        name,
		OldValue:    old,
		hadOldValue: had,
	})
}

func (n *Node) recordChildList(added, removed []*Node) {
	if n.owner == nil {
		return
	}
	n.owner.record(Mutation{
		Type:    ChildListChanged,
		Target:  n,
		Added:   added,
		Removed: removed,
	})
}
