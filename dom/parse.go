package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Parse reads an HTML document and returns a live Document. The parser is
// the standard golang.org/x/net/html document parser, so the usual implied
// elements (html, head, body) are materialised.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}

	d := NewDocument()
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := fromHTML(c); n != nil {
			d.root.children = append(d.root.children, n)
			n.parent = d.root
			n.adopt(d)
		}
	}
	return d, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Render serialises the document back to HTML.
func (d *Document) Render() ([]byte, error) {
	root := &html.Node{Type: html.DocumentNode}
	for _, c := range d.root.children {
		if h := toHTML(c); h != nil {
			root.AppendChild(h)
		}
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, fmt.Errorf("dom: render: %w", err)
	}
	return buf.Bytes(), nil
}

func fromHTML(h *html.Node) *Node {
	switch h.Type {
	case html.ElementNode:
		n := &Node{nodeType: ElementNode, tag: strings.ToLower(h.Data)}
		for _, a := range h.Attr {
			n.attrs = append(n.attrs, Attr{Name: a.Key, Value: a.Val})
		}
		for c := h.FirstChild; c != nil; c = c.NextSibling {
			if child := fromHTML(c); child != nil {
				child.parent = n
				n.children = append(n.children, child)
			}
		}
		return n
	case html.TextNode:
		return &Node{nodeType: TextNode, data: h.Data}
	case html.CommentNode:
		return &Node{nodeType: CommentNode, data: h.Data}
	default:
		// Doctype and raw nodes carry no mirrorable state.
		return nil
	}
}

func toHTML(n *Node) *html.Node {
	switch n.nodeType {
	case ElementNode:
		h := &html.Node{Type: html.ElementNode, Data: n.tag}
		for _, a := range n.attrs {
			h.Attr = append(h.Attr, html.Attribute{Key: a.Name, Val: a.Value})
		}
		for _, c := range n.children {
			if child := toHTML(c); child != nil {
				h.AppendChild(child)
			}
		}
		return h
	case TextNode:
		return &html.Node{Type: html.TextNode, Data: n.data}
	case CommentNode:
		return &html.Node{Type: html.CommentNode, Data: n.data}
	default:
		return nil
	}
}
