// Package markup turns HTML source into the tree the conversion engine
// walks.
package markup

import (
	"strings"
)

// Kind of tree node.
type Kind int

const (
	ElementNode Kind = iota
	TextNode
)

// Node is element or text of the parsed document. Tag and attribute names
// are lower case, extension tags keep their namespace prefix ("pdf:toc").
type Node struct {
	Kind     Kind
	Tag      string
	Attrs    map[string]string
	Text     string
	Children []*Node
	Parent   *Node
	Line     int
}

// NewElement creates detached element node.
func NewElement(tag string, attrs map[string]string) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Kind: ElementNode, Tag: strings.ToLower(tag), Attrs: attrs}
}

// NewText creates detached text node.
func NewText(text string) *Node {
	return &Node{Kind: TextNode, Text: text}
}

// AppendChild attaches c as the last child of n.
func (n *Node) AppendChild(c *Node) *Node {
	c.Parent = n
	n.Children = append(n.Children, c)
	return n
}

// Attr returns attribute value and presence.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// AttrOr returns attribute value or def when attribute is missing or blank.
func (n *Node) AttrOr(name, def string) string {
	if v, ok := n.Attrs[name]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// Classes returns class attribute split on whitespace.
func (n *Node) Classes() []string {
	return strings.Fields(n.Attrs["class"])
}

// IsElement reports whether n is element with one of the names (any
// element when no names are given).
func (n *Node) IsElement(names ...string) bool {
	if n == nil || n.Kind != ElementNode {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if n.Tag == name {
			return true
		}
	}
	return false
}

// TextContent returns concatenated text of the subtree.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.walk(func(c *Node) bool {
		if c.Kind == TextNode {
			sb.WriteString(c.Text)
		}
		return true
	})
	return sb.String()
}

// Find returns first element of the subtree (including n) for which match
// returns true.
func (n *Node) Find(match func(*Node) bool) *Node {
	var found *Node
	n.walk(func(c *Node) bool {
		if found != nil {
			return false
		}
		if c.Kind == ElementNode && match(c) {
			found = c
			return false
		}
		return true
	})
	return found
}

// FindAll returns all elements of the subtree matching, in document order.
func (n *Node) FindAll(match func(*Node) bool) []*Node {
	var out []*Node
	n.walk(func(c *Node) bool {
		if c.Kind == ElementNode && match(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// ByTag is matcher for Find and FindAll.
func ByTag(tag string) func(*Node) bool {
	return func(n *Node) bool { return n.Tag == tag }
}

// ByID is matcher for Find.
func ByID(id string) func(*Node) bool {
	return func(n *Node) bool { return n.Attrs["id"] == id }
}

// walk visits subtree in document order, fn returning false skips
// children of the node.
func (n *Node) walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn)
	}
}
