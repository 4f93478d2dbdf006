package css

import (
	"slices"

	"h2p/markup"
)

// Origin orders stylesheets of different sources, later origins win over
// earlier ones at equal specificity.
type Origin int

const (
	OriginDefault Origin = iota
	OriginUser
	OriginDocument
)

type cascadeRule struct {
	sel         Selector
	props       map[string]Value
	origin      Origin
	specificity int
	order       int
}

// Cascade resolves declared property values for markup nodes from a set of
// stylesheets. Inheritance is left to the caller.
type Cascade struct {
	parser *Parser
	rules  []cascadeRule
	order  int
}

// NewCascade creates empty cascade. Parser is used for inline styles.
func NewCascade(p *Parser) *Cascade {
	return &Cascade{parser: p}
}

// Add appends rules of the stylesheet applicable to paged output.
func (c *Cascade) Add(sheet *Stylesheet, origin Origin) {
	for _, r := range sheet.Rules() {
		c.order++
		c.rules = append(c.rules, cascadeRule{
			sel:         r.Selector,
			props:       r.Properties,
			origin:      origin,
			specificity: r.Selector.Specificity(),
			order:       c.order,
		})
	}
}

// Len returns number of rules in the cascade.
func (c *Cascade) Len() int {
	return len(c.rules)
}

// Compute returns declared values for element node: matching rules in
// cascade order followed by inline style attribute. Important
// declarations win over normal ones.
func (c *Cascade) Compute(n *markup.Node) map[string]Value {
	var matched []*cascadeRule
	for i := range c.rules {
		if c.rules[i].sel.Matches(n) {
			matched = append(matched, &c.rules[i])
		}
	}
	slices.SortStableFunc(matched, func(a, b *cascadeRule) int {
		if a.origin != b.origin {
			return int(a.origin) - int(b.origin)
		}
		if a.specificity != b.specificity {
			return a.specificity - b.specificity
		}
		return a.order - b.order
	})

	var inline map[string]Value
	if s, ok := n.Attr("style"); ok && c.parser != nil {
		inline = c.parser.ParseInline(s)
	}

	out := make(map[string]Value)
	set := func(props map[string]Value, important bool) {
		for k, v := range props {
			if v.Important == important {
				out[k] = v
			}
		}
	}
	for _, r := range matched {
		set(r.props, false)
	}
	set(inline, false)
	for _, r := range matched {
		set(r.props, true)
	}
	set(inline, true)
	return out
}

// Matches reports whether selector applies to element node.
func (s Selector) Matches(n *markup.Node) bool {
	if !s.Supported || !n.IsElement() || !s.matchCompound(n) {
		return false
	}
	if s.Ancestor == nil {
		return true
	}
	for a := n.Parent; a != nil; a = a.Parent {
		if s.Ancestor.Matches(a) {
			return true
		}
	}
	return false
}

func (s Selector) matchCompound(n *markup.Node) bool {
	if s.Element != "" && s.Element != "*" && s.Element != n.Tag {
		return false
	}
	if s.ID != "" && n.Attrs["id"] != s.ID {
		return false
	}
	if len(s.Classes) > 0 {
		have := n.Classes()
		for _, cls := range s.Classes {
			if !slices.Contains(have, cls) {
				return false
			}
		}
	}
	return true
}
