// Package story holds the flow model produced by the conversion engine and
// consumed by a pagination backend: a Story of flow elements plus page
// templates and run-level document data.
package story

import (
	"strings"

	"h2p/resource"
	"h2p/style"
)

// Element is a single flow element of a Story.
type Element interface {
	flowElement()
}

// Story is an ordered sequence of flow elements. It only grows.
type Story struct {
	Elements []Element
}

// New returns empty story.
func New() *Story {
	return &Story{}
}

// Append adds flow element at the end of the story.
func (s *Story) Append(e Element) {
	s.Elements = append(s.Elements, e)
}

// Len returns number of flow elements.
func (s *Story) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Elements)
}

// Empty reports whether story has no elements.
func (s *Story) Empty() bool {
	return s.Len() == 0
}

// Text returns concatenated text of all paragraphs, mostly useful for
// diagnostics and tests.
func (s *Story) Text() string {
	if s == nil {
		return ""
	}
	var parts []string
	for _, e := range s.Elements {
		switch v := e.(type) {
		case *Paragraph:
			if t := v.Text(); t != "" {
				parts = append(parts, t)
			}
		case *Table:
			for _, row := range v.Rows {
				for _, c := range row {
					if t := c.Text(); t != "" {
						parts = append(parts, t)
					}
				}
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Walk calls fn for every element of the story including content of table
// cells, depth first.
func (s *Story) Walk(fn func(Element)) {
	if s == nil {
		return
	}
	for _, e := range s.Elements {
		fn(e)
		if t, ok := e.(*Table); ok {
			for _, row := range t.Rows {
				for _, c := range row {
					c.Content.Walk(fn)
				}
			}
		}
	}
}

// Paragraph is a block of inline content sharing block style.
type Paragraph struct {
	Items []Inline
	Style style.Fragment // block level properties: alignment, spacing, box

	// Bullet is list item marker drawn in the left indent.
	Bullet string

	// Heading level 1-6, 0 for ordinary paragraphs. Headings become outline
	// and table of contents entries under Key.
	Level int
	Key   string
}

// Text returns plain text of the paragraph.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, it := range p.Items {
		switch v := it.(type) {
		case *Span:
			sb.WriteString(v.Text)
		case *Break:
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Empty reports whether paragraph has nothing to draw. Anchor marks alone
// still make paragraph worth keeping, so they are not considered here.
func (p *Paragraph) Empty() bool {
	for _, it := range p.Items {
		switch v := it.(type) {
		case *Span:
			if strings.TrimSpace(v.Text) != "" || v.Style.Pre {
				return false
			}
		case *AnchorMark:
		default:
			return false
		}
	}
	return true
}

// Image is a block level image. Float left or right lets following
// content flow on the other side.
type Image struct {
	Image  *resource.Image
	Width  float64
	Height float64
	Float  style.Align
	Style  style.Fragment
	Link   string
}

// Rule is horizontal line across the frame.
type Rule struct {
	Thickness   float64
	Width       float64 // 0 means full frame width
	Color       style.Color
	Align       style.Align
	SpaceBefore float64
	SpaceAfter  float64
}

// Spacer reserves empty space.
type Spacer struct {
	Width  float64
	Height float64
}

// PageBreak forces next content onto a new page. Template, when set,
// switches page template for the pages that follow.
type PageBreak struct {
	Template string
}

// FrameBreak moves following content into the next flow frame of the
// page, or onto a new page after the last frame.
type FrameBreak struct{}

// NextTemplate selects template used by the next page without breaking the
// current one.
type NextTemplate struct {
	Name string
}

// TOC is placeholder for table of contents built from headings.
type TOC struct {
	Style style.Fragment
}

func (*Paragraph) flowElement()    {}
func (*Table) flowElement()        {}
func (*Image) flowElement()        {}
func (*Rule) flowElement()         {}
func (*Spacer) flowElement()       {}
func (*PageBreak) flowElement()    {}
func (*FrameBreak) flowElement()   {}
func (*NextTemplate) flowElement() {}
func (*TOC) flowElement()          {}

// StripLinks removes hyperlinks for which keep returns false and returns
// number of removed links.
func (s *Story) StripLinks(keep func(target string) bool) int {
	removed := 0
	drop := func(link *string) {
		if *link != "" && !keep(*link) {
			*link = ""
			removed++
		}
	}
	s.Walk(func(e Element) {
		switch v := e.(type) {
		case *Paragraph:
			for _, it := range v.Items {
				switch in := it.(type) {
				case *Span:
					drop(&in.Link)
				case *InlineImage:
					drop(&in.Link)
				}
			}
		case *Image:
			drop(&v.Link)
		}
	})
	return removed
}
