package story

import (
	"h2p/resource"
	"h2p/style"
)

// Inline is an item of paragraph content.
type Inline interface {
	inlineItem()
}

// Span is a run of text sharing one style.
type Span struct {
	Text  string
	Style style.Fragment
	Link  string
}

// Break is a hard line break.
type Break struct{}

// AnchorMark declares link destination at its position.
type AnchorMark struct {
	Name string
}

// InlineImage is an image placed on the text line.
type InlineImage struct {
	Image  *resource.Image
	Width  float64
	Height float64
	VAlign style.VAlign
	Link   string
}

// FieldKind enumerates values known only during pagination.
type FieldKind int

const (
	FieldPageNumber FieldKind = iota
	FieldPageCount
)

// Field is text computed by the backend when page is drawn.
type Field struct {
	Kind  FieldKind
	Style style.Fragment
}

func (*Span) inlineItem()        {}
func (*Break) inlineItem()       {}
func (*AnchorMark) inlineItem()  {}
func (*InlineImage) inlineItem() {}
func (*Field) inlineItem()       {}
