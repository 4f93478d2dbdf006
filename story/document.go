package story

import (
	"h2p/resource"
)

// DefaultTemplate is name of the page template used for document body.
const DefaultTemplate = "body"

// Metadata is run level document information.
type Metadata struct {
	Title       string
	Author      string
	Subject     string
	Keywords    string
	Description string
	Creator     string
	Language    string
}

// Frame is rectangular area of a page, coordinates in points from the
// top-left page corner. Frames with Static content are repeated on every
// page, the rest receive flowing story content in order.
type Frame struct {
	Name   string
	X, Y   float64
	Width  float64
	Height float64
	Static *Story
}

// PageTemplate describes page geometry.
type PageTemplate struct {
	Name       string
	Width      float64
	Height     float64
	Frames     []Frame
	Background string // reference to background document, resolved by engine
}

// FlowFrames returns frames which receive story content.
func (pt *PageTemplate) FlowFrames() []Frame {
	out := make([]Frame, 0, len(pt.Frames))
	for _, f := range pt.Frames {
		if f.Static == nil {
			out = append(out, f)
		}
	}
	return out
}

// Font is embedded font face declared by the document.
type Font struct {
	Family string
	Bold   bool
	Italic bool
	Data   []byte
}

// Background is validated page background document for template. Page
// i of output drawn with Template is placed over page i of Resource.
type Background struct {
	Template string
	Resource *resource.Resource
}

// HeadingPage maps heading key to page where it was placed.
type HeadingPage struct {
	Key   string
	Level int
	Title string
	Page  int
}

// Pagination is what a dry pagination pass learned about the document.
type Pagination struct {
	Pages    int
	Headings []HeadingPage
	Anchors  map[string]int
}

// Document is everything the backend needs to produce output.
type Document struct {
	ID        string
	Story     *Story
	Templates map[string]*PageTemplate
	Meta      Metadata
	Fonts     []Font

	// Anchors registered during traversal.
	Anchors map[string]bool

	// NeedsMultiPass is set when content depends on pagination results
	// (page count, table of contents).
	NeedsMultiPass bool

	// Pagination is filled from the first pass when multi-pass build is
	// performed.
	Pagination *Pagination
}

// Template returns template by name falling back to the default one.
func (d *Document) Template(name string) *PageTemplate {
	if pt, ok := d.Templates[name]; ok {
		return pt
	}
	return d.Templates[DefaultTemplate]
}
