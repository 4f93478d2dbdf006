package story

import (
	"strings"

	"h2p/style"
)

// Point is zero based (column, row) grid coordinate.
type Point struct {
	Col int
	Row int
}

// Cell is one grid entry. Placeholders cover the area of spanning cells
// and never carry content.
type Cell struct {
	Content     *Story
	Placeholder bool
	ColSpan     int
	RowSpan     int
}

// Text returns plain text of the cell content.
func (c Cell) Text() string {
	return strings.TrimSpace(c.Content.Text())
}

// TableStyleKind is kind of rectangle scoped table instruction.
type TableStyleKind string

const (
	StyleBackground TableStyleKind = "BACKGROUND"
	StyleLineAbove  TableStyleKind = "LINEABOVE"
	StyleLineBelow  TableStyleKind = "LINEBELOW"
	StyleLineBefore TableStyleKind = "LINEBEFORE"
	StyleLineAfter  TableStyleKind = "LINEAFTER"
	StyleGrid       TableStyleKind = "GRID"
	StylePadTop     TableStyleKind = "TOPPADDING"
	StylePadRight   TableStyleKind = "RIGHTPADDING"
	StylePadBottom  TableStyleKind = "BOTTOMPADDING"
	StylePadLeft    TableStyleKind = "LEFTPADDING"
	StyleAlign      TableStyleKind = "ALIGN"
	StyleVAlign     TableStyleKind = "VALIGN"
	StyleSpan       TableStyleKind = "SPAN"
)

// TableStyle is single style instruction applied to rectangle Begin..End
// (inclusive). Instructions are applied in order, later ones win.
type TableStyle struct {
	Kind  TableStyleKind
	Begin Point
	End   Point

	Width  float64 // line width or padding amount
	Color  style.Color
	Line   string // line style: solid, dashed, dotted
	Align  style.Align
	VAlign style.VAlign
}

// Normalize resolves negative coordinates, which count from the last
// column or row, for grid of cols x rows.
func (ts TableStyle) Normalize(cols, rows int) TableStyle {
	fix := func(v, n int) int {
		if v < 0 {
			v += n
		}
		return min(max(v, 0), max(n-1, 0))
	}
	ts.Begin = Point{Col: fix(ts.Begin.Col, cols), Row: fix(ts.Begin.Row, rows)}
	ts.End = Point{Col: fix(ts.End.Col, cols), Row: fix(ts.End.Row, rows)}
	return ts
}

// Covers reports whether instruction applies to cell at p.
func (ts TableStyle) Covers(p Point) bool {
	return p.Col >= ts.Begin.Col && p.Col <= ts.End.Col && p.Row >= ts.Begin.Row && p.Row <= ts.End.Row
}

// Table is a finalized rectangular grid. All rows have the same length.
type Table struct {
	Rows       [][]Cell
	ColWidths  []float64 // 0 lets backend apportion the space
	RowHeights []float64 // 0 means height of content
	Styles     []TableStyle
	Align      style.Align
	Width      float64 // 0 means full frame width
	RepeatRows int
	Style      style.Fragment
}

// Columns returns number of grid columns.
func (t *Table) Columns() int {
	if len(t.Rows) == 0 {
		return 0
	}
	return len(t.Rows[0])
}
