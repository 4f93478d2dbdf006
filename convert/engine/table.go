package engine

import (
	"strconv"
	"strings"

	"h2p/diag"
	"h2p/markup"
	"h2p/story"
	"h2p/style"
)

// Largest spans accepted from markup.
const (
	maxColSpan = 1000
	maxRowSpan = 65534
)

// TableData accumulates state of one table while its tags are visited.
type TableData struct {
	line int

	cells      map[story.Point]*story.Cell
	spans      []story.TableStyle // rectangles of spanning cells
	styles     []story.TableStyle
	colWidths  map[int]float64
	rowHeights map[int]float64

	row     int // current row, -1 before the first one
	col     int // column of the cell being filled
	maxCol  int
	maxRow  int
	rowOpen bool

	align      style.Align
	width      float64
	repeatRows int
	headRows   int
	inHead     bool
	frag       style.Fragment

	open []openCell
}

// openCell is cell whose content is being captured, saved is the story it
// replaced.
type openCell struct {
	origin story.Point
	saved  *story.Story
}

func newTableData(line int) *TableData {
	return &TableData{
		line:       line,
		cells:      make(map[story.Point]*story.Cell),
		colWidths:  make(map[int]float64),
		rowHeights: make(map[int]float64),
		row:        -1,
		maxCol:     -1,
		maxRow:     -1,
	}
}

// AddStyle appends rectangle scoped style instruction.
func (td *TableData) AddStyle(ts story.TableStyle) {
	td.styles = append(td.styles, ts)
}

// StartRow moves to the next row.
func (td *TableData) StartRow() {
	td.row++
	td.col = 0
	td.rowOpen = true
	td.maxRow = max(td.maxRow, td.row)
	if td.inHead {
		td.headRows++
	}
}

// clampSpans limits cell spans to 1..maxColSpan and 1..maxRowSpan. The
// last result reports whether requested spans were too large.
func clampSpans(colspan, rowspan int) (int, int, bool) {
	clamped := colspan > maxColSpan || rowspan > maxRowSpan
	return max(1, min(colspan, maxColSpan)), max(1, min(rowspan, maxRowSpan)), clamped
}

// StartCell allocates grid position for cell spanning colspan x rowspan
// and returns its origin. Positions covered by earlier spans are skipped.
// Spans are expected to be clamped already.
func (td *TableData) StartCell(colspan, rowspan int) story.Point {
	if !td.rowOpen {
		// cell outside of any row
		td.StartRow()
	}
	for td.covered(story.Point{Col: td.col, Row: td.row}) {
		td.col++
	}
	colspan, rowspan = max(colspan, 1), max(rowspan, 1)
	origin := story.Point{Col: td.col, Row: td.row}
	td.cells[origin] = &story.Cell{ColSpan: colspan, RowSpan: rowspan}
	td.maxCol = max(td.maxCol, origin.Col+colspan-1)
	if colspan > 1 || rowspan > 1 {
		span := story.TableStyle{Kind: story.StyleSpan, Begin: origin, End: td.cellEnd(origin)}
		td.spans = append(td.spans, span)
		td.AddStyle(span)
	}
	td.col += colspan
	return origin
}

// covered reports whether p is inside span of a cell with another origin.
func (td *TableData) covered(p story.Point) bool {
	for _, sp := range td.spans {
		if p != sp.Begin && p.Col >= sp.Begin.Col && p.Col <= sp.End.Col && p.Row >= sp.Begin.Row && p.Row <= sp.End.Row {
			return true
		}
	}
	return false
}

// cellEnd returns bottom-right coordinate of the cell at origin.
func (td *TableData) cellEnd(origin story.Point) story.Point {
	c := td.cells[origin]
	if c == nil {
		return origin
	}
	return story.Point{Col: origin.Col + c.ColSpan - 1, Row: origin.Row + c.RowSpan - 1}
}

// SetContent stores captured content of the cell at origin.
func (td *TableData) SetContent(origin story.Point, content *story.Story) {
	if c := td.cells[origin]; c != nil {
		c.Content = content
	}
}

// SizeCell fixes column width and row height from explicit cell size. Only
// the first sized non spanning cell of a column (row) counts.
func (td *TableData) SizeCell(origin story.Point, width, height float64) {
	c := td.cells[origin]
	if c == nil || c.ColSpan > 1 || c.RowSpan > 1 {
		return
	}
	if _, set := td.colWidths[origin.Col]; !set && width > 0 {
		td.colWidths[origin.Col] = width
	}
	if _, set := td.rowHeights[origin.Row]; !set && height > 0 {
		td.rowHeights[origin.Row] = height
	}
}

// Finalize materializes rectangular table. Row spans reaching past the
// last row are clipped. Rows shorter than the widest one are padded on the
// right with empty cells. Nil is returned for table without rows.
func (td *TableData) Finalize(d *diag.Log) *story.Table {
	if td.maxRow < 0 || td.maxCol < 0 {
		d.Warn(td.line, diag.CodeTable, "empty table skipped")
		return nil
	}
	td.clipRows(d)

	cols := td.maxCol + 1
	t := &story.Table{
		Rows:       make([][]story.Cell, td.maxRow+1),
		ColWidths:  make([]float64, cols),
		RowHeights: make([]float64, td.maxRow+1),
		Styles:     td.styles,
		Align:      td.align,
		Width:      td.width,
		RepeatRows: td.repeatRows,
		Style:      td.frag,
	}
	if t.RepeatRows == 0 {
		t.RepeatRows = td.headRows
	}

	// positions taken by cells and their spans
	taken := make([][]bool, len(t.Rows))
	lengths := make([]int, len(t.Rows))
	for r := range taken {
		taken[r] = make([]bool, cols)
	}
	for p, cell := range td.cells {
		for r := p.Row; r < p.Row+cell.RowSpan; r++ {
			for col := p.Col; col < p.Col+cell.ColSpan; col++ {
				taken[r][col] = true
			}
			lengths[r] = max(lengths[r], p.Col+cell.ColSpan)
		}
	}

	for r := range t.Rows {
		length := lengths[r]
		row := make([]story.Cell, 0, cols)
		for col := range length {
			p := story.Point{Col: col, Row: r}
			switch {
			case td.cells[p] != nil:
				cell := *td.cells[p]
				if cell.Content == nil {
					cell.Content = story.New()
				}
				row = append(row, cell)
			case taken[r][col]:
				row = append(row, story.Cell{Placeholder: true, Content: story.New()})
			default:
				row = append(row, emptyCell())
			}
		}
		if length < cols {
			d.Warn(td.line, diag.CodeTable, "table row %d has %d cells, padded to %d", r+1, length, cols)
			for len(row) < cols {
				row = append(row, emptyCell())
			}
		}
		t.Rows[r] = row
	}
	for col, w := range td.colWidths {
		t.ColWidths[col] = w
	}
	for r, h := range td.rowHeights {
		if r < len(t.RowHeights) {
			t.RowHeights[r] = h
		}
	}
	return t
}

// clipRows cuts spans and style rectangles at the last row.
func (td *TableData) clipRows(d *diag.Log) {
	last := td.maxRow
	for origin, cell := range td.cells {
		if end := origin.Row + cell.RowSpan - 1; end > last {
			d.Warn(td.line, diag.CodeTable, "row span of cell at row %d, column %d reaches past the last row, clipped", origin.Row+1, origin.Col+1)
			cell.RowSpan = last - origin.Row + 1
		}
	}
	for _, list := range [][]story.TableStyle{td.spans, td.styles} {
		for i := range list {
			if list[i].End.Row > last {
				list[i].End.Row = last
			}
		}
	}
}

func emptyCell() story.Cell {
	return story.Cell{ColSpan: 1, RowSpan: 1, Content: story.New()}
}

// table tag handlers

func enterTable(c *Context, n *markup.Node) error {
	before := c.consumeSpacing()
	td := newTableData(n.Line)
	f := c.Current()
	f.SpaceBefore = max(f.SpaceBefore, before)
	td.frag = f
	td.align, _ = style.ParseAlign(n.AttrOr("align", ""))
	if w := n.AttrOr("width", c.props(n)["width"].Raw); w != "" {
		td.width, _ = style.ParseLength(w, f.FontSize, c.frameWidth)
	}
	if v, err := strconv.Atoi(n.AttrOr("repeat", "0")); err == nil {
		td.repeatRows = max(v, 0)
	}

	whole := story.TableStyle{Begin: story.Point{}, End: story.Point{Col: -1, Row: -1}}
	if b := n.AttrOr("border", ""); b != "" {
		if w, ok := style.ParseLength(b, f.FontSize, 0); ok && w > 0 {
			col := style.Black
			if bc, ok := style.ParseColor(n.AttrOr("bordercolor", "")); ok {
				col = bc
			}
			ts := whole
			ts.Kind, ts.Width, ts.Color, ts.Line = story.StyleGrid, w, col, "solid"
			td.AddStyle(ts)
		}
	}
	if p := n.AttrOr("cellpadding", ""); p != "" {
		if w, ok := style.ParseLength(p, f.FontSize, 0); ok {
			for _, k := range []story.TableStyleKind{story.StylePadTop, story.StylePadRight, story.StylePadBottom, story.StylePadLeft} {
				ts := whole
				ts.Kind, ts.Width = k, w
				td.AddStyle(ts)
			}
		}
	}
	if bg, ok := style.ParseColor(n.AttrOr("bgcolor", "")); ok && bg.Set {
		f.BackColor = bg
	}
	addBoxStyles(td, f, whole.Begin, whole.End, true)

	c.tables = append(c.tables, td)
	// nested content must not inherit table box
	resetBox(c.top())
	c.top().BackColor = style.Color{}
	return nil
}

func exitTable(c *Context, n *markup.Node) error {
	if len(c.tables) == 0 {
		return nil
	}
	td := c.tables[len(c.tables)-1]
	c.tables = c.tables[:len(c.tables)-1]
	for len(td.open) > 0 {
		// unterminated cell
		c.Flush()
		closeCell(c, td)
	}
	if t := td.Finalize(c.diag); t != nil {
		c.Append(t)
	}
	return nil
}

func (c *Context) table() *TableData {
	if len(c.tables) == 0 {
		return nil
	}
	return c.tables[len(c.tables)-1]
}

func enterSection(c *Context, n *markup.Node) error {
	if td := c.table(); td != nil {
		td.inHead = n.Tag == "thead"
	}
	return nil
}

func exitSection(c *Context, n *markup.Node) error {
	if td := c.table(); td != nil {
		td.inHead = false
	}
	return nil
}

func enterRow(c *Context, n *markup.Node) error {
	td := c.table()
	if td == nil {
		return warnf("row outside of table")
	}
	td.StartRow()
	f := c.Current()
	if bg, ok := style.ParseColor(n.AttrOr("bgcolor", "")); ok && bg.Set {
		f.BackColor = bg
		c.top().BackColor = bg
	}
	begin, end := story.Point{Row: td.row}, story.Point{Col: -1, Row: td.row}
	addBoxStyles(td, f, begin, end, false)
	if a, ok := style.ParseAlign(n.AttrOr("align", "")); ok {
		td.AddStyle(story.TableStyle{Kind: story.StyleAlign, Begin: begin, End: end, Align: a})
	}
	if va, ok := style.ParseVAlign(n.AttrOr("valign", "")); ok {
		td.AddStyle(story.TableStyle{Kind: story.StyleVAlign, Begin: begin, End: end, VAlign: va})
	}
	return nil
}

func exitRow(c *Context, _ *markup.Node) error {
	if td := c.table(); td != nil {
		td.rowOpen = false
	}
	return nil
}

func enterCell(c *Context, n *markup.Node) error {
	td := c.table()
	if td == nil {
		return warnf("cell outside of table")
	}
	if len(td.open) > 0 {
		c.diag.Warn(n.Line, diag.CodeTable, "<%s> inside of another table cell", n.Tag)
	}
	colspan, _ := strconv.Atoi(n.AttrOr("colspan", "1"))
	rowspan, _ := strconv.Atoi(n.AttrOr("rowspan", "1"))
	cs, rs, clamped := clampSpans(colspan, rowspan)
	if clamped {
		c.diag.Warn(n.Line, diag.CodeTable, "cell span %dx%d is too large, limited to %dx%d", colspan, rowspan, cs, rs)
	}
	origin := td.StartCell(cs, rs)
	end := td.cellEnd(origin)

	f := c.Current()
	props := c.props(n)
	w := sizeOf(n.AttrOr("width", props["width"].Raw), f.FontSize, c.frameWidth)
	h := sizeOf(n.AttrOr("height", props["height"].Raw), f.FontSize, 0)
	td.SizeCell(origin, w, h)

	if bg, ok := style.ParseColor(n.AttrOr("bgcolor", "")); ok && bg.Set {
		f.BackColor = bg
	}
	addBoxStyles(td, f, origin, end, false)
	align := f.Align
	if a, ok := style.ParseAlign(n.AttrOr("align", "")); ok {
		align = a
		c.top().Align = a
	}
	td.AddStyle(story.TableStyle{Kind: story.StyleAlign, Begin: origin, End: end, Align: align})
	va := f.VAlign
	if v, ok := style.ParseVAlign(n.AttrOr("valign", "")); ok {
		va = v
	}
	if va != style.VAlignBaseline {
		td.AddStyle(story.TableStyle{Kind: story.StyleVAlign, Begin: origin, End: end, VAlign: va})
	}

	// cell box is drawn by the table, content only keeps text style
	resetBox(c.top())
	c.top().BackColor = style.Color{}
	c.top().Indent = 0

	c.Flush()
	td.open = append(td.open, openCell{origin: origin, saved: c.SwapStory(story.New())})
	c.openBlock()
	return nil
}

func exitCell(c *Context, _ *markup.Node) error {
	td := c.table()
	if td == nil || len(td.open) == 0 {
		return nil
	}
	c.closeBlock()
	closeCell(c, td)
	return nil
}

// closeCell stores captured content of the innermost open cell and
// restores the story it replaced.
func closeCell(c *Context, td *TableData) {
	oc := td.open[len(td.open)-1]
	td.open = td.open[:len(td.open)-1]
	td.SetContent(oc.origin, c.SwapStory(oc.saved))
}

// addBoxStyles converts border, padding and background of fragment into
// table instructions for rectangle begin..end. Table level border outlines
// the whole table.
func addBoxStyles(td *TableData, f style.Fragment, begin, end story.Point, outline bool) {
	if f.BackColor.Set {
		td.AddStyle(story.TableStyle{Kind: story.StyleBackground, Begin: begin, End: end, Color: f.BackColor})
	}
	lines := [4]story.TableStyleKind{story.StyleLineAbove, story.StyleLineAfter, story.StyleLineBelow, story.StyleLineBefore}
	pads := [4]story.TableStyleKind{story.StylePadTop, story.StylePadRight, story.StylePadBottom, story.StylePadLeft}
	for side := range 4 {
		if b := f.Border[side]; b.Visible() {
			ts := story.TableStyle{Kind: lines[side], Begin: begin, End: end, Width: b.Width, Color: b.Color, Line: b.Style}
			if outline {
				// only outer edge of the whole table
				switch style.Side(side) {
				case style.Top:
					ts.End.Row = begin.Row
				case style.Bottom:
					ts.Begin.Row = end.Row
				case style.Left:
					ts.End.Col = begin.Col
				case style.Right:
					ts.Begin.Col = end.Col
				}
			}
			td.AddStyle(ts)
		}
		if f.Padding[side] > 0 {
			td.AddStyle(story.TableStyle{Kind: pads[side], Begin: begin, End: end, Width: f.Padding[side]})
		}
	}
}

func sizeOf(v string, fontSize, ref float64) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if style.IsPercent(v) && ref == 0 {
		return 0
	}
	l, ok := style.ParseLength(v, fontSize, ref)
	if !ok || l < 0 {
		return 0
	}
	return l
}
