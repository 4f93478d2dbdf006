package pdf

import (
	"math"

	"h2p/story"
	"h2p/style"
)

const (
	defaultCellPadding = 2
	minColumnWidth     = 12
)

// tableLayout is table geometry computed for available width.
type tableLayout struct {
	t      *story.Table
	cols   int
	rows   int
	styles []story.TableStyle
	spans  map[story.Point]story.Point // origin -> span size
	colW   []float64
	rowH   []float64
	width  float64
}

// cellProps are style instructions resolved for a single cell.
type cellProps struct {
	pad    [4]float64
	bg     style.Color
	align  style.Align
	valign style.VAlign
}

func newTableLayout(t *story.Table) *tableLayout {
	tl := &tableLayout{
		t:     t,
		cols:  t.Columns(),
		rows:  len(t.Rows),
		spans: make(map[story.Point]story.Point),
	}
	for _, ts := range t.Styles {
		tl.styles = append(tl.styles, ts.Normalize(tl.cols, tl.rows))
	}
	for r, row := range t.Rows {
		for c, cell := range row {
			if cell.Placeholder {
				continue
			}
			tl.spans[story.Point{Col: c, Row: r}] = story.Point{Col: max(cell.ColSpan, 1), Row: max(cell.RowSpan, 1)}
		}
	}
	for _, ts := range tl.styles {
		if ts.Kind == story.StyleSpan {
			tl.spans[ts.Begin] = story.Point{Col: ts.End.Col - ts.Begin.Col + 1, Row: ts.End.Row - ts.Begin.Row + 1}
		}
	}
	for p, sz := range tl.spans {
		sz.Col = min(sz.Col, tl.cols-p.Col)
		sz.Row = min(sz.Row, tl.rows-p.Row)
		tl.spans[p] = sz
	}
	return tl
}

// origins lists span origins in row-major order.
func (tl *tableLayout) origins() []story.Point {
	out := make([]story.Point, 0, len(tl.spans))
	for r := range tl.rows {
		for c := range tl.cols {
			if p := (story.Point{Col: c, Row: r}); tl.spans[p] != (story.Point{}) {
				out = append(out, p)
			}
		}
	}
	return out
}

// props applies style instructions covering cell in order.
func (tl *tableLayout) props(p story.Point) cellProps {
	cp := cellProps{
		pad:    [4]float64{defaultCellPadding, defaultCellPadding, defaultCellPadding, defaultCellPadding},
		valign: style.VAlignTop,
	}
	for _, ts := range tl.styles {
		if !ts.Covers(p) {
			continue
		}
		switch ts.Kind {
		case story.StyleBackground:
			cp.bg = ts.Color
		case story.StylePadTop:
			cp.pad[style.Top] = ts.Width
		case story.StylePadRight:
			cp.pad[style.Right] = ts.Width
		case story.StylePadBottom:
			cp.pad[style.Bottom] = ts.Width
		case story.StylePadLeft:
			cp.pad[style.Left] = ts.Width
		case story.StyleAlign:
			cp.align = ts.Align
		case story.StyleVAlign:
			cp.valign = ts.VAlign
		}
	}
	return cp
}

// cellWidth is width of spanned columns starting at p.
func (tl *tableLayout) cellWidth(p, span story.Point) float64 {
	w := 0.0
	for c := p.Col; c < p.Col+span.Col; c++ {
		w += tl.colW[c]
	}
	return w
}

func (tl *tableLayout) cellHeight(p, span story.Point) float64 {
	h := 0.0
	for r := p.Row; r < p.Row+span.Row; r++ {
		h += tl.rowH[r]
	}
	return h
}

func (tl *tableLayout) rowsHeight(from, to int) float64 {
	h := 0.0
	for r := from; r <= to; r++ {
		h += tl.rowH[r]
	}
	return h
}

func (tl *tableLayout) height() float64 {
	return tl.rowsHeight(0, tl.rows-1)
}

// groups splits rows into runs which must stay on the same page because
// cells span them.
func (tl *tableLayout) groups() [][2]int {
	var out [][2]int
	start, end := 0, 0
	for r := range tl.rows {
		for c := range tl.cols {
			if span, ok := tl.spans[story.Point{Col: c, Row: r}]; ok {
				end = max(end, r+span.Row-1)
			}
		}
		if r >= end {
			out = append(out, [2]int{start, r})
			start, end = r+1, r+1
		}
	}
	return out
}

// layoutTable computes column widths for available width and row heights
// from cell content.
func (rn *run) layoutTable(t *story.Table, avail float64) *tableLayout {
	tl := newTableLayout(t)
	width := avail
	if t.Width > 0 {
		width = min(t.Width, avail)
	}
	tl.colW = rn.columnWidths(tl, width)
	for _, w := range tl.colW {
		tl.width += w
	}

	tl.rowH = make([]float64, tl.rows)
	copy(tl.rowH, t.RowHeights)
	measure := func(p, span story.Point) float64 {
		cp := tl.props(p)
		w := tl.cellWidth(p, span) - cp.pad[style.Left] - cp.pad[style.Right]
		return rn.storyHeight(tl.t.Rows[p.Row][p.Col].Content, max(w, 1)) + cp.pad[style.Top] + cp.pad[style.Bottom]
	}
	origins := tl.origins()
	for _, p := range origins {
		if span := tl.spans[p]; span.Row == 1 {
			tl.rowH[p.Row] = max(tl.rowH[p.Row], measure(p, span))
		}
	}
	// spanning cells grow the last spanned row when rows are too short
	for _, p := range origins {
		if span := tl.spans[p]; span.Row > 1 {
			if need := measure(p, span) - tl.cellHeight(p, span); need > 0 {
				tl.rowH[p.Row+span.Row-1] += need
			}
		}
	}
	return tl
}

// columnWidths keeps explicit widths and apportions the rest of width to
// other columns proportionally to their natural content width.
func (rn *run) columnWidths(tl *tableLayout, width float64) []float64 {
	t := tl.t
	w := make([]float64, tl.cols)
	isFixed := func(c int) bool {
		return c < len(t.ColWidths) && t.ColWidths[c] > 0
	}
	fixed, free := 0.0, 0
	for c := range tl.cols {
		if isFixed(c) {
			w[c] = t.ColWidths[c]
			fixed += w[c]
		} else {
			free++
		}
	}
	if free == 0 {
		if fixed > width {
			scale(w, width/fixed)
		}
		return w
	}

	rest := width - fixed
	if minRest := float64(free) * minColumnWidth; rest < minRest {
		if fixed > 0 {
			scale(w, max(width-minRest, 0)/fixed)
		}
		rest = minRest
	}

	natural := make([]float64, tl.cols)
	total := 0.0
	for p, span := range tl.spans {
		if span.Col != 1 || isFixed(p.Col) {
			continue
		}
		cp := tl.props(p)
		n := rn.naturalWidth(t.Rows[p.Row][p.Col].Content) + cp.pad[style.Left] + cp.pad[style.Right]
		natural[p.Col] = max(natural[p.Col], n)
	}
	for c := range tl.cols {
		if !isFixed(c) {
			total += natural[c]
		}
	}
	for c := range tl.cols {
		if isFixed(c) {
			continue
		}
		switch {
		case total == 0:
			w[c] = rest / float64(free)
		case total <= rest:
			w[c] = natural[c] + (rest-total)/float64(free)
		default:
			w[c] = rest * natural[c] / total
		}
		w[c] = max(w[c], math.Min(minColumnWidth, rest/float64(free)))
	}
	return w
}

func scale(w []float64, f float64) {
	for i := range w {
		w[i] *= f
	}
}

func (rn *run) tableHeight(t *story.Table, w float64) float64 {
	if t.Columns() == 0 {
		return 0
	}
	return rn.layoutTable(t, w).height()
}

// table draws table row group by row group. Groups which do not fit move
// to the next frame where repeated header rows are drawn first.
func (rn *run) table(t *story.Table) {
	if t.Columns() == 0 {
		return
	}
	rn.clearFloat()
	rn.vspace(t.Style.SpaceBefore)
	rn.ensurePage()

	tl := rn.layoutTable(t, rn.a.w)
	repeat := min(t.RepeatRows, tl.rows)
	for _, g := range tl.groups() {
		page, frame := rn.pages, rn.frame
		if !rn.place(tl.rowsHeight(g[0], g[1])) {
			return
		}
		moved := page != rn.pages || frame != rn.frame
		if moved && repeat > 0 && g[0] >= repeat {
			rn.drawRows(tl, 0, repeat-1)
		}
		rn.drawRows(tl, g[0], g[1])
	}
	rn.vspace(t.Style.SpaceAfter)
}

// drawRows draws rows from..to at the cursor: backgrounds, content and
// then lines over them.
func (rn *run) drawRows(tl *tableLayout, from, to int) {
	x0 := rn.alignX(tl.t.Align, tl.width)
	y0 := rn.a.y

	type placed struct {
		p          story.Point
		x, y, w, h float64
	}
	var cells []placed
	for r := from; r <= to; r++ {
		for c := range tl.cols {
			p := story.Point{Col: c, Row: r}
			span, ok := tl.spans[p]
			if !ok {
				continue
			}
			x := x0
			for i := range c {
				x += tl.colW[i]
			}
			cells = append(cells, placed{
				p: p,
				x: x,
				y: y0 + tl.rowsHeight(from, r-1),
				w: tl.cellWidth(p, span),
				h: tl.cellHeight(p, span),
			})
		}
	}

	for _, pc := range cells {
		cp := tl.props(pc.p)
		if cp.bg.Set {
			rn.fill(cp.bg)
			rn.pdf.Rect(pc.x, pc.y, pc.w, pc.h, "F")
		}
		rn.drawCell(tl.t.Rows[pc.p.Row][pc.p.Col].Content, cp, pc.x, pc.y, pc.w, pc.h)
	}

	for _, ts := range tl.styles {
		if ts.Width <= 0 {
			continue
		}
		for _, pc := range cells {
			if !ts.Covers(pc.p) {
				continue
			}
			x1, y1, x2, y2 := pc.x, pc.y, pc.x+pc.w, pc.y+pc.h
			var edges [][4]float64
			switch ts.Kind {
			case story.StyleGrid:
				edges = [][4]float64{{x1, y1, x2, y1}, {x1, y2, x2, y2}, {x1, y1, x1, y2}, {x2, y1, x2, y2}}
			case story.StyleLineAbove:
				edges = [][4]float64{{x1, y1, x2, y1}}
			case story.StyleLineBelow:
				edges = [][4]float64{{x1, y2, x2, y2}}
			case story.StyleLineBefore:
				edges = [][4]float64{{x1, y1, x1, y2}}
			case story.StyleLineAfter:
				edges = [][4]float64{{x2, y1, x2, y2}}
			default:
				continue
			}
			rn.stroke(ts.Color, ts.Width, ts.Line)
			for _, e := range edges {
				rn.pdf.Line(e[0], e[1], e[2], e[3])
			}
		}
	}
	rn.a.y = y0 + tl.rowsHeight(from, to)
}

// drawCell places cell content inside its padding box, vertically aligned.
func (rn *run) drawCell(s *story.Story, cp cellProps, x, y, w, h float64) {
	cw := max(w-cp.pad[style.Left]-cp.pad[style.Right], 1)
	top := y + cp.pad[style.Top]
	if cp.valign == style.VAlignMiddle || cp.valign == style.VAlignBottom {
		free := h - cp.pad[style.Top] - cp.pad[style.Bottom] - rn.storyHeight(s, cw)
		if cp.valign == style.VAlignMiddle {
			free /= 2
		}
		top += max(free, 0)
	}

	saved, savedMode, savedFloat, savedAlign := rn.a, rn.mode, rn.float, rn.cellAlign
	rn.mode, rn.float, rn.cellAlign = modeCell, nil, cp.align
	rn.a = area{x: x + cp.pad[style.Left], w: cw, top: top, bottom: math.Inf(1), y: top}
	rn.drawStory(s)
	rn.a, rn.mode, rn.float, rn.cellAlign = saved, savedMode, savedFloat, savedAlign
}
