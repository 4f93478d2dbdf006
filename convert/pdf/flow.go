package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

// gap between floating image and text flowing around it
const floatGap = 6

// drawStory places story elements into the current area.
func (rn *run) drawStory(s *story.Story) {
	for _, e := range s.Elements {
		if rn.ctx.Err() != nil {
			return
		}
		switch v := e.(type) {
		case *story.Paragraph:
			rn.paragraph(v)
		case *story.Table:
			rn.table(v)
		case *story.Image:
			rn.image(v)
		case *story.Rule:
			rn.rule(v)
		case *story.Spacer:
			if rn.place(v.Height) {
				rn.a.y += v.Height
			}
		case *story.PageBreak:
			if rn.mode != modeFlow {
				continue
			}
			rn.clearFloat()
			if v.Template != "" {
				rn.tplName = v.Template
			}
			rn.endPage()
		case *story.NextTemplate:
			if rn.mode == modeFlow {
				rn.tplName = v.Name
			}
		case *story.FrameBreak:
			if rn.mode != modeFlow || !rn.onPage {
				continue
			}
			if rn.frame+1 < len(rn.flows) {
				rn.nextFrame()
			} else {
				rn.endPage()
			}
		case *story.TOC:
			rn.toc(v)
		default:
			rn.log.Debug("Unsupported flow element", zap.String("type", fmt.Sprintf("%T", e)))
		}
	}
	rn.clearFloat()
}

// clearFloat moves cursor below floating image.
func (rn *run) clearFloat() {
	if rn.float != nil {
		rn.a.y = max(rn.a.y, rn.float.bottom)
		rn.float = nil
	}
}

// inset is distance between block edge and its content on side.
func inset(f style.Fragment, side style.Side) float64 {
	b := 0.0
	if f.Border[side].Visible() {
		b = f.Border[side].Width
	}
	return f.Padding[side] + b
}

// contentBox returns x offset and width of paragraph line inside block of
// width w.
func contentBox(f style.Fragment, first bool, w float64) (float64, float64) {
	x := f.Indent + inset(f, style.Left)
	w -= x + inset(f, style.Right)
	if first {
		x += f.FirstLineIndent
		w -= f.FirstLineIndent
	}
	return x, max(w, 1)
}

// lineBox positions next line in the current area taking floats into
// account.
func (rn *run) lineBox(f style.Fragment, first bool) (float64, float64) {
	x, w := contentBox(f, first, rn.a.w)
	x += rn.a.x
	if fl := rn.float; fl != nil && rn.a.y < fl.bottom {
		if fl.side == style.AlignLeft {
			x += fl.w
		}
		w = max(w-fl.w, 1)
	}
	return x, w
}

func anchorsOnly(toks []token) bool {
	for _, t := range toks {
		if t.kind != tokAnchor {
			return false
		}
	}
	return true
}

func (rn *run) paragraph(p *story.Paragraph) {
	st := p.Style
	toks := rn.tokenize(p)
	if anchorsOnly(toks) {
		rn.ensurePage()
		for _, t := range toks {
			rn.anchor(t.text, rn.a.y)
		}
		return
	}

	rn.vspace(st.SpaceBefore)
	if st.KeepWithNext && rn.mode == modeFlow && rn.onPage && !rn.a.atTop() {
		need := rn.paragraphHeight(p, rn.a.w) + st.LineHeight()*2
		if rn.a.y+need > rn.a.bottom && need < rn.a.bottom-rn.a.top {
			rn.nextFrame()
		}
	}

	align := st.Align
	if (align == "" || align == style.AlignLeft) && rn.cellAlign != "" {
		align = rn.cellAlign
	}
	padTop, padBottom := inset(st, style.Top), inset(st, style.Bottom)
	for first := true; first || len(toks) > 0; first = false {
		_, avail := rn.lineBox(st, first)
		l, rest := rn.breakLine(toks, avail, st)
		top, bottom := 0.0, 0.0
		if first {
			top = padTop
		}
		if len(rest) == 0 {
			bottom = padBottom
		}
		h := top + l.height() + bottom
		if !rn.place(h) {
			return
		}
		x, avail := rn.lineBox(st, first)
		y := rn.a.y
		if st.HasBox() {
			rn.drawBand(st, y, h, first, len(rest) == 0)
		}
		if first {
			if p.Level > 0 {
				rn.heading(p, y)
			}
			if p.Bullet != "" {
				rn.bullet(p.Bullet, st, x, y+top+l.ascent)
			}
		}
		rn.drawLine(&l, x, y+top, avail, align)
		rn.a.y += h
		toks = rest
	}
	rn.vspace(st.SpaceAfter)
}

// paragraphHeight measures paragraph laid out into width w without floats
// and vertical spacing.
func (rn *run) paragraphHeight(p *story.Paragraph, w float64) float64 {
	st := p.Style
	toks := rn.tokenize(p)
	if anchorsOnly(toks) {
		return 0
	}
	h := inset(st, style.Top) + inset(st, style.Bottom)
	for first := true; first || len(toks) > 0; first = false {
		_, avail := contentBox(st, first, w)
		var l line
		l, toks = rn.breakLine(toks, avail, st)
		h += l.height()
	}
	return h
}

// drawBand draws background and borders of a block slice. Blocks split
// across frames get open edges at the split.
func (rn *run) drawBand(f style.Fragment, y, h float64, first, last bool) {
	x := rn.a.x + f.Indent
	w := rn.a.w - f.Indent
	if f.BackColor.Set {
		rn.fill(f.BackColor)
		rn.pdf.Rect(x, y, w, h, "F")
	}
	edge := func(side style.Side, x1, y1, x2, y2 float64) {
		b := f.Border[side]
		if !b.Visible() {
			return
		}
		rn.stroke(b.Color, b.Width, b.Style)
		rn.pdf.Line(x1, y1, x2, y2)
	}
	if first {
		edge(style.Top, x, y, x+w, y)
	}
	if last {
		edge(style.Bottom, x, y+h, x+w, y+h)
	}
	edge(style.Left, x, y, x, y+h)
	edge(style.Right, x+w, y, x+w, y+h)
}

// bullet draws list marker in front of the line.
func (rn *run) bullet(label string, f style.Fragment, x, baseline float64) {
	f.Super, f.Sub, f.Underline, f.Strike = false, false, false, false
	conv := rn.setFont(f)
	w := rn.pdf.GetStringWidth(conv(label))
	bx := max(x-w-f.FontSize*0.5, rn.a.x)
	rn.color(f.Color)
	rn.pdf.Text(bx, baseline, conv(label))
}

// heading records heading position and adds outline entry.
func (rn *run) heading(p *story.Paragraph, y float64) {
	if rn.static {
		return
	}
	title := headingTitle(p)
	rn.pagination.Headings = append(rn.pagination.Headings, story.HeadingPage{
		Key:   p.Key,
		Level: p.Level,
		Title: title,
		Page:  rn.pages,
	})
	rn.anchor(p.Key, y)

	// outline levels may only grow one step at a time
	level := min(p.Level-1, rn.lastLevel+1)
	rn.lastLevel = level
	if title != "" && !rn.dry {
		conv := rn.setFont(p.Style)
		rn.pdf.Bookmark(conv(title), level, y)
	}
}

func headingTitle(p *story.Paragraph) string {
	return strings.Join(strings.Fields(p.Text()), " ")
}

func (rn *run) image(img *story.Image) {
	if img.Image == nil || img.Width <= 0 || img.Height <= 0 {
		return
	}
	if img.Float == style.AlignLeft || img.Float == style.AlignRight {
		rn.clearFloat()
		if !rn.place(img.Height) {
			return
		}
		x := rn.a.x
		if img.Float == style.AlignRight {
			x = rn.a.x + rn.a.w - img.Width
		}
		rn.drawImage(img.Image, x, rn.a.y, img.Width, img.Height, img.Link)
		rn.float = &floater{side: img.Float, w: img.Width + floatGap, bottom: rn.a.y + img.Height}
		return
	}

	rn.clearFloat()
	rn.vspace(img.Style.SpaceBefore)
	if !rn.place(img.Height) {
		return
	}
	rn.drawImage(img.Image, rn.alignX(img.Style.Align, img.Width), rn.a.y, img.Width, img.Height, img.Link)
	rn.a.y += img.Height
	rn.vspace(img.Style.SpaceAfter)
}

// alignX positions block of width w horizontally in the current area.
func (rn *run) alignX(align style.Align, w float64) float64 {
	if align == "" && rn.cellAlign != "" {
		align = rn.cellAlign
	}
	switch align {
	case style.AlignRight:
		return rn.a.x + rn.a.w - w
	case style.AlignCenter:
		return rn.a.x + (rn.a.w-w)/2
	}
	return rn.a.x
}

// drawImage registers image data once and draws it.
func (rn *run) drawImage(img *resource.Image, x, y, w, h float64, link string) {
	if rn.dry {
		return
	}
	name, ok := rn.images[img]
	if !ok {
		name = "img" + strconv.Itoa(len(rn.images)+1)
		rn.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: img.Type}, bytes.NewReader(img.Data))
		rn.images[img] = name
	}
	rn.pdf.ImageOptions(name, x, y, w, h, false, fpdf.ImageOptions{ImageType: img.Type}, 0, "")
	rn.link(x, y, w, h, link)
}

func (rn *run) rule(r *story.Rule) {
	rn.clearFloat()
	rn.vspace(r.SpaceBefore)
	th := max(r.Thickness, 0.1)
	if !rn.place(th) {
		return
	}
	w := r.Width
	if w <= 0 || w > rn.a.w {
		w = rn.a.w
	}
	x := rn.alignX(r.Align, w)
	y := rn.a.y + th/2
	rn.stroke(r.Color, th, "solid")
	rn.pdf.Line(x, y, x+w, y)
	rn.a.y += th
	rn.vspace(r.SpaceAfter)
}

// tocEntries lists headings for table of contents, with pages when
// pagination pass was done.
func (rn *run) tocEntries() []story.HeadingPage {
	if pg := rn.doc.Pagination; pg != nil && len(pg.Headings) > 0 {
		return pg.Headings
	}
	var out []story.HeadingPage
	rn.doc.Story.Walk(func(e story.Element) {
		if p, ok := e.(*story.Paragraph); ok && p.Level > 0 {
			out = append(out, story.HeadingPage{Key: p.Key, Level: p.Level, Title: headingTitle(p)})
		}
	})
	return out
}

// toc draws table of contents, page numbers are right aligned. Space for
// numbers is reserved even when pages are not known yet so both passes lay
// entries out the same way.
func (rn *run) toc(t *story.TOC) {
	f := t.Style
	if f.FontSize <= 0 {
		f = style.Default(style.FontHelvetica, 10)
	}
	reserve := rn.textWidth("0000", f)
	for _, e := range rn.tocEntries() {
		page := ""
		if e.Page > 0 {
			page = strconv.Itoa(e.Page)
		}
		st := f
		st.Indent += float64(max(e.Level-1, 0)) * f.FontSize * 1.5
		p := &story.Paragraph{Items: []story.Inline{&story.Span{Text: e.Title, Style: st, Link: "#" + e.Key}}, Style: st}
		toks := rn.tokenize(p)
		for first := true; first || len(toks) > 0; first = false {
			_, avail := rn.lineBox(st, first)
			l, rest := rn.breakLine(toks, avail-reserve, st)
			if !rn.place(l.height()) {
				return
			}
			x, avail := rn.lineBox(st, first)
			y := rn.a.y
			rn.drawLine(&l, x, y, avail-reserve, style.AlignLeft)
			if len(rest) == 0 && page != "" {
				conv := rn.setFont(st)
				pw := rn.pdf.GetStringWidth(conv(page))
				px := x + avail - pw
				rn.color(st.Color)
				rn.pdf.Text(px, y+l.ascent, conv(page))
				rn.link(px, y, pw, l.height(), "#"+e.Key)
			}
			rn.a.y += l.height()
			toks = rest
		}
	}
}

// storyHeight measures story laid out into width w as table cell content.
func (rn *run) storyHeight(s *story.Story, w float64) float64 {
	h, floatBottom := 0.0, 0.0
	gap := func(v float64) {
		if h > 0 {
			h += v
		}
	}
	for _, e := range s.Elements {
		switch v := e.(type) {
		case *story.Paragraph:
			if ph := rn.paragraphHeight(v, w); ph > 0 {
				gap(v.Style.SpaceBefore)
				h += ph
				gap(v.Style.SpaceAfter)
			}
		case *story.Table:
			h = max(h, floatBottom)
			gap(v.Style.SpaceBefore)
			h += rn.tableHeight(v, w)
			gap(v.Style.SpaceAfter)
		case *story.Image:
			if v.Float == style.AlignLeft || v.Float == style.AlignRight {
				floatBottom = max(floatBottom, h+v.Height)
				continue
			}
			h = max(h, floatBottom)
			gap(v.Style.SpaceBefore)
			h += v.Height
			gap(v.Style.SpaceAfter)
		case *story.Rule:
			h = max(h, floatBottom)
			gap(v.SpaceBefore)
			h += max(v.Thickness, 0.1)
			gap(v.SpaceAfter)
		case *story.Spacer:
			h += v.Height
		case *story.TOC:
			h += float64(len(rn.tocEntries())) * v.Style.LineHeight()
		}
	}
	return max(h, floatBottom)
}

// naturalWidth is width story content takes without wrapping.
func (rn *run) naturalWidth(s *story.Story) float64 {
	w := 0.0
	for _, e := range s.Elements {
		switch v := e.(type) {
		case *story.Paragraph:
			st := v.Style
			lw := 0.0
			for _, t := range rn.tokenize(v) {
				if t.kind == tokBreak {
					w = max(w, lw)
					lw = 0
					continue
				}
				lw += t.w
			}
			lw += st.Indent + st.FirstLineIndent + inset(st, style.Left) + inset(st, style.Right)
			w = max(w, lw)
		case *story.Image:
			w = max(w, v.Width)
		case *story.Rule:
			w = max(w, v.Width)
		case *story.Table:
			tw := v.Width
			if tw == 0 {
				for _, cw := range v.ColWidths {
					tw += cw
				}
			}
			w = max(w, tw)
		}
	}
	return w
}
