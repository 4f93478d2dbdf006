package pdf

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"h2p/story"
	"h2p/style"
)

type tokKind int

const (
	tokWord tokKind = iota
	tokSpace
	tokBreak
	tokImage
	tokAnchor
)

// token is unit of line breaking. Lines break only at spaces and hard
// breaks, adjacent non-space tokens stay together.
type token struct {
	kind  tokKind
	text  string
	style style.Fragment
	link  string
	image *story.InlineImage
	w     float64
}

func (t token) glue() bool {
	return t.kind != tokSpace && t.kind != tokBreak
}

// tokenize splits paragraph content into measured tokens. Field values are
// computed for the page content is about to be placed on.
func (rn *run) tokenize(p *story.Paragraph) []token {
	var toks []token
	for _, it := range p.Items {
		switch v := it.(type) {
		case *story.Span:
			toks = rn.appendText(toks, v.Text, v.Style, v.Link)
		case *story.Field:
			toks = rn.appendText(toks, rn.fieldText(v.Kind), v.Style, "")
		case *story.Break:
			toks = append(toks, token{kind: tokBreak, style: p.Style})
		case *story.AnchorMark:
			toks = append(toks, token{kind: tokAnchor, text: v.Name})
		case *story.InlineImage:
			if v.Image == nil {
				continue
			}
			toks = append(toks, token{kind: tokImage, image: v, link: v.Link, w: v.Width, style: p.Style})
		}
	}
	return toks
}

func (rn *run) appendText(toks []token, text string, f style.Fragment, link string) []token {
	for len(text) > 0 {
		var kind tokKind
		n := 0
		switch text[0] {
		case '\n':
			toks = append(toks, token{kind: tokBreak, style: f})
			text = text[1:]
			continue
		case ' ':
			kind = tokSpace
			for n < len(text) && text[n] == ' ' {
				n++
			}
			if !f.Pre {
				// collapsed to a single breakable space
				text = text[n-1:]
				n = 1
			}
		default:
			kind = tokWord
			n = strings.IndexAny(text, " \n")
			if n < 0 {
				n = len(text)
			}
		}
		s := text[:n]
		text = text[n:]
		toks = append(toks, token{kind: kind, text: s, style: f, link: link, w: rn.textWidth(s, f)})
	}
	return toks
}

func (rn *run) fieldText(kind story.FieldKind) string {
	switch kind {
	case story.FieldPageNumber:
		page := rn.pages
		if !rn.onPage {
			page++
		}
		return strconv.Itoa(max(page, 1))
	case story.FieldPageCount:
		if pg := rn.doc.Pagination; pg != nil && pg.Pages > 0 {
			return strconv.Itoa(pg.Pages)
		}
		return "?"
	}
	return ""
}

// line is a laid out line of paragraph.
type line struct {
	toks    []token
	width   float64
	spaces  int
	ascent  float64
	descent float64
	hard    bool // ends with hard break or paragraph end
}

func (l *line) height() float64 {
	return l.ascent + l.descent
}

func (l *line) content() bool {
	for _, t := range l.toks {
		if t.kind != tokAnchor {
			return true
		}
	}
	return false
}

func (l *line) add(t token) {
	l.toks = append(l.toks, t)
	l.width += t.w
	if t.kind == tokSpace {
		l.spaces++
	}
}

// trim drops trailing spaces unless they are preformatted.
func (l *line) trim() {
	for len(l.toks) > 0 {
		t := l.toks[len(l.toks)-1]
		if t.kind != tokSpace || t.style.Pre {
			break
		}
		l.toks = l.toks[:len(l.toks)-1]
		l.width -= t.w
		l.spaces--
	}
}

// textMetrics returns ascent and descent of text set with fragment
// including half leading.
func textMetrics(f style.Fragment) (float64, float64) {
	size := f.FontSize
	half := (f.LineHeight() - size) / 2
	return half + size*0.8, half + size*0.2
}

// shift is baseline offset of super and subscript text, positive is up.
func shift(f style.Fragment) float64 {
	switch {
	case f.Super:
		return f.FontSize * 0.35
	case f.Sub:
		return -f.FontSize * 0.2
	}
	return 0
}

// measure computes line box. Paragraph style acts as strut so lines never
// collapse below paragraph line height.
func (l *line) measure(strut style.Fragment) {
	l.ascent, l.descent = textMetrics(strut)
	for _, t := range l.toks {
		switch t.kind {
		case tokWord, tokSpace:
			a, d := textMetrics(t.style)
			s := shift(t.style)
			l.ascent = max(l.ascent, a+s)
			l.descent = max(l.descent, d-s)
		case tokImage:
			a, d := imageMetrics(t.image, strut)
			l.ascent = max(l.ascent, a)
			l.descent = max(l.descent, d)
		}
	}
}

func imageMetrics(img *story.InlineImage, strut style.Fragment) (float64, float64) {
	sa, _ := textMetrics(strut)
	switch img.VAlign {
	case style.VAlignTop:
		return sa, img.Height - sa
	case style.VAlignMiddle:
		mid := strut.FontSize * 0.3
		return img.Height/2 + mid, img.Height/2 - mid
	}
	return img.Height, 0
}

// breakLine takes tokens fitting avail width off toks. Line always
// consumes something, words longer than the whole width are split.
func (rn *run) breakLine(toks []token, avail float64, strut style.Fragment) (line, []token) {
	var l line
	if len(toks) > 0 && toks[0].kind == tokSpace && !toks[0].style.Pre {
		toks = toks[1:]
	}
	for len(toks) > 0 {
		t := toks[0]
		switch t.kind {
		case tokBreak:
			l.hard = true
			toks = toks[1:]
			l.trim()
			l.measure(strut)
			return l, toks
		case tokSpace:
			l.add(t)
			toks = toks[1:]
			continue
		}

		n, w := 0, 0.0
		for n < len(toks) && toks[n].glue() {
			w += toks[n].w
			n++
		}
		if l.width+w <= avail+epsilon {
			for _, t := range toks[:n] {
				l.add(t)
			}
			toks = toks[n:]
			continue
		}
		if l.content() {
			break
		}
		// chunk alone is wider than the line
		toks = rn.splitChunk(&l, toks, n, avail)
		break
	}
	if len(toks) == 0 {
		l.hard = true
	}
	l.trim()
	l.measure(strut)
	return l, toks
}

// splitChunk fills empty line with as much of the first n tokens as fits,
// splitting the word at which width runs out.
func (rn *run) splitChunk(l *line, toks []token, n int, avail float64) []token {
	for i := range n {
		t := toks[i]
		if l.width+t.w <= avail+epsilon || (t.kind != tokWord && !l.content()) {
			l.add(t)
			continue
		}
		if t.kind != tokWord {
			return toks[i:]
		}
		head, tail := rn.splitWord(t, avail-l.width, !l.content())
		if head.text != "" {
			l.add(head)
		}
		if tail.text == "" {
			return toks[i+1:]
		}
		rest := make([]token, 0, len(toks)-i)
		rest = append(rest, tail)
		return append(rest, toks[i+1:]...)
	}
	return toks[n:]
}

// splitWord cuts word so the head fits room. When force is set head gets at
// least one character.
func (rn *run) splitWord(t token, room float64, force bool) (token, token) {
	cut := 0
	for i := range t.text {
		if i == 0 {
			continue
		}
		if rn.textWidth(t.text[:i], t.style) > room+epsilon {
			break
		}
		cut = i
	}
	if cut == 0 {
		if !force {
			return token{}, t
		}
		_, cut = utf8.DecodeRuneInString(t.text)
		if cut >= len(t.text) {
			return t, token{}
		}
	}
	head, tail := t, t
	head.text, tail.text = t.text[:cut], t.text[cut:]
	head.w, tail.w = rn.textWidth(head.text, t.style), rn.textWidth(tail.text, t.style)
	return head, tail
}

// drawLine draws line with its top at y. Box is x and width available to
// the line.
func (rn *run) drawLine(l *line, x, y, avail float64, align style.Align) {
	extra := 0.0
	switch align {
	case style.AlignRight:
		x += avail - l.width
	case style.AlignCenter:
		x += (avail - l.width) / 2
	case style.AlignJustify:
		if !l.hard && l.spaces > 0 {
			extra = (avail - l.width) / float64(l.spaces)
		}
	}
	baseline := y + l.ascent
	h := l.height()

	for _, t := range l.toks {
		w := t.w
		if t.kind == tokSpace {
			w += extra
		}
		switch t.kind {
		case tokWord, tokSpace:
			rn.drawText(t, x, y, baseline, w, h)
		case tokImage:
			top := baseline - t.image.Height
			switch t.image.VAlign {
			case style.VAlignTop:
				top = y
			case style.VAlignMiddle:
				top = baseline - t.image.Height/2 - t.style.FontSize*0.3
			}
			rn.drawImage(t.image.Image, x, top, t.image.Width, t.image.Height, "")
		case tokAnchor:
			rn.anchor(t.text, y)
		}
		rn.link(x, y, w, h, t.link)
		x += w
	}
}

func (rn *run) drawText(t token, x, top, baseline, w, h float64) {
	f := t.style
	if f.BackColor.Set {
		rn.fill(f.BackColor)
		rn.pdf.Rect(x, top, w, h, "F")
	}
	by := baseline - shift(f)
	if t.kind == tokWord {
		conv := rn.setFont(f)
		rn.color(f.Color)
		rn.pdf.Text(x, by, conv(t.text))
	}
	if f.Underline || f.Strike {
		rn.stroke(f.Color, max(f.EffectiveSize()*0.05, 0.25), "solid")
		if f.Underline {
			rn.pdf.Line(x, by+f.EffectiveSize()*0.12, x+w, by+f.EffectiveSize()*0.12)
		}
		if f.Strike {
			rn.pdf.Line(x, by-f.EffectiveSize()*0.28, x+w, by-f.EffectiveSize()*0.28)
		}
	}
}

func (rn *run) color(c style.Color) {
	if !c.Set {
		c = style.Black
	}
	rn.pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
}

func (rn *run) fill(c style.Color) {
	rn.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

// stroke prepares line drawing state.
func (rn *run) stroke(c style.Color, width float64, kind string) {
	if !c.Set {
		c = style.Black
	}
	rn.pdf.SetDrawColor(int(c.R), int(c.G), int(c.B))
	rn.pdf.SetLineWidth(width)
	switch kind {
	case "dashed":
		rn.pdf.SetDashPattern([]float64{3 * width, 2 * width}, 0)
	case "dotted":
		rn.pdf.SetDashPattern([]float64{width, width}, 0)
	default:
		rn.pdf.SetDashPattern([]float64{}, 0)
	}
}
