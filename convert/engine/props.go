package engine

import (
	"slices"
	"strconv"
	"strings"

	"h2p/css"
	"h2p/diag"
	"h2p/style"
)

// font properties go first: lengths in em depend on resulting size
var propertyPriority = map[string]int{
	"font":        0,
	"font-size":   1,
	"line-height": 2,
}

// applyStyles sets declared values on fragment in stable order.
func applyStyles(c *Context, f *style.Fragment, props map[string]css.Value) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		pa, oka := propertyPriority[a]
		pb, okb := propertyPriority[b]
		switch {
		case oka && okb:
			return pa - pb
		case oka:
			return -1
		case okb:
			return 1
		}
		return strings.Compare(a, b)
	})
	for _, name := range names {
		applyProperty(c, f, name, props[name])
	}
}

// resetBox clears properties which do not inherit into nested blocks.
func resetBox(f *style.Fragment) {
	f.SpaceBefore = 0
	f.SpaceAfter = 0
	f.Border = [4]style.BorderSide{}
	f.Padding = [4]float64{}
	f.KeepWithNext = false
}

func applyProperty(c *Context, f *style.Fragment, name string, v css.Value) {
	raw := strings.TrimSpace(v.Raw)
	kw := strings.ToLower(raw)
	if raw == "" || kw == "inherit" {
		return
	}
	length := func() (float64, bool) {
		return style.ParseLength(raw, f.FontSize, c.frameWidth)
	}

	ok := true
	switch name {
	case "font":
		ok = applyFontShorthand(c, f, raw)
	case "font-family":
		var face string
		if face, ok = style.ResolveFace(raw, c.fontKnown); ok {
			f.FontName = face
		}
	case "font-size":
		var size float64
		if size, ok = style.ResolveFontSize(raw, f.FontSize, c.opts.BaseFontSize); ok {
			f.FontSize = size
		}
	case "font-weight":
		var bold bool
		if bold, ok = style.ParseWeight(raw); ok {
			f.Bold = bold
		}
	case "font-style":
		f.Italic = kw == "italic" || kw == "oblique"
	case "color":
		var col style.Color
		if col, ok = style.ParseColor(raw); ok {
			f.Color = col
		}
	case "background-color", "background":
		ok = false
		for tok := range strings.FieldsSeq(raw) {
			if col, found := style.ParseColor(tok); found {
				f.BackColor, ok = col, true
				break
			}
		}
		if !ok && name == "background" {
			// background images are not supported on elements
			ok = true
		}
	case "text-align":
		var a style.Align
		if a, ok = style.ParseAlign(raw); ok {
			f.Align = a
		}
	case "vertical-align":
		f.Super, f.Sub = false, false
		switch kw {
		case "super":
			f.Super = true
		case "sub":
			f.Sub = true
		default:
			var va style.VAlign
			if va, ok = style.ParseVAlign(raw); ok {
				f.VAlign = va
			}
		}
	case "text-decoration":
		f.Underline = strings.Contains(kw, "underline")
		f.Strike = strings.Contains(kw, "line-through")
	case "text-transform":
		f.Transform = kw
	case "text-indent":
		f.FirstLineIndent, ok = length()
	case "line-height":
		if kw == "normal" {
			f.Leading = 0
			break
		}
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			f.Leading = n * f.FontSize
			break
		}
		f.Leading, ok = style.ParseLength(raw, f.FontSize, f.FontSize)
	case "margin":
		var box [4]float64
		if box, ok = style.ParseBox(raw, f.FontSize, c.frameWidth); ok {
			f.SpaceBefore, f.SpaceAfter = box[style.Top], box[style.Bottom]
			f.Indent += box[style.Left]
		}
	case "margin-top":
		f.SpaceBefore, ok = length()
	case "margin-bottom":
		f.SpaceAfter, ok = length()
	case "margin-left":
		var l float64
		if l, ok = length(); ok {
			f.Indent += l
		}
	case "margin-right":
		// frame width is never reduced from the right
	case "padding":
		var box [4]float64
		if box, ok = style.ParseBox(raw, f.FontSize, c.frameWidth); ok {
			f.Padding = box
		}
	case "padding-top", "padding-right", "padding-bottom", "padding-left":
		f.Padding[sideOf(name)], ok = length()
	case "border":
		for _, s := range []style.Side{style.Top, style.Right, style.Bottom, style.Left} {
			f.Border[s] = parseBorder(raw, f.Border[s], f.FontSize)
		}
	case "border-top", "border-right", "border-bottom", "border-left":
		s := sideOf(name)
		f.Border[s] = parseBorder(raw, f.Border[s], f.FontSize)
	case "border-width", "border-color", "border-style":
		ok = applyBorderPart(f, strings.TrimPrefix(name, "border-"), raw)
	case "border-top-width", "border-right-width", "border-bottom-width", "border-left-width",
		"border-top-color", "border-right-color", "border-bottom-color", "border-left-color",
		"border-top-style", "border-right-style", "border-bottom-style", "border-left-style":
		part := name[strings.LastIndexByte(name, '-')+1:]
		ok = setBorderPart(&f.Border[sideOf(name)], part, raw, f.FontSize)
	case "list-style-type", "list-style":
		for tok := range strings.FieldsSeq(kw) {
			if tok != "inside" && tok != "outside" {
				f.ListStyle = tok
				break
			}
		}
	case "white-space":
		f.Pre = kw == "pre" || kw == "pre-wrap" || kw == "pre-line"
	case "-pdf-keep-with-next":
		f.KeepWithNext = kw == "true" || kw == "1" || kw == "yes"
	case "-pdf-image-zoom", "zoom":
		var z float64
		if z, ok = parseZoom(raw); ok {
			f.ImageZoom = z
		}
	default:
		// layout properties handled by tag handlers or not supported
		return
	}
	if !ok {
		c.diag.Debug(c.currentLine, diag.CodeCSS, "ignoring invalid value %q of %s", raw, name)
	}
}

func (c *Context) fontKnown(family string) bool {
	return c.knownFonts[family]
}

func applyFontShorthand(c *Context, f *style.Fragment, raw string) bool {
	fields := strings.Fields(raw)
	for i, tok := range fields {
		kw := strings.ToLower(tok)
		switch {
		case kw == "italic" || kw == "oblique":
			f.Italic = true
		case kw == "normal" || kw == "small-caps":
		case kw == "bold" || kw == "bolder" || kw == "lighter" || (len(kw) == 3 && kw[0] >= '1' && kw[0] <= '9' && strings.HasSuffix(kw, "00")):
			f.Bold, _ = style.ParseWeight(kw)
		default:
			size, lh, _ := strings.Cut(tok, "/")
			sz, ok := style.ResolveFontSize(size, f.FontSize, c.opts.BaseFontSize)
			if !ok {
				return false
			}
			f.FontSize = sz
			if lh != "" {
				applyProperty(c, f, "line-height", css.Value{Raw: lh})
			}
			if family := strings.Join(fields[i+1:], " "); family != "" {
				if face, ok := style.ResolveFace(family, c.fontKnown); ok {
					f.FontName = face
				}
			}
			return true
		}
	}
	return true
}

func sideOf(name string) style.Side {
	switch {
	case strings.Contains(name, "top"):
		return style.Top
	case strings.Contains(name, "right"):
		return style.Right
	case strings.Contains(name, "bottom"):
		return style.Bottom
	default:
		return style.Left
	}
}

var borderStyles = []string{"none", "hidden", "dotted", "dashed", "solid", "double", "groove", "ridge", "inset", "outset"}

var borderWidths = map[string]float64{"thin": 0.5, "medium": 1, "thick": 2}

// parseBorder interprets border shorthand. Style without width gets
// medium width, width without style gets solid.
func parseBorder(raw string, cur style.BorderSide, fontSize float64) style.BorderSide {
	b := style.BorderSide{Color: cur.Color}
	if !b.Color.Set {
		b.Color = style.Black
	}
	widthSet := false
	for tok := range strings.FieldsSeq(raw) {
		kw := strings.ToLower(tok)
		if slices.Contains(borderStyles, kw) {
			b.Style = kw
			continue
		}
		if w, ok := borderWidths[kw]; ok {
			b.Width, widthSet = w, true
			continue
		}
		if w, ok := style.ParseLength(kw, fontSize, 0); ok {
			b.Width, widthSet = w, true
			continue
		}
		if col, ok := style.ParseColor(tok); ok {
			b.Color = col
		}
	}
	if b.Style == "" && widthSet {
		b.Style = "solid"
	}
	if !widthSet && b.Style != "" {
		b.Width = 1
	}
	return b
}

// applyBorderPart handles border-width/color/style with one to four values.
func applyBorderPart(f *style.Fragment, part, raw string) bool {
	vals := strings.Fields(raw)
	var sides [4]string
	switch len(vals) {
	case 1:
		sides = [4]string{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		sides = [4]string{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		sides = [4]string{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		sides = [4]string{vals[0], vals[1], vals[2], vals[3]}
	default:
		return false
	}
	ok := true
	for i := range sides {
		ok = setBorderPart(&f.Border[i], part, sides[i], f.FontSize) && ok
	}
	return ok
}

func setBorderPart(b *style.BorderSide, part, raw string, fontSize float64) bool {
	kw := strings.ToLower(strings.TrimSpace(raw))
	switch part {
	case "width":
		if w, ok := borderWidths[kw]; ok {
			b.Width = w
		} else if w, ok := style.ParseLength(kw, fontSize, 0); ok {
			b.Width = w
		} else {
			return false
		}
		if b.Style == "" {
			b.Style = "solid"
		}
	case "color":
		col, ok := style.ParseColor(raw)
		if !ok {
			return false
		}
		b.Color = col
	case "style":
		if !slices.Contains(borderStyles, kw) {
			return false
		}
		b.Style = kw
		if b.Width == 0 && kw != "none" && kw != "hidden" {
			b.Width = 1
		}
	}
	if !b.Color.Set {
		b.Color = style.Black
	}
	return true
}

func parseZoom(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if pct, ok := strings.CutSuffix(raw, "%"); ok {
		v, err := strconv.ParseFloat(pct, 64)
		return v / 100, err == nil && v > 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	return v, err == nil && v > 0
}
