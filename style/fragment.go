// Package style defines the cascading visual style snapshot (Fragment) and
// helpers to interpret CSS and HTML attribute values into it.
package style

// Align is horizontal block alignment.
type Align string

const (
	AlignLeft    Align = "left"
	AlignRight   Align = "right"
	AlignCenter  Align = "center"
	AlignJustify Align = "justify"
)

// ParseAlign interprets text-align and align attribute values.
func ParseAlign(s string) (Align, bool) {
	switch Align(normalize(s)) {
	case AlignLeft, "start":
		return AlignLeft, true
	case AlignRight, "end":
		return AlignRight, true
	case AlignCenter, "middle":
		return AlignCenter, true
	case AlignJustify:
		return AlignJustify, true
	}
	return "", false
}

// VAlign is vertical alignment of inline content or table cells.
type VAlign string

const (
	VAlignBaseline VAlign = "baseline"
	VAlignTop      VAlign = "top"
	VAlignMiddle   VAlign = "middle"
	VAlignBottom   VAlign = "bottom"
	VAlignSuper    VAlign = "super"
	VAlignSub      VAlign = "sub"
)

// ParseVAlign interprets vertical-align and valign values including legacy
// image alignments.
func ParseVAlign(s string) (VAlign, bool) {
	switch normalize(s) {
	case "top", "texttop", "text-top":
		return VAlignTop, true
	case "middle", "absmiddle", "center":
		return VAlignMiddle, true
	case "bottom", "absbottom", "text-bottom":
		return VAlignBottom, true
	case "baseline":
		return VAlignBaseline, true
	case "super":
		return VAlignSuper, true
	case "sub":
		return VAlignSub, true
	}
	return "", false
}

// Side indexes four-sided box values.
type Side int

const (
	Top Side = iota
	Right
	Bottom
	Left
)

// BorderSide is a single side of a border.
type BorderSide struct {
	Width float64
	Color Color
	Style string // "solid", "dashed", "dotted", "none", ...
}

// Visible reports whether side should be drawn.
func (b BorderSide) Visible() bool {
	return b.Width > 0 && b.Style != "none" && b.Style != "hidden" && b.Style != ""
}

// Fragment is a style snapshot. It is a plain value without reference
// fields, so assignment is a deep copy.
type Fragment struct {
	FontName  string
	FontSize  float64
	Bold      bool
	Italic    bool
	Super     bool
	Sub       bool
	Underline bool
	Strike    bool
	Transform string // text-transform

	Color     Color
	BackColor Color

	Align           Align
	VAlign          VAlign
	Border          [4]BorderSide
	Padding         [4]float64
	SpaceBefore     float64
	SpaceAfter      float64
	Indent          float64
	FirstLineIndent float64
	Leading         float64 // absolute line height, 0 means derived from font size

	Link       string // pending hyperlink target
	AnchorName string // pending anchor name

	ListStyle    string
	ImageZoom    float64
	KeepWithNext bool
	InFrame      bool
	Pre          bool
}

// Default returns root fragment for given base font.
func Default(fontName string, fontSize float64) Fragment {
	if fontName == "" {
		fontName = FontHelvetica
	}
	if fontSize <= 0 {
		fontSize = 10
	}
	return Fragment{
		FontName:  fontName,
		FontSize:  fontSize,
		Color:     Black,
		Align:     AlignLeft,
		VAlign:    VAlignBaseline,
		ListStyle: "disc",
		ImageZoom: 1,
	}
}

// FontStyle returns style string in the form PDF writers expect: "", "B",
// "I" or "BI".
func (f Fragment) FontStyle() string {
	s := ""
	if f.Bold {
		s += "B"
	}
	if f.Italic {
		s += "I"
	}
	return s
}

// EffectiveSize returns font size taking super/subscript into account.
func (f Fragment) EffectiveSize() float64 {
	if f.Super || f.Sub {
		return f.FontSize * 0.7
	}
	return f.FontSize
}

// LineHeight returns height of a single line.
func (f Fragment) LineHeight() float64 {
	if f.Leading > 0 {
		return f.Leading
	}
	return f.FontSize * 1.2
}

// HasBox reports whether fragment carries block decoration (border, padding
// or background) which must be drawn around a block.
func (f Fragment) HasBox() bool {
	if f.BackColor.Set {
		return true
	}
	for i := range f.Border {
		if f.Border[i].Visible() || f.Padding[i] > 0 {
			return true
		}
	}
	return false
}
