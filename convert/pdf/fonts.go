package pdf

import (
	"go.uber.org/zap"

	"h2p/story"
	"h2p/style"
)

type fontKey struct {
	family string
	style  string
}

// core fonts come with every PDF viewer, symbolic ones have no variants
var coreFonts = map[string]bool{
	style.FontHelvetica: true,
	style.FontTimes:     true,
	style.FontCourier:   true,
	style.FontSymbol:    false,
	style.FontZapf:      false,
}

func faceStyle(bold, italic bool) string {
	s := ""
	if bold {
		s += "B"
	}
	if italic {
		s += "I"
	}
	return s
}

// registerFonts embeds document font faces. Faces fpdf rejects are skipped.
func (rn *run) registerFonts(fonts []story.Font) {
	for _, f := range fonts {
		key := fontKey{family: f.Family, style: faceStyle(f.Bold, f.Italic)}
		if _, core := coreFonts[key.family]; core || rn.faces[key] {
			rn.log.Debug("Font face ignored", zap.String("family", key.family), zap.String("style", key.style))
			continue
		}
		rn.pdf.AddUTF8FontFromBytes(key.family, key.style, f.Data)
		if err := rn.pdf.Error(); err != nil {
			rn.log.Warn("Unable to embed font", zap.String("family", key.family), zap.Error(err))
			rn.pdf.ClearError()
			continue
		}
		rn.faces[key] = true
	}
}

// resolveFont maps fragment font to a face registered with fpdf. Embedded
// families fall back to any registered variant, unknown families to
// Helvetica.
func (rn *run) resolveFont(f style.Fragment) (fontKey, bool) {
	want := fontKey{family: f.FontName, style: f.FontStyle()}
	if variants, core := coreFonts[want.family]; core {
		if !variants {
			want.style = ""
		}
		return want, true
	}
	if rn.faces[want] {
		return want, false
	}
	for _, s := range []string{"", "B", "I", "BI"} {
		if k := (fontKey{family: want.family, style: s}); rn.faces[k] {
			return k, false
		}
	}
	return fontKey{family: style.FontHelvetica, style: want.style}, true
}

// setFont selects fragment font and returns text converter matching its
// encoding.
func (rn *run) setFont(f style.Fragment) func(string) string {
	key, core := rn.resolveFont(f)
	size := f.EffectiveSize()
	if size <= 0 {
		size = 10
	}
	rn.pdf.SetFont(key.family, key.style, size)
	if core {
		return rn.tr
	}
	return identity
}

func identity(s string) string { return s }

// textWidth measures s drawn with fragment font.
func (rn *run) textWidth(s string, f style.Fragment) float64 {
	if s == "" {
		return 0
	}
	conv := rn.setFont(f)
	return rn.pdf.GetStringWidth(conv(s))
}
