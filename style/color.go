package style

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is an RGB color. Zero value means "not set".
type Color struct {
	R, G, B uint8
	Set     bool
}

var (
	Black = RGB(0, 0, 0)
	White = RGB(255, 255, 255)
)

func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Set: true}
}

func (c Color) String() string {
	if !c.Set {
		return "none"
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

var namedColors = map[string]Color{
	"black":     RGB(0, 0, 0),
	"white":     RGB(255, 255, 255),
	"red":       RGB(255, 0, 0),
	"green":     RGB(0, 128, 0),
	"lime":      RGB(0, 255, 0),
	"blue":      RGB(0, 0, 255),
	"navy":      RGB(0, 0, 128),
	"yellow":    RGB(255, 255, 0),
	"orange":    RGB(255, 165, 0),
	"purple":    RGB(128, 0, 128),
	"fuchsia":   RGB(255, 0, 255),
	"magenta":   RGB(255, 0, 255),
	"aqua":      RGB(0, 255, 255),
	"cyan":      RGB(0, 255, 255),
	"teal":      RGB(0, 128, 128),
	"olive":     RGB(128, 128, 0),
	"maroon":    RGB(128, 0, 0),
	"silver":    RGB(192, 192, 192),
	"gray":      RGB(128, 128, 128),
	"grey":      RGB(128, 128, 128),
	"darkgray":  RGB(169, 169, 169),
	"lightgray": RGB(211, 211, 211),
	"lightgrey": RGB(211, 211, 211),
	"brown":     RGB(165, 42, 42),
	"pink":      RGB(255, 192, 203),
}

// ParseColor interprets CSS color value: named colors, #rgb, #rrggbb and
// rgb()/rgba() functions. "transparent" parses to unset color.
func ParseColor(s string) (Color, bool) {
	s = normalize(s)
	if s == "" {
		return Color{}, false
	}
	if s == "transparent" || s == "none" {
		return Color{}, true
	}
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		return parseHex(hex)
	}
	if args, ok := cutFunc(s, "rgb"); ok {
		return parseRGBArgs(args)
	}
	if args, ok := cutFunc(s, "rgba"); ok {
		return parseRGBArgs(args)
	}
	// legacy attributes sometimes omit '#'
	if len(s) == 6 {
		return parseHex(s)
	}
	return Color{}, false
}

func parseHex(hex string) (Color, bool) {
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return Color{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return RGB(uint8(v>>16), uint8(v>>8), uint8(v)), true
}

func cutFunc(s, name string) (string, bool) {
	if !strings.HasPrefix(s, name+"(") || !strings.HasSuffix(s, ")") {
		return "", false
	}
	return s[len(name)+1 : len(s)-1], true
}

func parseRGBArgs(args string) (Color, bool) {
	parts := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
	if len(parts) < 3 {
		return Color{}, false
	}
	var ch [3]uint8
	for i := range 3 {
		p := parts[i]
		if pct, ok := strings.CutSuffix(p, "%"); ok {
			v, err := strconv.ParseFloat(pct, 64)
			if err != nil {
				return Color{}, false
			}
			ch[i] = clampByte(v * 255 / 100)
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Color{}, false
		}
		ch[i] = clampByte(v)
	}
	return RGB(ch[0], ch[1], ch[2]), true
}

func clampByte(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
