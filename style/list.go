package style

import (
	"fmt"
	"strings"
)

// Bullet describes how list items are marked: either a fixed glyph or a
// formatter applied to the item counter.
type Bullet struct {
	Glyph  string
	Format func(n int) string
}

// Label returns marker text for item number n (1-based).
func (b Bullet) Label(n int) string {
	if b.Format != nil {
		return b.Format(n)
	}
	return b.Glyph
}

// Counted reports whether bullet depends on the counter.
func (b Bullet) Counted() bool {
	return b.Format != nil
}

var (
	bulletDisc   = Bullet{Glyph: "•"}
	bulletCircle = Bullet{Glyph: "o"}
	bulletSquare = Bullet{Glyph: "▪"}
)

// ResolveBullet maps list-style-type value to bullet. Unknown values resolve
// to disc.
func ResolveBullet(listStyle string) Bullet {
	switch normalize(listStyle) {
	case "disc":
		return bulletDisc
	case "circle":
		return bulletCircle
	case "square":
		return bulletSquare
	case "none":
		return Bullet{}
	case "decimal":
		return Bullet{Format: func(n int) string { return fmt.Sprintf("%d.", n) }}
	case "decimal-leading-zero":
		return Bullet{Format: func(n int) string { return fmt.Sprintf("%02d.", n) }}
	case "lower-alpha", "lower-latin":
		return Bullet{Format: func(n int) string { return alpha(n) + "." }}
	case "upper-alpha", "upper-latin":
		return Bullet{Format: func(n int) string { return strings.ToUpper(alpha(n)) + "." }}
	case "lower-roman":
		return Bullet{Format: func(n int) string { return strings.ToLower(roman(n)) + "." }}
	case "upper-roman":
		return Bullet{Format: func(n int) string { return roman(n) + "." }}
	}
	return bulletDisc
}

// ListTypeAttr maps legacy type attribute of ol/ul to list-style-type. The
// attribute is case sensitive for ordered lists.
func ListTypeAttr(t string) string {
	switch strings.TrimSpace(t) {
	case "1":
		return "decimal"
	case "a":
		return "lower-alpha"
	case "A":
		return "upper-alpha"
	case "i":
		return "lower-roman"
	case "I":
		return "upper-roman"
	}
	return normalize(t)
}

// alpha formats 1 -> a, 26 -> z, 27 -> aa.
func alpha(n int) string {
	if n <= 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('a' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

var romanTable = []struct {
	v int
	s string
}{
	{1000, "M"}, {900, "CM"}, {500, "D"}, {400, "CD"},
	{100, "C"}, {90, "XC"}, {50, "L"}, {40, "XL"},
	{10, "X"}, {9, "IX"}, {5, "V"}, {4, "IV"}, {1, "I"},
}

func roman(n int) string {
	if n <= 0 || n >= 4000 {
		return fmt.Sprintf("%d", n)
	}
	var sb strings.Builder
	for _, r := range romanTable {
		for n >= r.v {
			sb.WriteString(r.s)
			n -= r.v
		}
	}
	return sb.String()
}
