package style

import (
	"strconv"
	"strings"
)

// Conversion factors to PDF points.
const (
	PtPerInch = 72.0
	PtPerMM   = PtPerInch / 25.4
	PtPerCM   = PtPerInch / 2.54
	PtPerPx   = 0.75
	PtPerPica = 12.0
)

// ParseLength converts CSS length into points. Percentages are relative to
// ref, em and ex to fontSize. Numbers without unit are taken as points,
// which is how HTML size attributes have always been treated by print
// converters.
func ParseLength(s string, fontSize, ref float64) (float64, bool) {
	s = normalize(s)
	if s == "" || s == "auto" || s == "none" || s == "normal" {
		return 0, false
	}

	num, unit := splitNumber(s)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	switch unit {
	case "", "pt":
		return v, true
	case "px":
		return v * PtPerPx, true
	case "mm":
		return v * PtPerMM, true
	case "cm":
		return v * PtPerCM, true
	case "in":
		return v * PtPerInch, true
	case "pc":
		return v * PtPerPica, true
	case "em", "rem":
		return v * fontSize, true
	case "ex":
		return v * fontSize / 2, true
	case "%":
		return v * ref / 100, true
	}
	return 0, false
}

// IsPercent reports whether length is given in percents.
func IsPercent(s string) bool {
	return strings.HasSuffix(strings.TrimSpace(s), "%")
}

// splitNumber splits leading number from unit.
func splitNumber(s string) (string, string) {
	end := 0
	for i, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || ((r == '-' || r == '+') && i == 0) {
			end = i + 1
			continue
		}
		break
	}
	return s[:end], strings.TrimSpace(s[end:])
}

// ParseBox expands CSS shorthand with one to four values (margin, padding,
// border-width) into top, right, bottom, left.
func ParseBox(s string, fontSize, ref float64) ([4]float64, bool) {
	var out [4]float64
	parts := strings.Fields(s)
	vals := make([]float64, 0, 4)
	for _, p := range parts {
		v, ok := ParseLength(p, fontSize, ref)
		if !ok && normalize(p) != "auto" {
			return out, false
		}
		vals = append(vals, v)
	}
	switch len(vals) {
	case 1:
		out = [4]float64{vals[0], vals[0], vals[0], vals[0]}
	case 2:
		out = [4]float64{vals[0], vals[1], vals[0], vals[1]}
	case 3:
		out = [4]float64{vals[0], vals[1], vals[2], vals[1]}
	case 4:
		out = [4]float64{vals[0], vals[1], vals[2], vals[3]}
	default:
		return out, false
	}
	return out, true
}

// PageSize returns dimensions in points of named paper size.
func PageSize(name string) (w, h float64, ok bool) {
	switch normalize(name) {
	case "a3":
		return 841.89, 1190.55, true
	case "a4":
		return 595.28, 841.89, true
	case "a5":
		return 419.53, 595.28, true
	case "b5":
		return 498.9, 708.66, true
	case "letter":
		return 612, 792, true
	case "legal":
		return 612, 1008, true
	}
	return 0, 0, false
}
