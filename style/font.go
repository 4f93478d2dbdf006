package style

import (
	"math"
	"strconv"
	"strings"
)

// Names of fonts every PDF viewer provides.
const (
	FontHelvetica = "helvetica"
	FontTimes     = "times"
	FontCourier   = "courier"
	FontSymbol    = "symbol"
	FontZapf      = "zapfdingbats"
)

var fontAliases = map[string]string{
	"helvetica":       FontHelvetica,
	"arial":           FontHelvetica,
	"verdana":         FontHelvetica,
	"tahoma":          FontHelvetica,
	"sans-serif":      FontHelvetica,
	"sans":            FontHelvetica,
	"times":           FontTimes,
	"times new roman": FontTimes,
	"times-roman":     FontTimes,
	"georgia":         FontTimes,
	"serif":           FontTimes,
	"courier":         FontCourier,
	"courier new":     FontCourier,
	"monospace":       FontCourier,
	"symbol":          FontSymbol,
	"zapfdingbats":    FontZapf,
	"dingbats":        FontZapf,
}

// ResolveFace picks first known family from CSS font-family list. Families
// registered by the document (@font-face) are checked through known.
func ResolveFace(families string, known func(string) bool) (string, bool) {
	for f := range strings.SplitSeq(families, ",") {
		f = strings.Trim(normalize(f), `"'`)
		if f == "" {
			continue
		}
		if known != nil && known(f) {
			return f, true
		}
		if alias, ok := fontAliases[f]; ok {
			return alias, true
		}
	}
	return "", false
}

// absolute-size keywords relative to base font size
var sizeKeywords = map[string]float64{
	"xx-small": 0.6,
	"x-small":  0.75,
	"small":    0.89,
	"medium":   1.0,
	"large":    1.2,
	"x-large":  1.5,
	"xx-large": 2.0,
}

// legacy <font size="N"> scale, index 3 is the base size
var htmlFontScale = [...]float64{0, 0.6, 0.75, 1.0, 1.2, 1.5, 2.0, 3.0}

// ResolveFontSize interprets CSS font-size value relative to current and
// document base font size.
func ResolveFontSize(s string, current, base float64) (float64, bool) {
	s = normalize(s)
	if f, ok := sizeKeywords[s]; ok {
		return base * f, true
	}
	switch s {
	case "smaller":
		return current / 1.2, true
	case "larger":
		return current * 1.2, true
	}
	// percentages and em are relative to the parent (current) size
	v, ok := ParseLength(s, current, current)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// ResolveHTMLFontSize interprets size attribute of the legacy font tag:
// 1..7 absolute steps of base size or +N/-N steps from the step closest to
// current size, so nested relative sizes compound.
func ResolveHTMLFontSize(s string, current, base float64) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	rel := s[0] == '+' || s[0] == '-'
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	if rel {
		n += htmlFontStep(current, base)
	}
	n = max(1, min(n, len(htmlFontScale)-1))
	return base * htmlFontScale[n], true
}

// htmlFontStep returns legacy size step nearest to current size.
func htmlFontStep(current, base float64) int {
	if current <= 0 || base <= 0 {
		return 3
	}
	step, dist := 3, math.Inf(1)
	for i := 1; i < len(htmlFontScale); i++ {
		if d := math.Abs(base*htmlFontScale[i] - current); d < dist {
			step, dist = i, d
		}
	}
	return step
}

// ParseWeight reports whether font-weight value is bold.
func ParseWeight(s string) (bold bool, ok bool) {
	s = normalize(s)
	switch s {
	case "bold", "bolder":
		return true, true
	case "normal", "lighter":
		return false, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n >= 600, true
	}
	return false, false
}
