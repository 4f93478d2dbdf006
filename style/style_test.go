package style_test

import (
	"math"
	"testing"

	"h2p/style"
)

func near(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestParseLength(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"12", 12, true},
		{"12pt", 12, true},
		{"16px", 12, true},
		{"1in", 72, true},
		{"25.4mm", 72, true},
		{"2.54cm", 72, true},
		{"1pc", 12, true},
		{"2em", 20, true},
		{"2ex", 10, true},
		{"50%", 100, true},
		{"-3pt", -3, true},
		{"auto", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"12furlongs", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := style.ParseLength(tt.in, 10, 200)
			if ok != tt.ok {
				t.Fatalf("ParseLength(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && !near(got, tt.want) {
				t.Errorf("ParseLength(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBox(t *testing.T) {
	tests := []struct {
		in   string
		want [4]float64
	}{
		{"1pt", [4]float64{1, 1, 1, 1}},
		{"1pt 2pt", [4]float64{1, 2, 1, 2}},
		{"1pt 2pt 3pt", [4]float64{1, 2, 3, 2}},
		{"1pt 2pt 3pt 4pt", [4]float64{1, 2, 3, 4}},
		{"0 auto", [4]float64{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		got, ok := style.ParseBox(tt.in, 10, 100)
		if !ok {
			t.Errorf("ParseBox(%q) failed", tt.in)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBox(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, ok := style.ParseBox("1pt 2pt 3pt 4pt 5pt", 10, 100); ok {
		t.Error("expected five values to be rejected")
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want style.Color
		ok   bool
	}{
		{"red", style.RGB(255, 0, 0), true},
		{"  Navy ", style.RGB(0, 0, 128), true},
		{"#fff", style.RGB(255, 255, 255), true},
		{"#102030", style.RGB(0x10, 0x20, 0x30), true},
		{"102030", style.RGB(0x10, 0x20, 0x30), true},
		{"rgb(1, 2, 3)", style.RGB(1, 2, 3), true},
		{"rgba(10,20,30,0.5)", style.RGB(10, 20, 30), true},
		{"rgb(100%, 0%, 50%)", style.RGB(255, 0, 128), true},
		{"transparent", style.Color{}, true},
		{"#12", style.Color{}, false},
		{"bogus", style.Color{}, false},
	}
	for _, tt := range tests {
		got, ok := style.ParseColor(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseColor(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveFace(t *testing.T) {
	known := func(f string) bool { return f == "dejavu sans" }
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Arial, sans-serif", style.FontHelvetica, true},
		{`"Times New Roman", serif`, style.FontTimes, true},
		{"Unknown, monospace", style.FontCourier, true},
		{"'DejaVu Sans', serif", "dejavu sans", true},
		{"Unknown", "", false},
	}
	for _, tt := range tests {
		got, ok := style.ResolveFace(tt.in, known)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ResolveFace(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestResolveFontSize(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"medium", 10},
		{"xx-large", 20},
		{"larger", 14.4},
		{"smaller", 10},
		{"150%", 18},
		{"2em", 24},
		{"9pt", 9},
	}
	for _, tt := range tests {
		got, ok := style.ResolveFontSize(tt.in, 12, 10)
		if !ok || !near(got, tt.want) {
			t.Errorf("ResolveFontSize(%q) = %v, %v; want %v", tt.in, got, ok, tt.want)
		}
	}
	if _, ok := style.ResolveFontSize("0", 12, 10); ok {
		t.Error("zero font size must be rejected")
	}
}

func TestResolveHTMLFontSize(t *testing.T) {
	tests := []struct {
		in      string
		current float64
		want    float64
	}{
		{"3", 10, 10},
		{"1", 10, 6},
		{"7", 10, 30},
		{"+1", 10, 12},
		{"-1", 10, 7.5},
		{"+10", 10, 30},
		{"0", 10, 6},
		{"+1", 12, 15},
		{"-1", 6, 6},
		{"2", 20, 7.5},
		{"+1", 11.5, 15},
	}
	for _, tt := range tests {
		got, ok := style.ResolveHTMLFontSize(tt.in, tt.current, 10)
		if !ok || !near(got, tt.want) {
			t.Errorf("ResolveHTMLFontSize(%q, %v) = %v, %v; want %v", tt.in, tt.current, got, ok, tt.want)
		}
	}
	if _, ok := style.ResolveHTMLFontSize("big", 10, 10); ok {
		t.Error("expected non-numeric size to be rejected")
	}
}

func TestResolveBullet(t *testing.T) {
	tests := []struct {
		style string
		n     int
		want  string
	}{
		{"disc", 1, "•"},
		{"square", 3, "▪"},
		{"circle", 1, "o"},
		{"none", 1, ""},
		{"decimal", 7, "7."},
		{"decimal-leading-zero", 7, "07."},
		{"lower-alpha", 28, "ab."},
		{"upper-alpha", 3, "C."},
		{"lower-roman", 4, "iv."},
		{"upper-roman", 1994, "MCMXCIV."},
		{"klingon", 5, "•"},
	}
	for _, tt := range tests {
		b := style.ResolveBullet(tt.style)
		if got := b.Label(tt.n); got != tt.want {
			t.Errorf("ResolveBullet(%q).Label(%d) = %q, want %q", tt.style, tt.n, got, tt.want)
		}
	}
	if style.ResolveBullet("disc").Counted() {
		t.Error("disc must not be counted")
	}
	if !style.ResolveBullet("decimal").Counted() {
		t.Error("decimal must be counted")
	}
}

func TestListTypeAttr(t *testing.T) {
	if got := style.ListTypeAttr("A"); got != "upper-alpha" {
		t.Errorf("got %q", got)
	}
	if got := style.ListTypeAttr("a"); got != "lower-alpha" {
		t.Errorf("got %q", got)
	}
	if got := style.ListTypeAttr("Square"); got != "square" {
		t.Errorf("got %q", got)
	}
}

func TestParseVAlign(t *testing.T) {
	tests := map[string]style.VAlign{
		"texttop":   style.VAlignTop,
		"absmiddle": style.VAlignMiddle,
		"absbottom": style.VAlignBottom,
		"baseline":  style.VAlignBaseline,
		"super":     style.VAlignSuper,
	}
	for in, want := range tests {
		got, ok := style.ParseVAlign(in)
		if !ok || got != want {
			t.Errorf("ParseVAlign(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
}

func TestFragmentValueSemantics(t *testing.T) {
	parent := style.Default("", 0)
	child := parent
	child.Bold = true
	child.Border[style.Top] = style.BorderSide{Width: 1, Color: style.Black, Style: "solid"}

	if parent.Bold || parent.Border[style.Top].Visible() {
		t.Fatal("modifying copy leaked into parent")
	}
	if child.FontStyle() != "B" {
		t.Errorf("FontStyle = %q", child.FontStyle())
	}
	if !child.HasBox() || parent.HasBox() {
		t.Error("HasBox mismatch")
	}
	if parent.FontName != style.FontHelvetica || parent.FontSize != 10 {
		t.Errorf("unexpected defaults: %+v", parent)
	}
	child.Super = true
	if !near(child.EffectiveSize(), 7) {
		t.Errorf("EffectiveSize = %v", child.EffectiveSize())
	}
}
