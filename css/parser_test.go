package css_test

import (
	"os"
	"testing"

	"go.uber.org/zap"

	"h2p/css"
	"h2p/markup"
)

// allRules collects all top-level rules from a stylesheet's Items.
// It does NOT flatten @media blocks.
func allRules(sheet *css.Stylesheet) []css.Rule {
	var rules []css.Rule
	for _, item := range sheet.Items {
		if item.Rule != nil {
			rules = append(rules, *item.Rule)
		}
	}
	return rules
}

func TestParser_ParseDefaultCSS(t *testing.T) {
	defaultCSS, err := os.ReadFile("../convert/engine/default.css")
	if err != nil {
		t.Fatalf("failed to read default.css: %v", err)
	}

	p := css.NewParser(zap.NewNop())
	sheet := p.Parse(defaultCSS)

	rules := allRules(sheet)
	if len(rules) == 0 {
		t.Fatal("expected rules to be parsed from default.css")
	}
	for _, w := range sheet.Warnings {
		t.Errorf("unexpected warning in default stylesheet: %s", w)
	}
	for _, sel := range []string{"h1", "p", "pre", "th"} {
		if len(sheet.RulesBySelector(sel)) == 0 {
			t.Errorf("expected %q selector rule", sel)
		}
	}
}

func TestParser_ElementSelector(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`P { text-indent: 1em; }`))

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.Selector.Element != "p" {
		t.Errorf("expected element 'p', got '%s'", rule.Selector.Element)
	}
	val, ok := rule.GetProperty("text-indent")
	if !ok {
		t.Fatal("expected text-indent property")
	}
	if val.Value != 1 || val.Unit != "em" {
		t.Errorf("expected 1em, got %v%s", val.Value, val.Unit)
	}
}

func TestParser_CompoundSelector(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`p.note.big#first { color: red }`))

	rules := allRules(sheet)
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	sel := rules[0].Selector
	if sel.Element != "p" || sel.ID != "first" || len(sel.Classes) != 2 || sel.Classes[1] != "big" {
		t.Errorf("unexpected selector %+v", sel)
	}
	if got := sel.Specificity(); got != 10201 {
		t.Errorf("specificity = %d, want 10201", got)
	}
}

func TestParser_GroupedSelectors(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`h1, h2 , .title { font-weight: bold }`))

	rules := allRules(sheet)
	if len(rules) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(rules))
	}
	rules[0].Properties["font-weight"] = css.Value{Raw: "normal"}
	if rules[1].Properties["font-weight"].Keyword != "bold" {
		t.Error("grouped rules must not share property maps")
	}
}

func TestParser_UnsupportedSelectors(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`
		ul > li { color: red }
		a[href] { color: blue }
		a:hover { color: green }
		p { color: black }
	`))

	rules := allRules(sheet)
	if len(rules) != 1 || rules[0].Selector.Raw != "p" {
		t.Fatalf("expected only 'p' rule, got %d rules", len(rules))
	}
	if len(sheet.Warnings) != 3 {
		t.Errorf("expected 3 warnings, got %v", sheet.Warnings)
	}
}

func TestParser_Important(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`p { color: red !important; margin: 1pt 2pt ! important }`))

	rule := allRules(sheet)[0]
	color := rule.Properties["color"]
	if !color.Important || color.Keyword != "red" || color.Raw != "red" {
		t.Errorf("color = %+v", color)
	}
	margin := rule.Properties["margin"]
	if !margin.Important || margin.Raw != "1pt 2pt" {
		t.Errorf("margin = %+v", margin)
	}
}

func TestParser_MediaBlocks(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`
		@media screen { p { color: red } }
		@media print { p { color: blue } }
		@media not screen { h1 { color: green } }
	`))

	rules := sheet.Rules()
	if len(rules) != 2 {
		t.Fatalf("expected 2 applicable rules, got %d", len(rules))
	}
	if rules[0].Properties["color"].Keyword != "blue" {
		t.Errorf("unexpected first rule %+v", rules[0])
	}
	if rules[1].Selector.Element != "h1" {
		t.Errorf("unexpected second rule %+v", rules[1])
	}
}

func TestMediaQuery_Evaluate(t *testing.T) {
	tests := []struct {
		mq   css.MediaQuery
		want bool
	}{
		{css.MediaQuery{}, true},
		{css.MediaQuery{Types: []string{"print"}}, true},
		{css.MediaQuery{Types: []string{"screen"}}, false},
		{css.MediaQuery{Types: []string{"screen", "all"}}, true},
		{css.MediaQuery{Types: []string{"print"}, Negated: true}, false},
	}
	for _, tt := range tests {
		if got := tt.mq.Evaluate(); got != tt.want {
			t.Errorf("Evaluate(%+v) = %v, want %v", tt.mq, got, tt.want)
		}
	}
}

func TestParser_FontFaceAndImport(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`
		@import url("base.css");
		@import 'print.css';
		@font-face { font-family: "My Font"; src: url(fonts/my.ttf); font-weight: bold }
		@font-face { src: url(nofamily.ttf) }
	`))

	imports := sheet.Imports()
	if len(imports) != 2 || imports[0] != "base.css" || imports[1] != "print.css" {
		t.Errorf("imports = %v", imports)
	}
	faces := sheet.FontFaces()
	if len(faces) != 1 {
		t.Fatalf("expected 1 font face, got %d", len(faces))
	}
	if faces[0].Family != "My Font" || faces[0].Weight != "bold" {
		t.Errorf("font face = %+v", faces[0])
	}
	if u, ok := css.URL(faces[0].Src); !ok || u != "fonts/my.ttf" {
		t.Errorf("font src url = %q", u)
	}
}

func TestParser_PageRules(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	sheet := p.Parse([]byte(`
		p { color: red }
		@page {
			size: a4 landscape;
			margin: 2cm;
			background-image: url("letterhead.pdf");
			@frame footer {
				-pdf-frame-content: footerContent;
				bottom: 1cm; height: 1cm;
			}
		}
		/* @page fake { size: a3 } */
		@page wide:first { size: letter }
		h1 { color: blue }
	`))

	pages := sheet.Pages()
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}
	def := pages[0]
	if def.Name != "" || def.Properties["size"].Raw != "a4 landscape" {
		t.Errorf("default page = %+v", def)
	}
	if u, _ := css.URL(def.Properties["background-image"].Raw); u != "letterhead.pdf" {
		t.Errorf("background = %q", u)
	}
	if len(def.Frames) != 1 || def.Frames[0].Name != "footer" {
		t.Fatalf("frames = %+v", def.Frames)
	}
	if got := def.Frames[0].Properties["-pdf-frame-content"].Keyword; got != "footercontent" {
		t.Errorf("frame content = %q", got)
	}
	if pages[1].Name != "wide" || pages[1].Pseudo != "first" {
		t.Errorf("named page = %+v", pages[1])
	}

	rules := allRules(sheet)
	if len(rules) != 2 || rules[1].Selector.Element != "h1" {
		t.Errorf("rules around @page lost: %d", len(rules))
	}
}

func TestParseInline(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	props := p.ParseInline("color: #f00; FONT-SIZE: 12pt; border: 1px solid black")
	if len(props) != 3 {
		t.Fatalf("expected 3 properties, got %v", props)
	}
	if props["font-size"].Value != 12 || props["font-size"].Unit != "pt" {
		t.Errorf("font-size = %+v", props["font-size"])
	}
	if props["border"].Raw != "1px solid black" {
		t.Errorf("border = %+v", props["border"])
	}
	if p.ParseInline("  ") != nil {
		t.Error("blank style must give no properties")
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		in, want string
		ok       bool
	}{
		{`url("a.png")`, "a.png", true},
		{`url( b.png )`, "b.png", true},
		{`url('c d.png')`, "c d.png", true},
		{`"plain.css"`, "plain.css", true},
		{`none`, "", false},
	}
	for _, tt := range tests {
		got, ok := css.URL(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("URL(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValue_IsNumeric(t *testing.T) {
	tests := []struct {
		v    css.Value
		want bool
	}{
		{css.Value{Raw: "0"}, true},
		{css.Value{Raw: "1em", Value: 1, Unit: "em"}, true},
		{css.Value{Raw: "bold", Keyword: "bold"}, false},
	}
	for _, tt := range tests {
		if got := tt.v.IsNumeric(); got != tt.want {
			t.Errorf("IsNumeric(%q) = %v", tt.v.Raw, got)
		}
	}
}

func TestCascade(t *testing.T) {
	p := css.NewParser(zap.NewNop())
	c := css.NewCascade(p)
	c.Add(p.Parse([]byte(`p { color: black; margin: 0 } .note { color: gray }`)), css.OriginDefault)
	c.Add(p.Parse([]byte(`
		#x { color: green }
		p.note { color: blue }
		div p { font-weight: bold }
		p { color: red; text-align: center !important }
	`)), css.OriginDocument)

	div := markup.NewElement("div", nil)
	para := markup.NewElement("p", map[string]string{"class": "note", "style": "color: purple; text-align: left"})
	div.AppendChild(para)

	got := c.Compute(para)
	if got["color"].Keyword != "purple" {
		t.Errorf("inline style must win, got %q", got["color"].Raw)
	}
	if got["text-align"].Keyword != "center" {
		t.Errorf("important declaration must win over inline, got %q", got["text-align"].Raw)
	}
	if got["font-weight"].Keyword != "bold" {
		t.Errorf("descendant rule not applied")
	}
	if got["margin"].Raw != "0" {
		t.Errorf("default origin rule not applied")
	}

	delete(para.Attrs, "style")
	if got := c.Compute(para)["color"].Keyword; got != "blue" {
		t.Errorf("expected most specific rule 'p.note', got %q", got)
	}

	para.Attrs["id"] = "x"
	if got := c.Compute(para)["color"].Keyword; got != "green" {
		t.Errorf("expected id rule, got %q", got)
	}

	lone := markup.NewElement("p", nil)
	if _, ok := c.Compute(lone)["font-weight"]; ok {
		t.Error("descendant rule applied without ancestor")
	}
	if got := c.Compute(lone)["color"].Keyword; got != "red" {
		t.Errorf("document origin must win over default, got %q", got)
	}
}
