package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"github.com/beevik/etree"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"h2p/convert/engine"
	"h2p/diag"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

func testLogger(t *testing.T) *zap.Logger {
	t.Helper()
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func testRenderer(t *testing.T) *Renderer {
	t.Helper()
	return New(Options{Now: func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }}, testLogger(t))
}

// courier has fixed advance of 0.6 em which keeps widths predictable
func courier() style.Fragment {
	return style.Default(style.FontCourier, 10)
}

func para(text string) *story.Paragraph {
	f := courier()
	return &story.Paragraph{Items: []story.Inline{&story.Span{Text: text, Style: f}}, Style: f}
}

func heading(text, key string) *story.Paragraph {
	p := para(text)
	p.Level, p.Key = 1, key
	return p
}

// newDoc returns document with body template of w x h points and single
// frame 100 points high unless frames are given.
func newDoc(w, h float64, frames ...story.Frame) *story.Document {
	if len(frames) == 0 {
		frames = []story.Frame{{Name: "content", X: 10, Y: 10, Width: w - 20, Height: 100}}
	}
	return &story.Document{
		ID:    "0190a5e2-7b7c-7d4e-8f00-000000000001",
		Story: story.New(),
		Templates: map[string]*story.PageTemplate{
			story.DefaultTemplate: {Name: story.DefaultTemplate, Width: w, Height: h, Frames: frames},
		},
	}
}

func lineText(l line) string {
	var sb strings.Builder
	for _, t := range l.toks {
		sb.WriteString(t.text)
	}
	return sb.String()
}

func TestBreakLine(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		pre   bool
		avail float64
		want  []string
	}{
		{"wrap at spaces", "aaa bbb ccc", false, 45, []string{"aaa bbb", "ccc"}},
		{"fits", "aaa bbb", false, 100, []string{"aaa bbb"}},
		{"collapsed spaces", "aaa    bbb", false, 100, []string{"aaa bbb"}},
		{"long word split", "abcdefghij", false, 30, []string{"abcde", "fghij"}},
		{"narrow line keeps one char", "abc", false, 1, []string{"a", "b", "c"}},
		{"hard break", "aaa\nbbb", false, 100, []string{"aaa", "bbb"}},
		{"pre keeps spaces", "a  b\n  c", true, 100, []string{"a  b", "  c"}},
	}
	rn := newRun(context.Background(), newDoc(200, 200), true, testLogger(t))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := para(tt.text)
			p.Items[0].(*story.Span).Style.Pre = tt.pre
			toks := rn.tokenize(p)
			var got []string
			for len(toks) > 0 {
				var l line
				l, toks = rn.breakLine(toks, tt.avail, p.Style)
				got = append(got, lineText(l))
				if len(got) > 20 {
					t.Fatal("line breaking does not progress")
				}
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBreakLine_Metrics(t *testing.T) {
	rn := newRun(context.Background(), newDoc(200, 200), true, testLogger(t))
	p := para("aaa bbb ccc")
	l, _ := rn.breakLine(rn.tokenize(p), 45, p.Style)
	if l.width != 42 {
		t.Errorf("width = %v, want 42", l.width)
	}
	if l.height() != 12 || l.ascent != 9 {
		t.Errorf("height = %v ascent = %v", l.height(), l.ascent)
	}
	if l.hard || l.spaces != 1 {
		t.Errorf("hard = %v spaces = %d", l.hard, l.spaces)
	}
}

func TestResolveFont(t *testing.T) {
	rn := newRun(context.Background(), newDoc(200, 200), true, testLogger(t))
	rn.faces[fontKey{family: "custom", style: ""}] = true

	tests := []struct {
		family     string
		bold       bool
		want       fontKey
		translated bool
	}{
		{style.FontTimes, true, fontKey{style.FontTimes, "B"}, true},
		{style.FontSymbol, true, fontKey{style.FontSymbol, ""}, true},
		{"custom", true, fontKey{"custom", ""}, false},
		{"unknown", false, fontKey{style.FontHelvetica, ""}, true},
	}
	for _, tt := range tests {
		f := courier()
		f.FontName, f.Bold = tt.family, tt.bold
		got, core := rn.resolveFont(f)
		if got != tt.want || core != tt.translated {
			t.Errorf("resolveFont(%s) = %+v, %v", tt.family, got, core)
		}
	}
}

func TestFieldText(t *testing.T) {
	doc := newDoc(200, 200)
	rn := newRun(context.Background(), doc, true, testLogger(t))
	if got := rn.fieldText(story.FieldPageNumber); got != "1" {
		t.Errorf("page number before first page = %q", got)
	}
	if got := rn.fieldText(story.FieldPageCount); got != "?" {
		t.Errorf("unknown page count = %q", got)
	}
	doc.Pagination = &story.Pagination{Pages: 7}
	if got := rn.fieldText(story.FieldPageCount); got != "7" {
		t.Errorf("page count = %q", got)
	}
}

func TestRender(t *testing.T) {
	doc := newDoc(200, 200)
	doc.Meta = story.Metadata{Title: "Title", Author: "Author", Creator: "h2p"}
	doc.Story.Append(heading("Intro", "heading-1"))
	doc.Story.Append(para("hello world"))
	link := para("jump")
	link.Items[0].(*story.Span).Link = "#end"
	doc.Story.Append(link)
	ext := para("site")
	ext.Items[0].(*story.Span).Link = "https://example.com/"
	doc.Story.Append(ext)
	doc.Story.Append(&story.Rule{Thickness: 1, Color: style.Black})
	end := para("end")
	end.Items = append([]story.Inline{&story.AnchorMark{Name: "end"}}, end.Items...)
	doc.Story.Append(end)

	var out bytes.Buffer
	info, err := testRenderer(t).Render(context.Background(), doc, &out)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if info.Pages != 1 {
		t.Errorf("pages = %d, want 1", info.Pages)
	}
	if !bytes.HasPrefix(out.Bytes(), []byte("%PDF-")) {
		t.Errorf("output does not look like pdf: %q", out.Bytes()[:min(out.Len(), 16)])
	}
}

func TestRender_EmptyStory(t *testing.T) {
	var out bytes.Buffer
	info, err := testRenderer(t).Render(context.Background(), newDoc(200, 200), &out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Pages != 1 {
		t.Errorf("pages = %d, document must always have a page", info.Pages)
	}
}

func TestRender_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	doc := newDoc(200, 200)
	doc.Story.Append(para("text"))
	if _, err := testRenderer(t).Render(ctx, doc, &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRender_NoTemplate(t *testing.T) {
	doc := &story.Document{Story: story.New(), Templates: map[string]*story.PageTemplate{}}
	if _, err := testRenderer(t).Render(context.Background(), doc, &bytes.Buffer{}); err == nil {
		t.Error("expected error for document without templates")
	}
}

func TestPaginate_Overflow(t *testing.T) {
	doc := newDoc(200, 200)
	for range 19 {
		doc.Story.Append(para("line"))
	}
	last := para("last")
	last.Items = append(last.Items, &story.AnchorMark{Name: "last"})
	doc.Story.Append(last)

	// 12pt lines, 8 fit into 100pt frame
	pg, err := testRenderer(t).Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if pg.Pages != 3 {
		t.Errorf("pages = %d, want 3", pg.Pages)
	}
	if pg.Anchors["last"] != 3 {
		t.Errorf("anchor page = %d, want 3", pg.Anchors["last"])
	}
}

func TestPaginate_PageBreaks(t *testing.T) {
	doc := newDoc(200, 200)
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(heading("One", "heading-1"))
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(heading("Two", "heading-2"))

	pg, err := testRenderer(t).Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if pg.Pages != 2 {
		t.Errorf("pages = %d, want 2 without blank pages", pg.Pages)
	}
	want := []story.HeadingPage{
		{Key: "heading-1", Level: 1, Title: "One", Page: 1},
		{Key: "heading-2", Level: 1, Title: "Two", Page: 2},
	}
	if len(pg.Headings) != len(want) {
		t.Fatalf("headings = %+v", pg.Headings)
	}
	for i := range want {
		if pg.Headings[i] != want[i] {
			t.Errorf("heading %d = %+v, want %+v", i, pg.Headings[i], want[i])
		}
	}
	if pg.Anchors["heading-2"] != 2 {
		t.Errorf("heading anchor page = %d", pg.Anchors["heading-2"])
	}
}

func TestPaginate_Frames(t *testing.T) {
	frames := []story.Frame{
		{Name: "left", X: 10, Y: 10, Width: 85, Height: 100},
		{Name: "right", X: 105, Y: 10, Width: 85, Height: 100},
	}

	doc := newDoc(200, 200, frames...)
	for range 20 {
		doc.Story.Append(para("x"))
	}
	pg, err := testRenderer(t).Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if pg.Pages != 2 {
		t.Errorf("pages = %d, want 2 for 16 lines per page", pg.Pages)
	}

	doc = newDoc(200, 200, frames...)
	for i := range 3 {
		if i > 0 {
			doc.Story.Append(&story.FrameBreak{})
		}
		doc.Story.Append(para("x"))
	}
	pg, err = testRenderer(t).Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if pg.Pages != 2 {
		t.Errorf("pages = %d, want 2 after breaking out of the last frame", pg.Pages)
	}
}

func TestLayout_Templates(t *testing.T) {
	doc := newDoc(200, 200)
	doc.Templates["wide"] = &story.PageTemplate{
		Name: "wide", Width: 400, Height: 200,
		Frames: []story.Frame{{Name: "content", X: 10, Y: 10, Width: 380, Height: 100}},
	}
	doc.Story.Append(para("body"))
	doc.Story.Append(&story.NextTemplate{Name: "wide"})
	doc.Story.Append(para("still body"))
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(para("wide"))
	doc.Story.Append(&story.PageBreak{Template: story.DefaultTemplate})
	doc.Story.Append(para("body again"))

	rn, err := testRenderer(t).layout(context.Background(), doc, true)
	if err != nil {
		t.Fatal(err)
	}
	if rn.pages != 3 || rn.tplPages[story.DefaultTemplate] != 2 || rn.tplPages["wide"] != 1 {
		t.Errorf("pages = %d, per template = %v", rn.pages, rn.tplPages)
	}
}

func TestLayout_StaticFrame(t *testing.T) {
	footer := story.New()
	footer.Append(&story.Paragraph{
		Items: []story.Inline{&story.Field{Kind: story.FieldPageNumber, Style: courier()}, &story.AnchorMark{Name: "footer"}},
		Style: courier(),
	})
	footer.Append(heading("Not in outline", "heading-9"))
	doc := newDoc(200, 200,
		story.Frame{Name: "content", X: 10, Y: 10, Width: 180, Height: 100},
		story.Frame{Name: "footer", X: 10, Y: 170, Width: 180, Height: 20, Static: footer},
	)
	doc.Story.Append(para("a"))
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(para("b"))

	pg, err := testRenderer(t).Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if pg.Pages != 2 {
		t.Errorf("pages = %d", pg.Pages)
	}
	if len(pg.Headings) != 0 || len(pg.Anchors) != 0 {
		t.Errorf("static content must not register destinations: %+v %+v", pg.Headings, pg.Anchors)
	}
}

func TestLayout_FloatImage(t *testing.T) {
	img := &resource.Image{Type: "png", Width: 40, Height: 40}
	doc := newDoc(200, 200)
	doc.Story.Append(&story.Image{Image: img, Width: 40, Height: 30, Float: style.AlignLeft})
	doc.Story.Append(para("next to"))
	doc.Story.Append(&story.Rule{Thickness: 1})

	rn, err := testRenderer(t).layout(context.Background(), doc, true)
	if err != nil {
		t.Fatal(err)
	}
	// rule clears the float: 30 image + 1 rule
	if got := rn.a.y - rn.a.top; got != 31 {
		t.Errorf("cursor = %v, want 31", got)
	}
}

func tableOf(rows, cols int, text string) *story.Table {
	t := &story.Table{ColWidths: make([]float64, cols), RowHeights: make([]float64, rows)}
	for range rows {
		row := make([]story.Cell, cols)
		for c := range row {
			s := story.New()
			s.Append(para(text))
			row[c] = story.Cell{Content: s, ColSpan: 1, RowSpan: 1}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func TestTableLayout_ColumnWidths(t *testing.T) {
	rn := newRun(context.Background(), newDoc(600, 600), true, testLogger(t))

	tbl := tableOf(1, 4, "x")
	tbl.ColWidths[0], tbl.ColWidths[1], tbl.ColWidths[2] = 60, 40, 70
	tl := rn.layoutTable(tbl, 400)
	if tl.colW[0] != 60 || tl.colW[2] != 70 || tl.colW[3] != 230 || tl.width != 400 {
		t.Errorf("widths = %v (%v)", tl.colW, tl.width)
	}

	// free columns share space by content width
	tbl = tableOf(1, 2, "x")
	tbl.Rows[0][1].Content = story.New()
	tbl.Rows[0][1].Content.Append(para("xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"))
	tl = rn.layoutTable(tbl, 200)
	if tl.colW[0] >= tl.colW[1] {
		t.Errorf("widths = %v, wider content must get wider column", tl.colW)
	}

	// fixed widths larger than available space are scaled down
	tbl = tableOf(1, 2, "x")
	tbl.ColWidths[0], tbl.ColWidths[1] = 300, 100
	tl = rn.layoutTable(tbl, 200)
	if tl.colW[0] != 150 || tl.colW[1] != 50 {
		t.Errorf("widths = %v", tl.colW)
	}
}

func TestTableLayout_RowsAndGroups(t *testing.T) {
	rn := newRun(context.Background(), newDoc(600, 600), true, testLogger(t))

	tbl := tableOf(3, 2, "x")
	tbl.Rows[0][0].RowSpan = 2
	tbl.Rows[1][0] = story.Cell{Placeholder: true}
	tbl.Styles = []story.TableStyle{
		{Kind: story.StylePadTop, End: story.Point{Col: -1, Row: -1}, Width: 5},
		{Kind: story.StyleBackground, Begin: story.Point{Row: -1}, End: story.Point{Col: -1, Row: -1}, Color: style.White},
	}
	tl := rn.layoutTable(tbl, 200)

	groups := tl.groups()
	if len(groups) != 2 || groups[0] != [2]int{0, 1} || groups[1] != [2]int{2, 2} {
		t.Errorf("groups = %v", groups)
	}
	// 12pt line, 5 top and 2 bottom padding
	if tl.rowH[2] != 19 {
		t.Errorf("row height = %v, want 19", tl.rowH[2])
	}
	if cp := tl.props(story.Point{Col: 1, Row: 2}); cp.bg != style.White || cp.pad[style.Top] != 5 {
		t.Errorf("props = %+v", cp)
	}
	if cp := tl.props(story.Point{Col: 1, Row: 1}); cp.bg.Set {
		t.Errorf("background leaked outside normalized rectangle: %+v", cp)
	}
}

func TestPaginate_RepeatRows(t *testing.T) {
	// 16pt rows (12pt line and 2+2 padding), 6 rows per 100pt frame
	for _, tt := range []struct {
		repeat int
		pages  int
	}{{0, 2}, {1, 3}} {
		doc := newDoc(200, 200)
		tbl := tableOf(12, 2, "x")
		tbl.RepeatRows = tt.repeat
		doc.Story.Append(tbl)
		pg, err := testRenderer(t).Paginate(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		if pg.Pages != tt.pages {
			t.Errorf("repeat %d: pages = %d, want %d", tt.repeat, pg.Pages, tt.pages)
		}
	}
}

func TestRender_TOC(t *testing.T) {
	doc := newDoc(200, 200)
	doc.NeedsMultiPass = true
	doc.Story.Append(&story.TOC{Style: courier()})
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(heading("First", "heading-1"))
	doc.Story.Append(&story.PageBreak{})
	doc.Story.Append(heading("Second", "heading-2"))

	r := testRenderer(t)
	pg, err := r.Paginate(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	doc.Pagination = &pg
	info, err := r.Render(context.Background(), doc, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if info.Pages != pg.Pages || pg.Pages != 3 {
		t.Errorf("passes disagree: %d vs %d", info.Pages, pg.Pages)
	}
	if pg.Headings[1].Page != 3 {
		t.Errorf("second heading page = %d", pg.Headings[1].Page)
	}
}

func backgroundPDF(t *testing.T) string {
	t.Helper()
	f := fpdf.New("P", "pt", "A4", "")
	f.AddPage()
	f.SetFont("helvetica", "", 12)
	f.Text(20, 20, "background")
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatal(err)
	}
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestRender_Backgrounds(t *testing.T) {
	log := testLogger(t)
	resolver := resource.NewResolver(diag.New(log), "test", resource.FetchOptions{}, log)
	t.Cleanup(func() { _ = resolver.Close() })

	render := func(ref string) (engine.RenderInfo, int) {
		doc := newDoc(200, 200)
		doc.Templates[story.DefaultTemplate].Background = "bg.pdf"
		doc.Story.Append(para("a"))
		doc.Story.Append(&story.PageBreak{})
		doc.Story.Append(para("b"))

		r := testRenderer(t)
		if ref != "" {
			r.SetBackgrounds([]story.Background{{Template: story.DefaultTemplate, Resource: resolver.Resolve(context.Background(), ref, "")}})
		}
		var out bytes.Buffer
		info, err := r.Render(context.Background(), doc, &out)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if info.Pages != 2 {
			t.Errorf("pages = %d", info.Pages)
		}
		return info, out.Len()
	}

	_, plain := render("")
	info, with := render(backgroundPDF(t))
	if with <= plain {
		t.Errorf("background not drawn: %d <= %d bytes", with, plain)
	}
	if len(info.Problems) != 0 {
		t.Errorf("problems = %+v", info.Problems)
	}

	// broken background is skipped and reported once
	info, _ = render("data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("not a pdf")))
	if len(info.Problems) != 1 || info.Problems[0].Code != diag.CodeBackground {
		t.Errorf("problems = %+v, want one background problem", info.Problems)
	}
}

func TestXMPPacket(t *testing.T) {
	doc := newDoc(200, 200)
	doc.Meta = story.Metadata{Title: "Title", Author: "Ann", Language: "en", Keywords: "a, b", Creator: "h2p"}
	data, err := xmpPacket(doc, "h2p", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}

	x := etree.NewDocument()
	if err := x.ReadFromBytes(data); err != nil {
		t.Fatalf("packet is not well formed: %v", err)
	}
	checks := map[string]string{
		"//dc:title/rdf:Alt/rdf:li":    "Title",
		"//dc:creator/rdf:Seq/rdf:li":  "Ann",
		"//dc:language/rdf:Bag/rdf:li": "en",
		"//pdf:Keywords":               "a, b",
		"//xmp:CreateDate":             "2024-05-01T12:00:00Z",
		"//xmpMM:DocumentID":           "uuid:" + doc.ID,
	}
	for path, want := range checks {
		el := x.FindElement(path)
		if el == nil {
			t.Errorf("%s missing", path)
			continue
		}
		if el.Text() != want {
			t.Errorf("%s = %q, want %q", path, el.Text(), want)
		}
	}
	if x.FindElement("//dc:description") != nil {
		t.Error("empty description must be omitted")
	}
}
