package engine

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"h2p/diag"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

func newTestContext(t *testing.T) *Context {
	t.Helper()
	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	d := diag.New(log)
	r := resource.NewResolver(d, "test", resource.FetchOptions{}, log)
	t.Cleanup(func() {
		if err := r.Close(); err != nil {
			t.Error(err)
		}
	})
	return newContext(context.Background(), d, r, Options{}.withDefaults(), log)
}

func TestContext_PushPopIsolation(t *testing.T) {
	c := newTestContext(t)
	root := c.Current()

	c.Push()
	c.ApplyOverride("color", "red")
	c.ApplyOverride("font-weight", "bold")
	if c.Depth() != 2 || !c.Current().Bold || c.Current().Color != style.RGB(255, 0, 0) {
		t.Fatalf("override not applied: %+v", c.Current())
	}
	c.Push()
	if c.Current() != c.stack[1] {
		t.Error("push must clone current fragment")
	}
	c.ApplyOverride("font-style", "italic")
	c.Pop()
	if c.Current().Italic {
		t.Error("override leaked to parent")
	}
	c.Pop()
	if c.Current() != root {
		t.Errorf("root changed: %+v", c.Current())
	}
	c.Pop()
	if c.Depth() != 1 {
		t.Error("root fragment must never be removed")
	}
}

func TestContext_FlushAndSwap(t *testing.T) {
	c := newTestContext(t)
	c.AddText("  one ")
	c.AddText("  two")
	c.Break()
	c.AddText("three")
	c.Flush()
	if c.Story().Len() != 1 {
		t.Fatalf("story length %d", c.Story().Len())
	}
	p := c.Story().Elements[0].(*story.Paragraph)
	if got := p.Text(); got != "one two\nthree" {
		t.Errorf("text = %q", got)
	}

	outer := c.SwapStory(story.New())
	c.AddText("captured")
	c.Flush()
	captured := c.SwapStory(outer)
	if captured.Text() != "captured" || outer.Len() != 1 || c.Story() != outer {
		t.Error("swap did not isolate content")
	}

	c.Flush()
	if c.Story().Len() != 1 {
		t.Error("flush without pending content must not add paragraphs")
	}
}

func TestContext_PreText(t *testing.T) {
	c := newTestContext(t)
	c.Push()
	c.ApplyOverride("white-space", "pre")
	c.AddText("a  b\n  c")
	c.Flush()
	if got := c.Story().Text(); got != "a  b\n  c" {
		t.Errorf("text = %q", got)
	}
}

func TestContext_TextTransform(t *testing.T) {
	c := newTestContext(t)
	c.Push()
	c.ApplyOverride("text-transform", "uppercase")
	c.AddText("straße")
	c.Pop()
	c.AddText(" x")
	c.Flush()
	if got := c.Story().Text(); got != "STRASSE x" {
		t.Errorf("text = %q", got)
	}
}

func TestContext_Counters(t *testing.T) {
	c := newTestContext(t)
	c.PushCounter(1)
	if c.NextCounter() != 1 || c.NextCounter() != 2 {
		t.Fatal("counter does not increment")
	}
	c.PushCounter(5)
	if n := c.NextCounter(); n != 5 {
		t.Errorf("nested counter = %d, want 5", n)
	}
	c.PopCounter()
	if n := c.NextCounter(); n != 3 {
		t.Errorf("parent counter = %d, want 3", n)
	}
}

func TestContext_BlockSpacing(t *testing.T) {
	c := newTestContext(t)

	c.Push()
	c.top().SpaceBefore, c.top().SpaceAfter = 10, 20
	c.openBlock()
	c.AddText("first")
	c.Flush()
	c.AddText("second")
	c.closeBlock()
	c.Pop()

	ps := c.Story().Elements
	if len(ps) != 2 {
		t.Fatalf("story length %d", len(ps))
	}
	first, second := ps[0].(*story.Paragraph), ps[1].(*story.Paragraph)
	if first.Style.SpaceBefore != 10 || first.Style.SpaceAfter != 0 {
		t.Errorf("first spacing = %v/%v", first.Style.SpaceBefore, first.Style.SpaceAfter)
	}
	if second.Style.SpaceBefore != 0 || second.Style.SpaceAfter != 20 {
		t.Errorf("second spacing = %v/%v", second.Style.SpaceBefore, second.Style.SpaceAfter)
	}

	// empty block keeps its spacing after as spacer
	c.Push()
	c.top().SpaceAfter = 7
	c.openBlock()
	c.closeBlock()
	c.Pop()
	if sp, ok := c.Story().Elements[2].(*story.Spacer); !ok || sp.Height != 7 {
		t.Errorf("spacer = %#v", c.Story().Elements[2])
	}
}

func TestTableData_StartCell(t *testing.T) {
	td := newTableData(1)
	td.StartRow()
	if p := td.StartCell(1, 2); p != (story.Point{}) {
		t.Errorf("origin = %+v", p)
	}
	if p := td.StartCell(2, 1); p != (story.Point{Col: 1}) {
		t.Errorf("origin = %+v", p)
	}
	td.rowOpen = false
	td.StartRow()
	// (0,1) is covered by the rowspan
	if p := td.StartCell(1, 1); p != (story.Point{Col: 1, Row: 1}) {
		t.Errorf("origin = %+v", p)
	}

	d := diag.New(nil)
	tbl := td.Finalize(d)
	if tbl.Columns() != 3 {
		t.Fatalf("columns = %d", tbl.Columns())
	}
	if !tbl.Rows[0][2].Placeholder || !tbl.Rows[1][0].Placeholder {
		t.Error("span positions must be placeholders")
	}
	if tbl.Rows[1][2].Placeholder || tbl.Rows[1][2].ColSpan != 1 {
		t.Errorf("padding cell = %+v", tbl.Rows[1][2])
	}
	if d.Warnings() != 1 {
		t.Errorf("warnings = %d, want 1 for the padded row", d.Warnings())
	}
}

func TestClampSpans(t *testing.T) {
	tests := []struct {
		colspan, rowspan int
		wantCol, wantRow int
		clamped          bool
	}{
		{1, 1, 1, 1, false},
		{0, -3, 1, 1, false},
		{maxColSpan, maxRowSpan, maxColSpan, maxRowSpan, false},
		{3000, 2, maxColSpan, 2, true},
		{2, 100000, 2, maxRowSpan, true},
	}
	for _, tt := range tests {
		col, row, clamped := clampSpans(tt.colspan, tt.rowspan)
		if col != tt.wantCol || row != tt.wantRow || clamped != tt.clamped {
			t.Errorf("clampSpans(%d, %d) = %d, %d, %v", tt.colspan, tt.rowspan, col, row, clamped)
		}
	}
}

func TestTableData_ClipRows(t *testing.T) {
	td := newTableData(1)
	td.StartRow()
	origin := td.StartCell(2, 5)
	td.AddStyle(story.TableStyle{Kind: story.StyleAlign, Begin: origin, End: td.cellEnd(origin)})
	td.rowOpen = false
	td.StartRow()
	td.StartCell(1, 1)

	d := diag.New(nil)
	tbl := td.Finalize(d)
	if len(tbl.Rows) != 2 || tbl.Columns() != 3 {
		t.Fatalf("grid %dx%d, want 3x2", tbl.Columns(), len(tbl.Rows))
	}
	if got := tbl.Rows[0][0].RowSpan; got != 2 {
		t.Errorf("row span = %d, want 2", got)
	}
	if !tbl.Rows[1][0].Placeholder || !tbl.Rows[1][1].Placeholder || tbl.Rows[1][2].Placeholder {
		t.Errorf("second row = %+v", tbl.Rows[1])
	}
	for _, ts := range tbl.Styles {
		if ts.End.Row > 1 {
			t.Errorf("style %v ends at row %d", ts.Kind, ts.End.Row)
		}
	}
	// clipped span and padded first row
	if d.Warnings() != 2 {
		t.Errorf("warnings = %d, want 2", d.Warnings())
	}
}

func TestTableData_SizeCell(t *testing.T) {
	td := newTableData(1)
	td.StartRow()
	wide := td.StartCell(2, 1)
	td.SizeCell(wide, 100, 10)
	td.rowOpen = false
	td.StartRow()
	first := td.StartCell(1, 1)
	td.SizeCell(first, 50, 20)
	second := td.StartCell(1, 1)
	td.SizeCell(second, 70, 30)
	td.rowOpen = false
	td.StartRow()
	td.SizeCell(td.StartCell(1, 1), 80, 0)

	tbl := td.Finalize(diag.New(nil))
	if tbl.ColWidths[0] != 50 || tbl.ColWidths[1] != 70 {
		t.Errorf("column widths = %v", tbl.ColWidths)
	}
	if tbl.RowHeights[0] != 0 || tbl.RowHeights[1] != 20 {
		t.Errorf("row heights = %v", tbl.RowHeights)
	}
}

func TestTableData_Empty(t *testing.T) {
	d := diag.New(nil)
	if tbl := newTableData(3).Finalize(d); tbl != nil {
		t.Errorf("Finalize() = %+v, want nil", tbl)
	}
	if d.Warnings() != 1 {
		t.Errorf("warnings = %d", d.Warnings())
	}
}

func TestTableData_HeaderRepeat(t *testing.T) {
	td := newTableData(1)
	td.inHead = true
	td.StartRow()
	td.StartCell(1, 1)
	td.inHead = false
	td.rowOpen = false
	td.StartRow()
	td.StartCell(1, 1)
	if tbl := td.Finalize(diag.New(nil)); tbl.RepeatRows != 1 {
		t.Errorf("repeat rows = %d, want 1", tbl.RepeatRows)
	}
}

func TestImageSize(t *testing.T) {
	tests := []struct {
		w, h, nw, nh float64
		ww, wh       float64
	}{
		{0, 0, 30, 15, 30, 15},
		{60, 0, 30, 15, 60, 30},
		{0, 45, 30, 15, 90, 45},
		{10, 10, 30, 15, 10, 10},
	}
	for _, tt := range tests {
		if w, h := imageSize(tt.w, tt.h, tt.nw, tt.nh); w != tt.ww || h != tt.wh {
			t.Errorf("imageSize(%v, %v, %v, %v) = %v, %v, want %v, %v", tt.w, tt.h, tt.nw, tt.nh, w, h, tt.ww, tt.wh)
		}
	}
}

func TestImageVAlign(t *testing.T) {
	tests := map[string]style.VAlign{
		"texttop":   style.VAlignTop,
		"absmiddle": style.VAlignMiddle,
		"absbottom": style.VAlignBottom,
		"baseline":  style.VAlignBottom,
		"":          style.VAlignBottom,
	}
	for in, want := range tests {
		if got := imageVAlign(in); got != want {
			t.Errorf("imageVAlign(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePageSize(t *testing.T) {
	tests := []struct {
		in   string
		w, h float64
		ok   bool
	}{
		{"letter", 612, 792, true},
		{"letter landscape", 792, 612, true},
		{"200pt 100pt", 200, 100, true},
		{"200pt 100pt portrait", 100, 200, true},
		{"landscape", 841.89, 595.28, true},
		{"huge", 0, 0, false},
	}
	for _, tt := range tests {
		w, h, ok := parsePageSize(tt.in, 10)
		if ok != tt.ok || w != tt.w || h != tt.h {
			t.Errorf("parsePageSize(%q) = %v, %v, %v", tt.in, w, h, ok)
		}
	}
}

func TestPrintMedia(t *testing.T) {
	for media, want := range map[string]bool{"": true, "print": true, "screen, print": true, "screen": false, "ALL": true} {
		if got := printMedia(media); got != want {
			t.Errorf("printMedia(%q) = %v", media, got)
		}
	}
}
