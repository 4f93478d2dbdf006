package debug

import "testing"

func TestTreeWriter(t *testing.T) {
	tests := []struct {
		name  string
		write func(tw *TreeWriter)
		want  string
	}{
		{"empty", func(*TreeWriter) {}, ""},
		{"line", func(tw *TreeWriter) { tw.Line(0, "story") }, "story\n"},
		{"formatted line", func(tw *TreeWriter) { tw.Line(2, "%s=%d", "cols", 3) }, "    cols=3\n"},
		{"empty text", func(tw *TreeWriter) { tw.TextBlock(0, "span", "") }, "span: \n"},
		{"quoted text", func(tw *TreeWriter) { tw.TextBlock(1, "span", "say \"hi\"\n\tthere") }, "  span: \"say \\\"hi\\\"\\n\\tthere\"\n"},
		{
			"tree",
			func(tw *TreeWriter) {
				tw.Line(0, "document")
				tw.TextBlock(1, "title", "Book")
				tw.Line(1, "story")
				tw.Props(2, "paragraph", "level", 1)
				tw.TextBlock(3, "span", "Chapter")
			},
			"document\n  title: \"Book\"\n  story\n    paragraph level=1\n      span: \"Chapter\"\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tt.write(tw)
			if got := tw.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTreeWriter_Props(t *testing.T) {
	tests := []struct {
		name  string
		depth int
		kv    []any
		want  string
	}{
		{"label only", 0, nil, "table\n"},
		{"values", 1, []any{"cols", 2, "width", 120.5, "align", "center"}, "  table cols=2 width=120.5 align=center\n"},
		{"zero values skipped", 0, []any{"cols", 0, "repeat", false, "link", "", "bold", true}, "table bold=true\n"},
		{"odd length", 0, []any{"cols", 3, "dangling"}, "table cols=3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTreeWriter()
			tw.Props(tt.depth, "table", tt.kv...)
			if got := tw.String(); got != tt.want {
				t.Errorf("Props() = %q, want %q", got, tt.want)
			}
		})
	}
}
