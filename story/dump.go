package story

import (
	"maps"
	"slices"

	"h2p/utils/debug"
)

// Dump returns indented textual representation of the document flow for
// debug reports.
func (d *Document) Dump() string {
	tw := debug.NewTreeWriter()
	tw.Props(0, "document", "id", d.ID, "multipass", d.NeedsMultiPass)
	tw.TextBlock(1, "title", d.Meta.Title)
	if d.Meta.Author != "" {
		tw.TextBlock(1, "author", d.Meta.Author)
	}
	for _, name := range slices.Sorted(maps.Keys(d.Templates)) {
		pt := d.Templates[name]
		tw.Props(1, "template", "name", name, "width", pt.Width, "height", pt.Height, "background", pt.Background)
		for _, f := range pt.Frames {
			tw.Props(2, "frame", "name", f.Name, "x", f.X, "y", f.Y, "width", f.Width, "height", f.Height, "static", f.Static != nil)
			if f.Static != nil {
				dumpStory(tw, 3, f.Static)
			}
		}
	}
	for _, f := range d.Fonts {
		tw.Props(1, "font", "family", f.Family, "bold", f.Bold, "italic", f.Italic, "bytes", len(f.Data))
	}
	if p := d.Pagination; p != nil {
		tw.Props(1, "pagination", "pages", p.Pages, "headings", len(p.Headings), "anchors", len(p.Anchors))
	}
	tw.Props(1, "story", "elements", d.Story.Len())
	dumpStory(tw, 2, d.Story)
	return tw.String()
}

func dumpStory(tw *debug.TreeWriter, depth int, s *Story) {
	if s == nil {
		return
	}
	for _, e := range s.Elements {
		switch v := e.(type) {
		case *Paragraph:
			tw.Props(depth, "paragraph", "level", v.Level, "key", v.Key, "bullet", v.Bullet, "align", string(v.Style.Align))
			for _, it := range v.Items {
				dumpInline(tw, depth+1, it)
			}
		case *Table:
			tw.Props(depth, "table", "cols", v.Columns(), "rows", len(v.Rows), "repeat", v.RepeatRows, "width", v.Width, "styles", len(v.Styles))
			for r, row := range v.Rows {
				for c, cell := range row {
					if cell.Placeholder {
						continue
					}
					tw.Props(depth+1, "cell", "col", c, "row", r, "colspan", cell.ColSpan, "rowspan", cell.RowSpan)
					dumpStory(tw, depth+2, cell.Content)
				}
			}
		case *Image:
			tw.Props(depth, "image", "type", imageType(v), "width", v.Width, "height", v.Height, "float", string(v.Float), "link", v.Link)
		case *Rule:
			tw.Props(depth, "rule", "thickness", v.Thickness, "width", v.Width)
		case *Spacer:
			tw.Props(depth, "spacer", "width", v.Width, "height", v.Height)
		case *PageBreak:
			tw.Props(depth, "pagebreak", "template", v.Template)
		case *FrameBreak:
			tw.Line(depth, "framebreak")
		case *NextTemplate:
			tw.Props(depth, "nexttemplate", "name", v.Name)
		case *TOC:
			tw.Line(depth, "toc")
		}
	}
}

func dumpInline(tw *debug.TreeWriter, depth int, it Inline) {
	switch v := it.(type) {
	case *Span:
		tw.TextBlock(depth, "span", v.Text)
		if v.Link != "" {
			tw.Props(depth+1, "link", "target", v.Link)
		}
	case *Break:
		tw.Line(depth, "br")
	case *AnchorMark:
		tw.Props(depth, "anchor", "name", v.Name)
	case *InlineImage:
		tw.Props(depth, "inline-image", "width", v.Width, "height", v.Height, "link", v.Link)
	case *Field:
		name := "page-number"
		if v.Kind == FieldPageCount {
			name = "page-count"
		}
		tw.Line(depth, "field %s", name)
	}
}

func imageType(img *Image) string {
	if img.Image == nil {
		return ""
	}
	return img.Image.Type
}
