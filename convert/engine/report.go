package engine

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"go.uber.org/zap"

	"h2p/diag"
	"h2p/story"
	"h2p/style"
)

// report replaces failed run output with document listing diagnostics.
func report(ctx context.Context, res *Result, sink io.Writer, backend Renderer, log *zap.Logger) (*Result, error) {
	d := res.Log
	res.Errors, res.Warnings = d.Errors(), d.Warnings()
	res.Report = true

	doc := reportDocument(d, res.Document)
	info, err := backend.Render(ctx, doc, sink)
	if err != nil {
		return res, &Error{Result: res, Err: fmt.Errorf("unable to render diagnostics report: %w", err)}
	}
	res.Pages = info.Pages
	log.Info("Conversion failed, diagnostics report produced", zap.Int("errors", res.Errors), zap.Int("warnings", res.Warnings))
	return res, nil
}

func reportDocument(d *diag.Log, failed *story.Document) *story.Document {
	base := style.Default(style.FontHelvetica, 10)

	title := base
	title.FontSize, title.Bold, title.SpaceAfter = 16, true, 12

	s := story.New()
	s.Append(&story.Paragraph{
		Items: []story.Inline{&story.Span{Text: "Conversion failed", Style: title}},
		Style: title,
	})
	summary := base
	summary.SpaceAfter = 8
	s.Append(&story.Paragraph{
		Items: []story.Inline{&story.Span{
			Text:  fmt.Sprintf("Errors: %d, warnings: %d", d.Errors(), d.Warnings()),
			Style: summary,
		}},
		Style: summary,
	})

	head := base
	head.Bold = true
	cell := func(text string, f style.Fragment) story.Cell {
		content := story.New()
		content.Append(&story.Paragraph{Items: []story.Inline{&story.Span{Text: text, Style: f}}, Style: f})
		return story.Cell{ColSpan: 1, RowSpan: 1, Content: content}
	}

	t := &story.Table{
		ColWidths:  make([]float64, 4),
		RepeatRows: 1,
		Style:      base,
		Styles: []story.TableStyle{
			{Kind: story.StyleGrid, End: story.Point{Col: -1, Row: -1}, Width: 0.5, Color: style.Black, Line: "solid"},
			{Kind: story.StyleBackground, End: story.Point{Col: -1}, Color: style.RGB(0xdd, 0xdd, 0xdd)},
		},
	}
	t.Rows = append(t.Rows, []story.Cell{
		cell("Severity", head), cell("Line", head), cell("Code", head), cell("Message", head),
	})
	t.ColWidths[0], t.ColWidths[1], t.ColWidths[2] = 60, 40, 70
	for _, e := range d.Filter(diag.SeverityWarning) {
		line := ""
		if e.Line > 0 {
			line = strconv.Itoa(e.Line)
		}
		t.Rows = append(t.Rows, []story.Cell{
			cell(e.Severity.String(), base), cell(line, base), cell(e.Code, base), cell(e.Message, base),
		})
	}
	t.RowHeights = make([]float64, len(t.Rows))
	s.Append(t)

	doc := &story.Document{
		Story:     s,
		Templates: map[string]*story.PageTemplate{},
		Meta:      story.Metadata{Title: "Conversion report", Creator: "h2p"},
	}
	if failed != nil {
		doc.ID = failed.ID
		if failed.Meta.Title != "" {
			doc.Meta.Subject = failed.Meta.Title
		}
		if tpl := failed.Templates[story.DefaultTemplate]; tpl != nil {
			doc.Templates[story.DefaultTemplate] = &story.PageTemplate{
				Name:   story.DefaultTemplate,
				Width:  tpl.Width,
				Height: tpl.Height,
				Frames: tpl.FlowFrames(),
			}
		}
	}
	if doc.Templates[story.DefaultTemplate] == nil {
		doc.Templates[story.DefaultTemplate] = defaultTemplate(PageSetup{Size: "a4", Margins: [4]float64{36, 36, 36, 36}})
	}
	return doc
}
