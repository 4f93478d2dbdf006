package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"h2p/diag"
	"h2p/markup"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

// Convert parses HTML from src and converts it writing PDF to sink.
func Convert(ctx context.Context, src io.Reader, sink io.Writer, backend Renderer, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("unable to read source: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}
	root, err := markup.Parse(bytes.NewReader(data), markup.Options{Encoding: opts.Encoding}, log)
	if err != nil {
		return nil, fmt.Errorf("unable to parse markup: %w", err)
	}
	return ConvertTree(ctx, root, sink, backend, opts, log)
}

// ConvertTree converts parsed markup writing PDF to sink. In raising mode
// any error logged during the run makes the call fail with *Error wrapping
// ErrConversionFailed. In report mode such run produces diagnostics report
// instead of the document.
func ConvertTree(ctx context.Context, root *markup.Node, sink io.Writer, backend Renderer, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if root == nil {
		return nil, ErrEmptyInput
	}
	if backend == nil {
		return nil, errors.New("no rendering backend")
	}
	opts = opts.withDefaults()

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	log = log.Named("engine").With(zap.Stringer("run", id))

	// backend capabilities are checked once
	paginator, canPaginate := backend.(MultiPass)
	painter, canPaint := backend.(BackgroundPainter)
	log.Debug("Conversion started",
		zap.Bool("multipass", canPaginate),
		zap.Bool("backgrounds", canPaint),
		zap.Stringer("fallback", opts.Fallback))

	d := diag.New(log)
	resolver := resource.NewResolver(d, opts.TempPrefix+"-"+id.String()[:8], opts.Fetch, log)
	defer func() {
		if err := resolver.Close(); err != nil {
			log.Warn("Unable to release temporary files", zap.Error(err))
		}
	}()

	c := newContext(ctx, d, resolver, opts, log)
	doc, err := build(c, root, id.String())
	if err != nil {
		return nil, err
	}
	res := &Result{Log: d, Document: doc}

	if doc.NeedsMultiPass {
		switch {
		case !opts.MultiPass:
			d.Warn(0, diag.CodeRender, "second pagination pass is disabled, page counts and table of contents are incomplete")
		case !canPaginate:
			d.Warn(0, diag.CodeRender, "backend does not support second pagination pass, page counts and table of contents are incomplete")
		default:
			p, err := paginator.Paginate(ctx, doc)
			if err != nil {
				d.Error(0, diag.CodeRender, "pagination pass failed: %v", err)
			} else {
				doc.Pagination = &p
				log.Debug("Pagination pass done", zap.Int("pages", p.Pages), zap.Int("headings", len(p.Headings)))
			}
		}
	}

	if bgs := backgrounds(c, doc); len(bgs) > 0 {
		if canPaint {
			painter.SetBackgrounds(bgs)
		} else {
			d.Warn(0, diag.CodeBackground, "backend does not support page backgrounds, %d ignored", len(bgs))
		}
	}

	var out bytes.Buffer
	rendered := false
	if !d.Failed() || opts.Fallback == FallbackRaise {
		info, err := backend.Render(ctx, doc, &out)
		if err != nil {
			d.Error(0, diag.CodeRender, "unable to render document: %v", err)
		} else {
			rendered = true
			res.Pages = info.Pages
			for _, p := range info.Problems {
				d.Warn(0, p.Code, "%s", p.Msg)
			}
		}
	}

	if d.Failed() && opts.Fallback == FallbackReport {
		return report(ctx, res, sink, backend, log)
	}

	if rendered {
		if _, err := sink.Write(out.Bytes()); err != nil {
			d.Error(0, diag.CodeOutput, "unable to write output: %v", err)
		}
	}
	res.Errors, res.Warnings = d.Errors(), d.Warnings()
	log.Debug("Conversion done", zap.Int("pages", res.Pages), zap.Int("errors", res.Errors), zap.Int("warnings", res.Warnings))
	if d.Failed() {
		return res, &Error{Result: res, Err: ErrConversionFailed}
	}
	return res, nil
}

// build walks the tree producing the document.
func build(c *Context, root *markup.Node, id string) (*story.Document, error) {
	c.collectStyles(root)
	if c.templates[story.DefaultTemplate] == nil {
		c.templates[story.DefaultTemplate] = defaultTemplate(c.opts.Page)
	}
	if flow := c.templates[story.DefaultTemplate].FlowFrames(); len(flow) > 0 {
		c.frameWidth = flow[0].Width
	}

	disp := NewDispatcher()
	for tag, h := range c.opts.Handlers {
		disp.Register(tag, h)
	}
	disp.Walk(c, root)
	c.Flush()
	if err := c.ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion interrupted: %w", err)
	}

	for id, fr := range c.statics {
		if root.Find(markup.ByID(id)) == nil {
			c.diag.Warn(0, diag.CodeHandler, "content %q of static frame %q not found", id, fr.Name)
		}
	}

	meta := c.meta
	if meta.Creator == "" {
		meta.Creator = "h2p"
	}
	doc := &story.Document{
		ID:             id,
		Story:          c.story,
		Templates:      c.templates,
		Meta:           meta,
		Fonts:          c.fonts,
		Anchors:        c.anchors,
		NeedsMultiPass: c.multiPass,
	}
	if doc.Story.Empty() {
		doc.Story.Append(&story.Spacer{})
	}

	keep := func(target string) bool {
		name, internal := strings.CutPrefix(target, "#")
		return !internal || c.anchors[name]
	}
	removed := doc.Story.StripLinks(keep)
	for _, tpl := range doc.Templates {
		for _, fr := range tpl.Frames {
			if fr.Static != nil {
				removed += fr.Static.StripLinks(keep)
			}
		}
	}
	if removed > 0 {
		c.log.Debug("Dangling links removed", zap.Int("count", removed))
	}
	return doc, nil
}

// defaultTemplate is single frame page of configured size and margins.
func defaultTemplate(ps PageSetup) *story.PageTemplate {
	w, h := ps.Dimensions()
	m := ps.Margins
	return &story.PageTemplate{
		Name:   story.DefaultTemplate,
		Width:  w,
		Height: h,
		Frames: []story.Frame{{
			Name:   "content",
			X:      m[style.Left],
			Y:      m[style.Top],
			Width:  w - m[style.Left] - m[style.Right],
			Height: h - m[style.Top] - m[style.Bottom],
		}},
	}
}

// backgrounds resolves declared page backgrounds keeping those which are
// PDF documents.
func backgrounds(c *Context, doc *story.Document) []story.Background {
	var out []story.Background
	for _, name := range slices.Sorted(maps.Keys(doc.Templates)) {
		tpl := doc.Templates[name]
		if tpl.Background == "" {
			continue
		}
		res := c.resolver.Resolve(c.ctx, tpl.Background, c.bgBase[name])
		if !res.Exists() {
			c.diag.Warn(0, diag.CodeBackground, "background %q of template %q not found", tpl.Background, name)
			continue
		}
		data, err := res.Read()
		if err != nil {
			c.diag.Warn(0, diag.CodeBackground, "unable to read background %q: %v", tpl.Background, err)
			continue
		}
		if !filetype.Is(data, "pdf") {
			c.diag.Warn(0, diag.CodeBackground, "background %q of template %q is not a PDF document", tpl.Background, name)
			continue
		}
		out = append(out, story.Background{Template: name, Resource: res})
	}
	return out
}
