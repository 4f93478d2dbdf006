// Package pdf is pagination backend producing PDF documents with fpdf. It
// lays story content out into page template frames, draws static frames and
// page backgrounds and supports dry pagination pass used to resolve page
// counts and table of contents.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"go.uber.org/zap"

	"h2p/convert/engine"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

// fallback geometry for templates without flow frames
const fallbackMargin = 36

// Options control PDF output.
type Options struct {
	// Compress deflates page content streams.
	Compress bool
	// Producer is stored in document information and XMP metadata.
	Producer string
	// Now returns document creation time, time.Now when nil.
	Now func() time.Time
}

// Renderer implements engine.Renderer together with engine.MultiPass and
// engine.BackgroundPainter capabilities. It is not safe for concurrent use.
type Renderer struct {
	opts Options
	bgs  []story.Background
	log  *zap.Logger
}

var (
	_ engine.Renderer          = (*Renderer)(nil)
	_ engine.MultiPass         = (*Renderer)(nil)
	_ engine.BackgroundPainter = (*Renderer)(nil)
)

// New returns PDF renderer.
func New(opts Options, log *zap.Logger) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Producer == "" {
		opts.Producer = "h2p"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Renderer{opts: opts, log: log.Named("pdf")}
}

// SetBackgrounds sets background documents used by the following Render
// calls.
func (r *Renderer) SetBackgrounds(bgs []story.Background) {
	r.bgs = bgs
}

// Render lays out the document and writes PDF to w.
func (r *Renderer) Render(ctx context.Context, doc *story.Document, w io.Writer) (engine.RenderInfo, error) {
	rn, err := r.layout(ctx, doc, false)
	if err != nil {
		return engine.RenderInfo{}, err
	}

	var buf bytes.Buffer
	if err := rn.pdf.Output(&buf); err != nil {
		return engine.RenderInfo{}, fmt.Errorf("unable to produce pdf: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return engine.RenderInfo{}, fmt.Errorf("unable to write pdf: %w", err)
	}
	r.log.Debug("Document rendered", zap.Int("pages", rn.pages), zap.Int("bytes", buf.Len()))
	return engine.RenderInfo{Pages: rn.pages, Problems: rn.problems}, nil
}

// Paginate performs layout without producing output and reports where
// headings and anchors were placed.
func (r *Renderer) Paginate(ctx context.Context, doc *story.Document) (story.Pagination, error) {
	rn, err := r.layout(ctx, doc, true)
	if err != nil {
		return story.Pagination{}, err
	}
	rn.pagination.Pages = rn.pages
	return rn.pagination, nil
}

func (r *Renderer) layout(ctx context.Context, doc *story.Document, dry bool) (*run, error) {
	if doc == nil || doc.Story == nil {
		return nil, errors.New("nothing to render")
	}
	if doc.Template(story.DefaultTemplate) == nil {
		return nil, errors.New("document has no body page template")
	}

	rn := newRun(ctx, doc, dry, r.log)
	rn.pdf.SetCompression(r.opts.Compress)
	if !dry {
		rn.setMetadata(doc, r.opts.Producer, r.opts.Now())
		rn.openBackgrounds(r.bgs)
	}

	rn.registerFonts(doc.Fonts)
	if err := rn.pdf.Error(); err != nil {
		return nil, fmt.Errorf("unable to register fonts: %w", err)
	}

	rn.drawStory(doc.Story)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rn.finish()
	if err := rn.pdf.Error(); err != nil {
		return nil, fmt.Errorf("unable to lay out document: %w", err)
	}
	return rn, nil
}

// mode restricts what layout may do when content does not fit.
type mode int

const (
	// flowing content breaks into next frame or page
	modeFlow mode = iota
	// static frame content is clipped
	modeStatic
	// table cell content is never broken
	modeCell
)

// area is the rectangle content is currently placed into, y is the cursor.
type area struct {
	x, w        float64
	top, bottom float64
	y           float64
}

func (a area) atTop() bool {
	return a.y <= a.top+epsilon
}

// floater is a floating image content flows around.
type floater struct {
	side   style.Align
	w      float64
	bottom float64
}

const epsilon = 0.01

// run is state of a single layout pass.
type run struct {
	ctx context.Context
	pdf *fpdf.Fpdf
	doc *story.Document
	log *zap.Logger
	dry bool

	tr     func(string) string
	faces  map[fontKey]bool
	images map[*resource.Image]string
	links  map[string]int
	placed map[string]bool

	tplName  string // template of the next page
	tpl      *story.PageTemplate
	tplPages map[string]int
	flows    []story.Frame
	frame    int
	onPage   bool
	pages    int

	mode      mode
	static    bool
	a         area
	float     *floater
	cellAlign style.Align

	bgs        map[string]*background
	pagination story.Pagination
	lastLevel  int

	problems []engine.Problem
}

func newRun(ctx context.Context, doc *story.Document, dry bool, log *zap.Logger) *run {
	body := doc.Template(story.DefaultTemplate)
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: body.Width, Ht: body.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	return &run{
		ctx:        ctx,
		pdf:        pdf,
		doc:        doc,
		log:        log,
		dry:        dry,
		tr:         pdf.UnicodeTranslatorFromDescriptor(""),
		faces:      make(map[fontKey]bool),
		images:     make(map[*resource.Image]string),
		links:      make(map[string]int),
		placed:     make(map[string]bool),
		tplName:    story.DefaultTemplate,
		tplPages:   make(map[string]int),
		bgs:        make(map[string]*background),
		pagination: story.Pagination{Anchors: make(map[string]int)},
		lastLevel:  -1,
	}
}

// finish makes sure document has at least one page and every link
// destination points somewhere.
func (rn *run) finish() {
	if rn.pages == 0 {
		rn.newPage()
	}
	for name, id := range rn.links {
		if !rn.placed[name] {
			rn.log.Debug("Link destination never placed", zap.String("name", name))
			rn.pdf.SetLink(id, 0, 1)
		}
	}
}

// linkID returns internal link for named destination, creating it on first
// use. Destinations may be referenced before they are placed.
func (rn *run) linkID(name string) int {
	if id, ok := rn.links[name]; ok {
		return id
	}
	id := rn.pdf.AddLink()
	rn.links[name] = id
	return id
}

// anchor places named destination at y on the current page.
func (rn *run) anchor(name string, y float64) {
	if rn.static || name == "" || rn.placed[name] {
		return
	}
	rn.ensurePage()
	rn.placed[name] = true
	rn.pagination.Anchors[name] = rn.pages
	rn.pdf.SetLink(rn.linkID(name), y, -1)
}

// link adds clickable area for target: "#name" is internal destination,
// anything else is URI.
func (rn *run) link(x, y, w, h float64, target string) {
	if target == "" || w <= 0 || h <= 0 {
		return
	}
	if name, ok := cutAnchor(target); ok {
		rn.pdf.Link(x, y, w, h, rn.linkID(name))
		return
	}
	rn.pdf.LinkString(x, y, w, h, target)
}

func cutAnchor(target string) (string, bool) {
	if len(target) > 1 && target[0] == '#' {
		return target[1:], true
	}
	return "", false
}
