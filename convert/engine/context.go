package engine

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"h2p/css"
	"h2p/diag"
	"h2p/markup"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

// block is style of an open block element. Spacing before is consumed by
// the first paragraph produced inside the block.
type block struct {
	frag     style.Fragment
	consumed bool
}

// Context is the style context of a single run. It keeps the fragment
// stack, the story being built and run level document data. Not safe for
// concurrent use.
type Context struct {
	ctx      context.Context
	log      *zap.Logger
	diag     *diag.Log
	resolver *resource.Resolver
	opts     Options

	parser   *css.Parser
	cascade  *css.Cascade
	computed map[*markup.Node]map[string]css.Value

	stack   []style.Fragment
	blocks  []block
	story   *story.Story
	pending []story.Inline

	bullet   string
	heading  int
	headings int

	counters []int
	tables   []*TableData

	anchors     map[string]bool
	meta        story.Metadata
	templates   map[string]*story.PageTemplate
	fonts       []story.Font
	knownFonts  map[string]bool
	statics     map[string]*story.Frame
	bgBase      map[string]string
	multiPass   bool
	caser       map[string]cases.Caser
	frameWidth  float64
	currentLine int
}

func newContext(ctx context.Context, d *diag.Log, r *resource.Resolver, opts Options, log *zap.Logger) *Context {
	parser := css.NewParser(log)
	w, _ := opts.Page.Dimensions()
	root := style.Default(opts.FontName, opts.BaseFontSize)
	return &Context{
		ctx:        ctx,
		log:        log,
		diag:       d,
		resolver:   r,
		opts:       opts,
		parser:     parser,
		cascade:    css.NewCascade(parser),
		computed:   make(map[*markup.Node]map[string]css.Value),
		stack:      []style.Fragment{root},
		blocks:     []block{{frag: root}},
		story:      story.New(),
		anchors:    make(map[string]bool),
		templates:  make(map[string]*story.PageTemplate),
		knownFonts: make(map[string]bool),
		statics:    make(map[string]*story.Frame),
		bgBase:     make(map[string]string),
		caser:      make(map[string]cases.Caser),
		frameWidth: w - opts.Page.Margins[style.Left] - opts.Page.Margins[style.Right],
	}
}

// Current returns the active fragment.
func (c *Context) Current() style.Fragment {
	return c.stack[len(c.stack)-1]
}

// Push clones active fragment on top of the stack.
func (c *Context) Push() {
	c.stack = append(c.stack, c.Current())
}

// Pop discards top fragment. Root fragment is never removed.
func (c *Context) Pop() {
	if len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]
	}
}

// Depth returns fragment stack depth.
func (c *Context) Depth() int {
	return len(c.stack)
}

// top gives mutable access to the top fragment, only overrides use it.
func (c *Context) top() *style.Fragment {
	return &c.stack[len(c.stack)-1]
}

// ApplyOverride sets single CSS property on the top fragment.
func (c *Context) ApplyOverride(name, value string) {
	applyProperty(c, c.top(), name, css.Value{Raw: value, Keyword: strings.ToLower(strings.TrimSpace(value))})
}

// AddText appends text to the pending paragraph using active style.
func (c *Context) AddText(text string) {
	f := c.Current()
	if !f.Pre {
		text = collapseSpace(text)
		if text == " " && c.pendingEndsWithSpace() {
			return
		}
		if strings.HasPrefix(text, " ") && c.pendingEndsWithSpace() {
			text = text[1:]
		}
	}
	if text == "" {
		return
	}
	text = c.transform(f.Transform, text)

	if n := len(c.pending); n > 0 {
		if prev, ok := c.pending[n-1].(*story.Span); ok && prev.Style == f && prev.Link == f.Link {
			prev.Text += text
			return
		}
	}
	c.pending = append(c.pending, &story.Span{Text: text, Style: f, Link: f.Link})
}

// AddInline appends non-text inline item to the pending paragraph.
func (c *Context) AddInline(it story.Inline) {
	c.pending = append(c.pending, it)
}

// Break adds hard line break into pending content. Break affects only the
// boundary, text which follows continues with active style.
func (c *Context) Break() {
	c.pending = append(c.pending, &story.Break{})
}

// Flush commits pending inline content to the story as a paragraph.
func (c *Context) Flush() {
	c.flush(false)
}

func (c *Context) flush(closing bool) *story.Paragraph {
	items := trimItems(c.pending)
	c.pending = nil
	if len(items) == 0 {
		return nil
	}
	bullet, level := c.bullet, c.heading
	c.bullet, c.heading = "", 0

	b := &c.blocks[len(c.blocks)-1]
	p := &story.Paragraph{Items: items, Style: b.frag, Bullet: bullet}
	if b.consumed {
		p.Style.SpaceBefore = 0
	}
	b.consumed = true
	if !closing {
		p.Style.SpaceAfter = 0
	}
	if p.Empty() && !hasAnchor(items) {
		return nil
	}
	if level > 0 {
		c.headings++
		p.Level = level
		p.Key = headingKey(c.headings)
	}
	c.story.Append(p)
	return p
}

// Append flushes pending content and adds flow element to the story.
func (c *Context) Append(e story.Element) {
	c.Flush()
	c.story.Append(e)
}

// SwapStory installs replacement story and returns the previous one. Calls
// must be paired, the second one restoring the returned story.
func (c *Context) SwapStory(s *story.Story) *story.Story {
	prev := c.story
	c.story = s
	return prev
}

// Story returns story content currently goes to.
func (c *Context) Story() *story.Story {
	return c.story
}

// openBlock starts block element using active fragment. Unconsumed spacing
// of enclosing block moves to the new one.
func (c *Context) openBlock() {
	c.Flush()
	f := c.Current()
	parent := &c.blocks[len(c.blocks)-1]
	if !parent.consumed {
		f.SpaceBefore = max(f.SpaceBefore, parent.frag.SpaceBefore)
		parent.consumed = true
	}
	c.blocks = append(c.blocks, block{frag: f})
}

// closeBlock flushes block content applying spacing after.
func (c *Context) closeBlock() {
	after := c.blocks[len(c.blocks)-1].frag.SpaceAfter
	if p := c.flush(true); p == nil && after > 0 {
		c.story.Append(&story.Spacer{Height: after})
	}
	if len(c.blocks) > 1 {
		c.blocks = c.blocks[:len(c.blocks)-1]
	}
	// heading or bullet of a block without content must not leak out
	c.heading, c.bullet = 0, ""
}

// consumeSpacing flushes pending content and takes spacing before of the
// enclosing block when no paragraph used it yet. Flow elements which are
// not paragraphs call it to keep vertical rhythm.
func (c *Context) consumeSpacing() float64 {
	c.Flush()
	b := &c.blocks[len(c.blocks)-1]
	if b.consumed {
		return 0
	}
	b.consumed = true
	return b.frag.SpaceBefore
}

// PushCounter enters a list: fresh counter starting at start-1.
func (c *Context) PushCounter(start int) {
	c.counters = append(c.counters, start-1)
}

// PopCounter leaves a list restoring parent counter.
func (c *Context) PopCounter() {
	if len(c.counters) > 0 {
		c.counters = c.counters[:len(c.counters)-1]
	}
}

// NextCounter increments and returns counter of the innermost list.
func (c *Context) NextCounter() int {
	if len(c.counters) == 0 {
		c.counters = append(c.counters, 0)
	}
	c.counters[len(c.counters)-1]++
	return c.counters[len(c.counters)-1]
}

// RegisterAnchor records anchor declaration and places its mark at the
// current position.
func (c *Context) RegisterAnchor(name string) {
	if name == "" {
		return
	}
	c.anchors[name] = true
	c.AddInline(&story.AnchorMark{Name: name})
}

// Meta gives access to run level document metadata.
func (c *Context) Meta() *story.Metadata {
	return &c.meta
}

// Diag returns diagnostics log of the run.
func (c *Context) Diag() *diag.Log {
	return c.diag
}

func (c *Context) transform(kind, text string) string {
	var tag language.Tag
	if c.meta.Language != "" {
		tag = language.Make(c.meta.Language)
	}
	key := kind + "/" + tag.String()
	caser, ok := c.caser[key]
	if !ok {
		switch kind {
		case "uppercase":
			caser = cases.Upper(tag)
		case "lowercase":
			caser = cases.Lower(tag)
		case "capitalize":
			caser = cases.Title(tag, cases.NoLower)
		default:
			return text
		}
		c.caser[key] = caser
	}
	return caser.String(text)
}

func (c *Context) pendingEndsWithSpace() bool {
	for i := len(c.pending) - 1; i >= 0; i-- {
		switch v := c.pending[i].(type) {
		case *story.Span:
			return strings.HasSuffix(v.Text, " ")
		case *story.Break:
			return true
		case *story.AnchorMark:
			continue
		default:
			return false
		}
	}
	return true
}

var spaceRun = regexp.MustCompile(`[ \t\r\n\f]+`)

func collapseSpace(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// trimItems removes leading and trailing blanks of collapsed text.
func trimItems(items []story.Inline) []story.Inline {
	for i, it := range items {
		s, ok := it.(*story.Span)
		if !ok {
			if _, anchor := it.(*story.AnchorMark); anchor {
				continue
			}
			break
		}
		if !s.Style.Pre {
			s.Text = strings.TrimLeft(s.Text, " ")
		}
		if s.Text != "" {
			break
		}
		items[i] = nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		s, ok := items[i].(*story.Span)
		if !ok {
			if items[i] == nil {
				continue
			}
			if _, anchor := items[i].(*story.AnchorMark); anchor {
				continue
			}
			break
		}
		if !s.Style.Pre {
			s.Text = strings.TrimRight(s.Text, " ")
		}
		if s.Text != "" {
			break
		}
		items[i] = nil
	}
	out := items[:0]
	for _, it := range items {
		if it != nil {
			out = append(out, it)
		}
	}
	return out
}

func hasAnchor(items []story.Inline) bool {
	for _, it := range items {
		if _, ok := it.(*story.AnchorMark); ok {
			return true
		}
	}
	return false
}
