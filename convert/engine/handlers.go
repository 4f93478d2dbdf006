package engine

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"h2p/markup"
	"h2p/story"
	"h2p/style"
)

//go:embed default.css
var defaultCSS []byte

var (
	blockTags = []string{
		"body", "p", "div", "blockquote", "center", "address", "pre", "dl", "dt", "dd",
		"section", "article", "header", "footer", "nav", "aside", "main", "figure",
		"figcaption", "form", "fieldset", "caption",
	}
	opaqueTags = []string{"style", "script", "link", "template", "object", "iframe"}
)

func registerBuiltins(d *Dispatcher) {
	for _, tag := range blockTags {
		d.Register(tag, &tagHandler{block: true})
	}
	for _, tag := range opaqueTags {
		d.Register(tag, &tagHandler{opaque: true})
	}
	for level := 1; level <= 6; level++ {
		d.Register(fmt.Sprintf("h%d", level), &tagHandler{block: true, enter: enterHeading(level)})
	}

	d.Register("html", &tagHandler{enter: enterHTML})
	d.Register("title", &tagHandler{opaque: true, enter: enterTitle})
	d.Register("meta", &tagHandler{enter: enterMeta})

	d.Register("a", &tagHandler{enter: enterAnchor})
	d.Register("font", &tagHandler{enter: enterFont})
	d.Register("br", &tagHandler{enter: enterBreak})
	d.Register("hr", &tagHandler{enter: enterRule})
	d.Register("img", &tagHandler{enter: enterImage})

	d.Register("ul", &tagHandler{block: true, skipOnError: true, enter: enterList, exit: exitList})
	d.Register("ol", &tagHandler{block: true, skipOnError: true, enter: enterList, exit: exitList})
	d.Register("li", &tagHandler{block: true, enter: enterItem})

	d.Register("table", &tagHandler{skipOnError: true, enter: enterTable, exit: exitTable})
	for _, tag := range []string{"thead", "tbody", "tfoot"} {
		d.Register(tag, &tagHandler{enter: enterSection, exit: exitSection})
	}
	d.Register("tr", &tagHandler{enter: enterRow, exit: exitRow})
	d.Register("td", &tagHandler{skipOnError: true, enter: enterCell, exit: exitCell})
	d.Register("th", &tagHandler{skipOnError: true, enter: enterCell, exit: exitCell})

	d.Register("pdf:nextpage", &tagHandler{enter: enterNextPage})
	d.Register("pdf:nexttemplate", &tagHandler{enter: enterNextTemplate})
	d.Register("pdf:nextframe", &tagHandler{enter: enterNextFrame})
	d.Register("pdf:pagenumber", &tagHandler{enter: enterField(story.FieldPageNumber)})
	d.Register("pdf:pagecount", &tagHandler{enter: enterField(story.FieldPageCount)})
	d.Register("pdf:toc", &tagHandler{enter: enterTOC})
	d.Register("pdf:spacer", &tagHandler{enter: enterSpacer})
}

func headingKey(n int) string {
	return "heading-" + strconv.Itoa(n)
}

func enterHeading(level int) func(*Context, *markup.Node) error {
	return func(c *Context, _ *markup.Node) error {
		c.heading = level
		return nil
	}
}

// metadata

func enterHTML(c *Context, n *markup.Node) error {
	if lang := n.AttrOr("lang", n.AttrOr("xml:lang", "")); lang != "" {
		c.meta.Language = lang
	}
	return nil
}

func enterTitle(c *Context, n *markup.Node) error {
	c.meta.Title = strings.TrimSpace(collapseSpace(n.TextContent()))
	return nil
}

func enterMeta(c *Context, n *markup.Node) error {
	content := strings.TrimSpace(n.AttrOr("content", ""))
	switch strings.ToLower(n.AttrOr("name", "")) {
	case "author":
		c.meta.Author = content
	case "subject":
		c.meta.Subject = content
	case "keywords":
		c.meta.Keywords = content
	case "description":
		c.meta.Description = content
	}
	if strings.EqualFold(n.AttrOr("http-equiv", ""), "content-language") && c.meta.Language == "" {
		c.meta.Language = content
	}
	return nil
}

// inline formatting

// linkPattern allows fragment references and anything with a scheme.
var linkPattern = regexp.MustCompile(`^(#|[a-zA-Z][a-zA-Z0-9+.-]*:)`)

func enterAnchor(c *Context, n *markup.Node) error {
	if name := strings.TrimSpace(n.AttrOr("name", "")); name != "" {
		c.RegisterAnchor(name)
		c.top().AnchorName = name
	}
	if href := strings.TrimSpace(n.AttrOr("href", "")); href != "" && linkPattern.MatchString(href) {
		c.top().Link = href
	}
	return nil
}

func enterFont(c *Context, n *markup.Node) error {
	if v := n.AttrOr("color", ""); v != "" {
		c.ApplyOverride("color", v)
	}
	if v := n.AttrOr("face", ""); v != "" {
		c.ApplyOverride("font-family", v)
	}
	if v := n.AttrOr("size", ""); v != "" {
		size, ok := style.ResolveHTMLFontSize(v, c.top().FontSize, c.opts.BaseFontSize)
		if !ok {
			return warnf("invalid font size %q", v)
		}
		c.top().FontSize = size
	}
	return nil
}

func enterBreak(c *Context, _ *markup.Node) error {
	c.Break()
	return nil
}

func enterRule(c *Context, n *markup.Node) error {
	f := c.Current()
	before := max(f.SpaceBefore, c.consumeSpacing())
	r := &story.Rule{
		Thickness:   1,
		Color:       f.Color,
		Align:       style.AlignCenter,
		SpaceBefore: before,
		SpaceAfter:  f.SpaceAfter,
	}
	if v := n.AttrOr("size", ""); v != "" {
		if t, ok := style.ParseLength(v, f.FontSize, 0); ok && t > 0 {
			r.Thickness = t
		}
	}
	if v := n.AttrOr("width", ""); v != "" {
		r.Width = sizeOf(v, f.FontSize, c.frameWidth)
	}
	if col, ok := style.ParseColor(n.AttrOr("color", "")); ok {
		r.Color = col
	}
	if a, ok := style.ParseAlign(n.AttrOr("align", "")); ok {
		r.Align = a
	}
	c.story.Append(r)
	return nil
}

// images

func enterImage(c *Context, n *markup.Node) error {
	src := strings.TrimSpace(n.AttrOr("src", ""))
	if src == "" {
		return warnf("image without source")
	}
	res := c.resolver.Resolve(c.ctx, src, c.opts.BasePath)
	if !res.Exists() {
		return warnf("image %q not found", src)
	}
	img, err := res.DecodeImage()
	if err != nil {
		return warnf("image %q: %v", src, err)
	}

	f := c.Current()
	props := c.props(n)
	w := sizeOf(n.AttrOr("width", props["width"].Raw), f.FontSize, c.frameWidth)
	h := sizeOf(n.AttrOr("height", props["height"].Raw), f.FontSize, 0)
	w, h = imageSize(w, h, float64(img.Width)*style.PtPerPx, float64(img.Height)*style.PtPerPx)
	zoom := f.ImageZoom * c.opts.ImageZoom
	w, h = w*zoom, h*zoom

	align := strings.ToLower(strings.TrimSpace(n.AttrOr("align", props["float"].Raw)))
	if align == "left" || align == "right" {
		f.SpaceBefore = max(f.SpaceBefore, c.consumeSpacing())
		c.story.Append(&story.Image{
			Image:  img,
			Width:  w,
			Height: h,
			Float:  style.Align(align),
			Style:  f,
			Link:   f.Link,
		})
		return nil
	}
	c.AddInline(&story.InlineImage{
		Image:  img,
		Width:  w,
		Height: h,
		VAlign: imageVAlign(n.AttrOr("align", props["vertical-align"].Raw)),
		Link:   f.Link,
	})
	return nil
}

// imageSize computes draw size from requested and natural sizes. A missing
// dimension follows the natural aspect ratio.
func imageSize(w, h, naturalW, naturalH float64) (float64, float64) {
	switch {
	case w > 0 && h > 0:
		return w, h
	case w > 0 && naturalW > 0:
		return w, w * naturalH / naturalW
	case h > 0 && naturalH > 0:
		return h * naturalW / naturalH, h
	}
	return naturalW, naturalH
}

// imageVAlign maps legacy image alignment onto line positions. Images sit
// on the line bottom unless asked otherwise.
func imageVAlign(align string) style.VAlign {
	switch strings.ToLower(strings.TrimSpace(align)) {
	case "top", "texttop", "text-top":
		return style.VAlignTop
	case "middle", "absmiddle", "center":
		return style.VAlignMiddle
	}
	return style.VAlignBottom
}

// lists

func enterList(c *Context, n *markup.Node) error {
	if t := n.AttrOr("type", ""); t != "" {
		c.ApplyOverride("list-style-type", style.ListTypeAttr(t))
	}
	start := 1
	if v, err := strconv.Atoi(strings.TrimSpace(n.AttrOr("start", "1"))); err == nil {
		start = v
	}
	c.PushCounter(start)
	return nil
}

func exitList(c *Context, _ *markup.Node) error {
	c.PopCounter()
	return nil
}

func enterItem(c *Context, n *markup.Node) error {
	if t := n.AttrOr("type", ""); t != "" {
		c.ApplyOverride("list-style-type", style.ListTypeAttr(t))
	}
	if v, err := strconv.Atoi(strings.TrimSpace(n.AttrOr("value", ""))); err == nil {
		if len(c.counters) == 0 {
			c.PushCounter(1)
		}
		c.counters[len(c.counters)-1] = v - 1
	}
	c.bullet = style.ResolveBullet(c.Current().ListStyle).Label(c.NextCounter())
	return nil
}

// extension tags

func enterNextPage(c *Context, n *markup.Node) error {
	name := strings.TrimSpace(n.AttrOr("name", ""))
	if name != "" && c.templates[name] == nil {
		c.Append(&story.PageBreak{})
		return warnf("unknown page template %q", name)
	}
	c.Append(&story.PageBreak{Template: name})
	return nil
}

func enterNextTemplate(c *Context, n *markup.Node) error {
	name := strings.TrimSpace(n.AttrOr("name", ""))
	if name == "" {
		return warnf("template name is missing")
	}
	if c.templates[name] == nil {
		return warnf("unknown page template %q", name)
	}
	c.Append(&story.NextTemplate{Name: name})
	return nil
}

func enterNextFrame(c *Context, _ *markup.Node) error {
	c.Append(&story.FrameBreak{})
	return nil
}

func enterField(kind story.FieldKind) func(*Context, *markup.Node) error {
	return func(c *Context, _ *markup.Node) error {
		if kind == story.FieldPageCount {
			c.multiPass = true
		}
		c.AddInline(&story.Field{Kind: kind, Style: c.Current()})
		return nil
	}
}

func enterTOC(c *Context, _ *markup.Node) error {
	c.multiPass = true
	c.Append(&story.TOC{Style: c.Current()})
	return nil
}

func enterSpacer(c *Context, n *markup.Node) error {
	f := c.Current()
	h := sizeOf(n.AttrOr("height", ""), f.FontSize, 0)
	w := sizeOf(n.AttrOr("width", ""), f.FontSize, c.frameWidth)
	c.Append(&story.Spacer{Width: w, Height: h})
	return nil
}
