package engine

import (
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"go.uber.org/zap"

	"h2p/css"
	"h2p/diag"
	"h2p/markup"
	"h2p/story"
	"h2p/style"
)

// collectStyles builds the cascade before the walk: embedded defaults,
// user stylesheet and then document style and link elements in source
// order. Font faces and page templates declared by any of them are
// registered on the context.
func (c *Context) collectStyles(root *markup.Node) {
	seen := make(map[string]bool)

	sheet := c.parser.Parse(c.opts.DefaultCSS, "default")
	c.addSheet(sheet, css.OriginDefault, c.opts.BasePath, 0, seen)

	if len(c.opts.UserCSS) > 0 {
		sheet = c.parser.Parse(c.opts.UserCSS, "user")
		c.addSheet(sheet, css.OriginUser, c.opts.BasePath, 0, seen)
	}

	for _, n := range root.FindAll(func(n *markup.Node) bool { return n.IsElement("style", "link") }) {
		if !printMedia(n.AttrOr("media", "")) {
			c.log.Debug("Skipping stylesheet for other media", zap.String("media", n.AttrOr("media", "")))
			continue
		}
		switch n.Tag {
		case "style":
			sheet = c.parser.Parse([]byte(n.TextContent()), "style")
			c.addSheet(sheet, css.OriginDocument, c.opts.BasePath, n.Line, seen)
		case "link":
			if !strings.Contains(strings.ToLower(n.AttrOr("rel", "")), "stylesheet") {
				continue
			}
			href := strings.TrimSpace(n.AttrOr("href", ""))
			if sheet, base := c.loadSheet(href, c.opts.BasePath, n.Line, seen); sheet != nil {
				c.addSheet(sheet, css.OriginDocument, base, n.Line, seen)
			}
		}
	}
}

// loadSheet resolves and parses external stylesheet. It returns nil for
// missing sheets and for sheets already loaded during this run.
func (c *Context) loadSheet(href, base string, line int, seen map[string]bool) (*css.Stylesheet, string) {
	if href == "" {
		return nil, base
	}
	key := base + "\x00" + href
	if seen[key] {
		c.log.Debug("Stylesheet already loaded", zap.String("href", href))
		return nil, base
	}
	seen[key] = true

	res := c.resolver.Resolve(c.ctx, href, base)
	if !res.Exists() {
		c.diag.Warn(line, diag.CodeCSS, "stylesheet %q not found", href)
		return nil, base
	}
	data, err := res.Read()
	if err != nil {
		c.diag.Warn(line, diag.CodeCSS, "unable to read stylesheet %q: %v", href, err)
		return nil, base
	}
	if p := res.Path(); p != "" && !res.Temporary() {
		base = filepath.Dir(p)
	}
	return c.parser.Parse(data, href), base
}

// addSheet registers stylesheet with its imports placed before it. Imports
// are followed one level deep.
func (c *Context) addSheet(sheet *css.Stylesheet, origin css.Origin, base string, line int, seen map[string]bool) {
	for _, w := range sheet.Warnings {
		if origin == css.OriginDefault {
			c.log.Debug("Default stylesheet", zap.String("warning", w))
			continue
		}
		c.diag.Warn(line, diag.CodeCSS, "%s", w)
	}
	for _, href := range sheet.Imports() {
		imported, ibase := c.loadSheet(href, base, line, seen)
		if imported == nil {
			continue
		}
		if len(imported.Imports()) > 0 {
			c.diag.Debug(line, diag.CodeCSS, "nested imports of %q ignored", href)
		}
		c.addFonts(imported, ibase, line)
		c.addPages(imported, ibase, line)
		c.cascade.Add(imported, origin)
	}
	c.addFonts(sheet, base, line)
	c.addPages(sheet, base, line)
	c.cascade.Add(sheet, origin)
}

func (c *Context) addFonts(sheet *css.Stylesheet, base string, line int) {
	for _, ff := range sheet.FontFaces() {
		src, ok := css.URL(ff.Src)
		if !ok {
			c.diag.Warn(line, diag.CodeCSS, "font face %q has no source", ff.Family)
			continue
		}
		res := c.resolver.Resolve(c.ctx, src, base)
		if !res.Exists() {
			c.diag.Warn(line, diag.CodeResource, "font %q not found", src)
			continue
		}
		data, err := res.Read()
		if err != nil {
			c.diag.Warn(line, diag.CodeResource, "unable to read font %q: %v", src, err)
			continue
		}
		if !filetype.Is(data, "ttf") {
			c.diag.Warn(line, diag.CodeResource, "font %q is not a TrueType font", src)
			continue
		}
		family := strings.ToLower(strings.TrimSpace(ff.Family))
		bold, _ := style.ParseWeight(ff.Weight)
		c.fonts = append(c.fonts, story.Font{
			Family: family,
			Bold:   bold,
			Italic: ff.Style == "italic" || ff.Style == "oblique",
			Data:   data,
		})
		c.knownFonts[family] = true
	}
}

// addPages converts @page rules into page templates. The unnamed page is
// the default body template.
func (c *Context) addPages(sheet *css.Stylesheet, base string, line int) {
	for _, pr := range sheet.Pages() {
		if pr.Pseudo != "" {
			c.diag.Debug(line, diag.CodeCSS, "@page :%s is not supported", pr.Pseudo)
			continue
		}
		name := pr.Name
		if name == "" {
			name = story.DefaultTemplate
		}
		tpl, contents := c.pageTemplate(name, pr, line)
		if bg, ok := css.URL(firstOf(pr.Properties, "background-image", "background").Raw); ok {
			tpl.Background = bg
			c.bgBase[name] = base
		}
		c.templates[name] = tpl
		for i, id := range contents {
			if id != "" {
				c.statics[id] = &tpl.Frames[i]
			}
		}
		c.log.Debug("Page template", zap.String("name", name), zap.Int("frames", len(tpl.Frames)))
	}
}

// pageTemplate builds template geometry. Returned slice holds content
// element id of every static frame, indexed as template frames.
func (c *Context) pageTemplate(name string, pr css.PageRule, line int) (*story.PageTemplate, []string) {
	w, h := c.opts.Page.Dimensions()
	margins := c.opts.Page.Margins
	fs := c.opts.BaseFontSize

	if size := strings.ToLower(strings.TrimSpace(pr.Properties["size"].Raw)); size != "" {
		if pw, ph, ok := parsePageSize(size, fs); ok {
			w, h = pw, ph
		} else {
			c.diag.Warn(line, diag.CodeCSS, "invalid page size %q", size)
		}
	}
	if v, ok := pr.Properties["margin"]; ok {
		if box, ok := style.ParseBox(v.Raw, fs, w); ok {
			margins = box
		}
	}
	for _, side := range []string{"top", "right", "bottom", "left"} {
		if v, ok := pr.Properties["margin-"+side]; ok {
			if l, ok := style.ParseLength(v.Raw, fs, w); ok {
				margins[sideOf(side)] = l
			}
		}
	}

	tpl := &story.PageTemplate{Name: name, Width: w, Height: h}
	var contents []string
	for _, fr := range pr.Frames {
		tpl.Frames = append(tpl.Frames, frameGeometry(fr, w, h, margins, fs))
		contents = append(contents, strings.Trim(fr.Properties["-pdf-frame-content"].Raw, ` "'`))
	}
	if allStatic(contents) {
		tpl.Frames = append(tpl.Frames, story.Frame{
			Name:   "content",
			X:      margins[style.Left],
			Y:      margins[style.Top],
			Width:  w - margins[style.Left] - margins[style.Right],
			Height: h - margins[style.Top] - margins[style.Bottom],
		})
		contents = append(contents, "")
	}
	for i, id := range contents {
		if id != "" {
			tpl.Frames[i].Static = story.New()
		}
	}
	return tpl, contents
}

// allStatic is true for templates without any flow frame.
func allStatic(contents []string) bool {
	for _, id := range contents {
		if id == "" {
			return false
		}
	}
	return true
}

// frameGeometry places frame on the page. Offsets default to page margins,
// size defaults to whatever remains.
func frameGeometry(fr css.FrameRule, w, h float64, margins [4]float64, fs float64) story.Frame {
	get := func(name string, ref float64) (float64, bool) {
		v, ok := fr.Properties[name]
		if !ok {
			return 0, false
		}
		return style.ParseLength(v.Raw, fs, ref)
	}
	f := story.Frame{Name: fr.Name}

	left, okLeft := get("left", w)
	right, okRight := get("right", w)
	width, okWidth := get("width", w)
	if !okLeft {
		left = margins[style.Left]
	}
	if !okRight {
		right = margins[style.Right]
	}
	switch {
	case okWidth:
	case okLeft || okRight:
		width = w - left - right
	default:
		width = w - margins[style.Left] - margins[style.Right]
	}
	if okRight && okWidth && !okLeft {
		left = w - right - width
	}

	top, okTop := get("top", h)
	bottom, okBottom := get("bottom", h)
	height, okHeight := get("height", h)
	if !okTop {
		top = margins[style.Top]
	}
	if !okBottom {
		bottom = margins[style.Bottom]
	}
	if !okHeight {
		height = h - top - bottom
	}
	if okBottom && okHeight && !okTop {
		top = h - bottom - height
	}

	f.X, f.Y = left, top
	f.Width, f.Height = max(width, 0), max(height, 0)
	return f
}

// parsePageSize interprets @page size: paper name, two lengths and
// orientation keyword in any combination.
func parsePageSize(s string, fs float64) (float64, float64, bool) {
	var w, h float64
	var lengths []float64
	landscape, portrait := false, false
	for tok := range strings.FieldsSeq(s) {
		switch tok {
		case "landscape":
			landscape = true
			continue
		case "portrait":
			portrait = true
			continue
		case "auto":
			continue
		}
		if pw, ph, ok := style.PageSize(tok); ok {
			w, h = pw, ph
			continue
		}
		l, ok := style.ParseLength(tok, fs, 0)
		if !ok || l <= 0 {
			return 0, 0, false
		}
		lengths = append(lengths, l)
	}
	switch len(lengths) {
	case 0:
	case 1:
		w, h = lengths[0], lengths[0]
	default:
		w, h = lengths[0], lengths[1]
	}
	if w == 0 || h == 0 {
		if !landscape && !portrait {
			return 0, 0, false
		}
		w, h, _ = style.PageSize("a4")
	}
	if landscape && w < h || portrait && w > h {
		w, h = h, w
	}
	return w, h, true
}

func firstOf(props map[string]css.Value, names ...string) css.Value {
	for _, n := range names {
		if v, ok := props[n]; ok {
			return v
		}
	}
	return css.Value{}
}

// printMedia reports whether media attribute value includes paged output.
func printMedia(media string) bool {
	media = strings.TrimSpace(media)
	if media == "" {
		return true
	}
	for m := range strings.SplitSeq(strings.ToLower(media), ",") {
		switch strings.TrimSpace(m) {
		case "all", "print", "pdf":
			return true
		}
	}
	return false
}
