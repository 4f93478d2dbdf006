package markup

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Options controls input decoding.
type Options struct {
	// Encoding overrides detected input encoding when not empty (any label
	// known to WHATWG encoding standard).
	Encoding string
	// ContentType is used as a hint for encoding detection, for example
	// header of HTTP response the document came from.
	ContentType string
}

// extension tags which never have content, parser would otherwise nest
// everything that follows inside them.
var voidExtensions = map[string]bool{
	"pdf:nextpage":     true,
	"pdf:nexttemplate": true,
	"pdf:pagenumber":   true,
	"pdf:pagecount":    true,
	"pdf:toc":          true,
	"pdf:spacer":       true,
	"pdf:nextframe":    true,
}

// how far ahead of the current position a parsed element is searched for
// among source tags, implied elements (tbody, head) are never found
const lineLookahead = 8

// Parse reads HTML document and returns its root (html) element. Parsing is
// lenient, malformed markup is repaired the same way browsers do.
func Parse(r io.Reader, opts Options, log *zap.Logger) (*Node, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read document: %w", err)
	}

	data, name, err := decode(raw, opts)
	if err != nil {
		return nil, err
	}
	log.Debug("Document decoded", zap.String("encoding", name), zap.Int("size", len(data)))

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}

	b := &builder{lines: scanLines(data)}
	var root *Node
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			root = b.element(c)
			break
		}
	}
	if root == nil {
		root = NewElement("html", nil)
	}
	return root, nil
}

func decode(raw []byte, opts Options) ([]byte, string, error) {
	if opts.Encoding != "" {
		enc, name := charset.Lookup(opts.Encoding)
		if enc == nil {
			return nil, "", fmt.Errorf("unknown encoding %q", opts.Encoding)
		}
		data, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, "", fmt.Errorf("unable to decode document as %s: %w", name, err)
		}
		return data, name, nil
	}

	enc, name, _ := charset.DetermineEncoding(raw, opts.ContentType)
	if name == "utf-8" {
		return bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")), name, nil
	}
	data, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, "", fmt.Errorf("unable to decode document as %s: %w", name, err)
	}
	return data, name, nil
}

type tagLine struct {
	tag  string
	line int
}

// scanLines lists start tags of the source with their line numbers.
func scanLines(data []byte) []tagLine {
	var out []tagLine
	z := html.NewTokenizer(bytes.NewReader(data))
	line := 1
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		newlines := bytes.Count(z.Raw(), []byte{'\n'})
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			name, _ := z.TagName()
			out = append(out, tagLine{tag: strings.ToLower(string(name)), line: line})
		}
		line += newlines
	}
}

type builder struct {
	lines []tagLine
	pos   int
	last  int
}

func (b *builder) lineOf(tag string) int {
	end := min(b.pos+lineLookahead, len(b.lines))
	for i := b.pos; i < end; i++ {
		if b.lines[i].tag == tag {
			b.pos = i + 1
			b.last = b.lines[i].line
			return b.last
		}
	}
	return b.last
}

func (b *builder) element(h *html.Node) *Node {
	attrs := make(map[string]string, len(h.Attr))
	for _, a := range h.Attr {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			key = a.Namespace + ":" + key
		}
		attrs[key] = a.Val
	}
	n := NewElement(h.Data, attrs)
	n.Line = b.lineOf(n.Tag)
	b.children(n, h)
	return n
}

func (b *builder) children(n *Node, h *html.Node) {
	for c := h.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			t := NewText(c.Data)
			t.Line = b.last
			n.AppendChild(t)
		case html.ElementNode:
			child := b.element(c)
			n.AppendChild(child)
			if voidExtensions[child.Tag] && len(child.Children) > 0 {
				// hoist content the parser nested into void extension tag
				for _, gc := range child.Children {
					n.AppendChild(gc)
				}
				child.Children = nil
			}
		}
	}
}
