package css

import (
	"bytes"
	"strings"

	"go.uber.org/zap"
)

// extractPages cuts @page blocks out of the stylesheet source. Removed text
// is replaced with spaces keeping line breaks, so the rest of the source
// keeps its positions.
func (p *Parser) extractPages(data []byte) ([]byte, []PageRule) {
	blocks := findAtBlocks(data, "@page")
	if len(blocks) == 0 {
		return data, nil
	}

	out := bytes.Clone(data)
	pages := make([]PageRule, 0, len(blocks))
	for _, b := range blocks {
		page := PageRule{Properties: map[string]Value{}}
		page.Name, page.Pseudo = parsePagePrelude(string(data[b.prelude:b.open]))

		body := bytes.Clone(data[b.open+1 : b.close])
		for _, f := range findAtBlocks(body, "@frame") {
			props := p.ParseInline(string(body[f.open+1 : f.close]))
			name := strings.TrimSpace(string(body[f.prelude:f.open]))
			page.Frames = append(page.Frames, FrameRule{Name: name, Properties: props})
			blank(body[f.start : f.close+1])
		}
		for k, v := range p.ParseInline(string(body)) {
			page.Properties[k] = v
		}

		p.log.Debug("Parsed @page", zap.String("name", page.Name), zap.Int("frames", len(page.Frames)))
		pages = append(pages, page)
		blank(out[b.start : b.close+1])
	}
	return out, pages
}

// parsePagePrelude splits "name:first" into name and pseudo class.
func parsePagePrelude(s string) (string, string) {
	name, pseudo, _ := strings.Cut(strings.TrimSpace(s), ":")
	return strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(pseudo))
}

type atBlock struct {
	start   int // position of '@'
	prelude int // first byte after keyword
	open    int // position of '{'
	close   int // position of matching '}'
}

// findAtBlocks locates top level blocks started by keyword, skipping
// comments and strings.
func findAtBlocks(data []byte, keyword string) []atBlock {
	var blocks []atBlock
	depth := 0
	for i := 0; i < len(data); i++ {
		switch c := data[i]; c {
		case '/':
			if i+1 < len(data) && data[i+1] == '*' {
				end := bytes.Index(data[i+2:], []byte("*/"))
				if end < 0 {
					return blocks
				}
				i += end + 3
			}
		case '"', '\'':
			i = skipString(data, i)
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case '@':
			if depth != 0 || !hasKeyword(data[i:], keyword) {
				continue
			}
			b := atBlock{start: i, prelude: i + len(keyword)}
			open := bytes.IndexByte(data[b.prelude:], '{')
			if open < 0 {
				return blocks
			}
			b.open = b.prelude + open
			b.close = matchBrace(data, b.open)
			if b.close < 0 {
				return blocks
			}
			blocks = append(blocks, b)
			i = b.close
		}
	}
	return blocks
}

func hasKeyword(data []byte, keyword string) bool {
	if len(data) < len(keyword) || !strings.EqualFold(string(data[:len(keyword)]), keyword) {
		return false
	}
	if len(data) == len(keyword) {
		return true
	}
	next := data[len(keyword)]
	return !(next == '-' || next == '_' || (next|0x20 >= 'a' && next|0x20 <= 'z') || (next >= '0' && next <= '9'))
}

// matchBrace returns position of brace closing the one at open, -1 when
// source ends first.
func matchBrace(data []byte, open int) int {
	depth := 0
	for i := open; i < len(data); i++ {
		switch data[i] {
		case '"', '\'':
			i = skipString(data, i)
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func skipString(data []byte, start int) int {
	q := data[start]
	for i := start + 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case q, '\n':
			return i
		}
	}
	return len(data) - 1
}

func blank(b []byte) {
	for i := range b {
		if b[i] != '\n' {
			b[i] = ' '
		}
	}
}
