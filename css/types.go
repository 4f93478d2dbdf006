package css

import (
	"regexp"
	"strings"
	"unicode"
)

// MediaQuery represents a parsed @media query condition. Output is always
// paged, so only print-like media types match.
type MediaQuery struct {
	Raw     string // Original media query string
	Types   []string
	Negated bool
}

// Evaluate returns true if rules of the block apply to paged output.
func (mq MediaQuery) Evaluate() bool {
	if len(mq.Types) == 0 {
		return !mq.Negated
	}
	matches := false
	for _, t := range mq.Types {
		switch t {
		case "all", "print", "pdf":
			matches = true
		}
	}
	if mq.Negated {
		return !matches
	}
	return matches
}

// Value represents a parsed CSS property value.
type Value struct {
	Raw       string  // Original CSS value string (e.g., "1.2em", "bold", "#ff0000")
	Value     float64 // Numeric value if applicable
	Unit      string  // Unit if applicable: "em", "px", "%", "pt", etc.
	Keyword   string  // Keyword if applicable: "bold", "italic", "center", etc.
	Important bool
}

// IsNumeric returns true if the value has a numeric component.
// This includes explicit zero values like "0" or "0px".
func (v Value) IsNumeric() bool {
	if v.Unit != "" {
		return true
	}
	if v.Value != 0 && v.Keyword == "" {
		return true
	}
	if v.Raw != "" && v.Keyword == "" {
		firstChar := rune(v.Raw[0])
		if unicode.IsDigit(firstChar) || firstChar == '.' || firstChar == '-' || firstChar == '+' {
			return true
		}
	}
	return false
}

// IsKeyword returns true if the value is a keyword (no numeric component).
func (v Value) IsKeyword() bool {
	return v.Keyword != "" && v.Unit == ""
}

// Selector represents a parsed CSS selector with its components. Compound
// selectors (p.note#x) keep all parts, descendant selectors chain through
// Ancestor.
type Selector struct {
	Raw       string    // Original selector string
	Element   string    // Element name (e.g., "p", "h1"), "" or "*" for any
	ID        string    // Id without hash
	Classes   []string  // Class names without dot
	Ancestor  *Selector // Ancestor selector for descendant selectors (e.g., "p code" -> Ancestor is "p")
	Supported bool
}

// IsSimple returns true if this selector can be matched.
func (s Selector) IsSimple() bool {
	return s.Supported && (s.Element != "" || s.ID != "" || len(s.Classes) > 0)
}

// IsDescendant returns true if this is a descendant selector.
func (s Selector) IsDescendant() bool {
	return s.Ancestor != nil
}

// Specificity returns (ids, classes, elements) counts packed into a
// single comparable number.
func (s Selector) Specificity() int {
	spec := 0
	for cur := &s; cur != nil; cur = cur.Ancestor {
		if cur.ID != "" {
			spec += 10000
		}
		spec += 100 * len(cur.Classes)
		if cur.Element != "" && cur.Element != "*" {
			spec++
		}
	}
	return spec
}

// Rule represents a single CSS rule (selector + properties).
type Rule struct {
	Selector   Selector         // Parsed selector
	Properties map[string]Value // Property name -> value
	SourceLine int              // Line number in source for error reporting
}

// GetProperty returns the value for a property, or empty Value if not found.
func (r Rule) GetProperty(name string) (Value, bool) {
	v, ok := r.Properties[name]
	return v, ok
}

// FontFace represents an @font-face declaration.
type FontFace struct {
	Family string // font-family value
	Src    string // src value (URL or local reference)
	Style  string // font-style: normal, italic
	Weight string // font-weight: normal, bold, 400, 700
}

// FrameRule is @frame block nested in @page.
type FrameRule struct {
	Name       string
	Properties map[string]Value
}

// PageRule represents an @page block.
type PageRule struct {
	Name       string // empty for the default page
	Pseudo     string // first, left, right
	Properties map[string]Value
	Frames     []FrameRule
}

// StylesheetItem is a single top-level item in a stylesheet.
// Exactly one of the fields is non-nil.
type StylesheetItem struct {
	Rule       *Rule       // A plain rule (selector + properties)
	MediaBlock *MediaBlock // A @media block containing nested rules
	FontFace   *FontFace   // A @font-face declaration
	Page       *PageRule   // A @page declaration
	Import     *string     // An @import URL
}

// MediaBlock represents a @media block with its query and nested rules.
type MediaBlock struct {
	Query MediaQuery
	Rules []Rule
}

// Stylesheet represents a parsed CSS stylesheet.
type Stylesheet struct {
	Items    []StylesheetItem // All top-level items in source order
	Warnings []string         // Warnings for unsupported features
}

// Imports returns all @import URLs from the stylesheet in source order.
func (s *Stylesheet) Imports() []string {
	var urls []string
	for _, item := range s.Items {
		if item.Import != nil {
			urls = append(urls, *item.Import)
		}
	}
	return urls
}

// FontFaces returns all @font-face declarations from the stylesheet in source order.
// Only font-faces with a non-empty Family are included.
func (s *Stylesheet) FontFaces() []FontFace {
	var faces []FontFace
	for _, item := range s.Items {
		if item.FontFace != nil && item.FontFace.Family != "" {
			faces = append(faces, *item.FontFace)
		}
	}
	return faces
}

// Pages returns all @page declarations in source order.
func (s *Stylesheet) Pages() []PageRule {
	var pages []PageRule
	for _, item := range s.Items {
		if item.Page != nil {
			pages = append(pages, *item.Page)
		}
	}
	return pages
}

// Rules returns rules applicable to paged output in source order, rules of
// matching @media blocks included.
func (s *Stylesheet) Rules() []Rule {
	var rules []Rule
	for _, item := range s.Items {
		switch {
		case item.Rule != nil:
			rules = append(rules, *item.Rule)
		case item.MediaBlock != nil && item.MediaBlock.Query.Evaluate():
			rules = append(rules, item.MediaBlock.Rules...)
		}
	}
	return rules
}

// RulesBySelector returns all top-level rules matching the given selector string.
func (s *Stylesheet) RulesBySelector(selector string) []Rule {
	var matches []Rule
	for _, item := range s.Items {
		if item.Rule != nil && item.Rule.Selector.Raw == selector {
			matches = append(matches, *item.Rule)
		}
	}
	return matches
}

var urlPattern = regexp.MustCompile(`url\s*\(\s*(?:["']([^"']*)["']|([^)"]*))\s*\)`)

// URL extracts reference from url() value. Plain strings are returned as
// is, so both `url(a.png)` and `"a.png"` give "a.png".
func URL(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if sub := urlPattern.FindStringSubmatch(value); sub != nil {
		u := sub[1]
		if u == "" {
			u = sub[2]
		}
		u = strings.TrimSpace(u)
		return u, u != ""
	}
	if strings.EqualFold(value, "none") || value == "" {
		return "", false
	}
	u := unquote(value)
	return u, u != ""
}
