// Package engine converts parsed markup into a paginated document: it
// walks the tree with per-tag handlers, keeps cascading style on a
// fragment stack, builds tables and hands the resulting story to a
// pagination backend.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"h2p/diag"
	"h2p/resource"
	"h2p/story"
	"h2p/style"
)

var (
	// ErrConversionFailed is returned in raising mode when the run logged
	// at least one error.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrEmptyInput is returned when source has no content at all.
	ErrEmptyInput = errors.New("empty input")
)

// FallbackMode selects what happens when conversion logs errors.
type FallbackMode int

const (
	// FallbackRaise fails the call.
	FallbackRaise FallbackMode = iota
	// FallbackReport replaces output with a document listing diagnostics.
	FallbackReport
)

func (m FallbackMode) String() string {
	switch m {
	case FallbackRaise:
		return "raise"
	case FallbackReport:
		return "report"
	default:
		return fmt.Sprintf("FallbackMode(%d)", int(m))
	}
}

// PageSetup is default page geometry used when the document does not
// declare its own.
type PageSetup struct {
	Size      string // a4, letter, ... ignored when Width and Height are set
	Width     float64
	Height    float64
	Landscape bool
	Margins   [4]float64 // top, right, bottom, left in points
}

// Dimensions returns page width and height in points.
func (ps PageSetup) Dimensions() (float64, float64) {
	w, h := ps.Width, ps.Height
	if w <= 0 || h <= 0 {
		var ok bool
		if w, h, ok = style.PageSize(ps.Size); !ok {
			w, h, _ = style.PageSize("a4")
		}
	}
	if ps.Landscape && w < h {
		w, h = h, w
	}
	return w, h
}

// Options control single conversion run.
type Options struct {
	// BasePath is directory relative references are resolved against, it
	// may also be http(s) URL.
	BasePath string
	// DefaultCSS replaces embedded default stylesheet when not empty.
	DefaultCSS []byte
	// UserCSS is applied between default stylesheet and document styles.
	UserCSS      []byte
	Page         PageSetup
	FontName     string
	BaseFontSize float64
	ImageZoom    float64
	Fallback     FallbackMode
	MultiPass    bool
	Fetch        resource.FetchOptions
	Encoding     string
	TempPrefix   string
	// Handlers replace or extend built-in tag handlers.
	Handlers map[string]Handler
}

func (o Options) withDefaults() Options {
	if o.BaseFontSize <= 0 {
		o.BaseFontSize = 10
	}
	if o.ImageZoom <= 0 {
		o.ImageZoom = 1
	}
	if o.FontName == "" {
		o.FontName = style.FontHelvetica
	}
	if len(o.DefaultCSS) == 0 {
		o.DefaultCSS = defaultCSS
	}
	if o.TempPrefix == "" {
		o.TempPrefix = "h2p"
	}
	return o
}

// RenderInfo describes rendered output.
type RenderInfo struct {
	Pages int
	// Problems backend worked around, recorded as run warnings.
	Problems []Problem
}

// Problem is non fatal backend failure.
type Problem struct {
	Code string
	Msg  string
}

// Renderer paginates document and writes output bytes.
type Renderer interface {
	Render(ctx context.Context, doc *story.Document, w io.Writer) (RenderInfo, error)
}

// MultiPass is optional Renderer capability: dry pagination run which
// reports page positions without producing output.
type MultiPass interface {
	Paginate(ctx context.Context, doc *story.Document) (story.Pagination, error)
}

// BackgroundPainter is optional Renderer capability: drawing pages of
// another document beneath rendered pages.
type BackgroundPainter interface {
	SetBackgrounds(bgs []story.Background)
}

// Result of a conversion run.
type Result struct {
	Errors   int
	Warnings int
	Log      *diag.Log
	Pages    int
	Document *story.Document
	// Report is set when output was replaced by diagnostics report.
	Report bool
}

// Error is returned when conversion fails, it carries result of the run so
// caller can examine diagnostics.
type Error struct {
	Result *Result
	Err    error
}

func (e *Error) Error() string {
	if e.Result != nil {
		return fmt.Sprintf("%v (errors: %d, warnings: %d)", e.Err, e.Result.Errors, e.Result.Warnings)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
