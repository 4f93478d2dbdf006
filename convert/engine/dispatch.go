package engine

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"h2p/css"
	"h2p/diag"
	"h2p/markup"
	"h2p/story"
	"h2p/style"
)

// Handler processes element of a particular tag. Enter is called before
// children are visited, Exit after. Handlers run with a fresh fragment on
// top of the stack, changes to it are discarded when the element ends.
type Handler interface {
	Enter(c *Context, n *markup.Node) error
	Exit(c *Context, n *markup.Node) error
}

// HandlerFunc adapts plain function to Handler with no exit action.
type HandlerFunc func(c *Context, n *markup.Node) error

func (f HandlerFunc) Enter(c *Context, n *markup.Node) error { return f(c, n) }
func (HandlerFunc) Exit(*Context, *markup.Node) error       { return nil }

// tagHandler is configurable handler. Block elements start and end
// paragraphs, opaque ones hide their children from the walk. Exit of
// handler with skipOnError is not called when its Enter failed, such exit
// undoes state Enter may not have set up.
type tagHandler struct {
	block       bool
	opaque      bool
	skipOnError bool
	enter       func(c *Context, n *markup.Node) error
	exit        func(c *Context, n *markup.Node) error
}

func (h *tagHandler) Enter(c *Context, n *markup.Node) error {
	if h.enter == nil {
		return nil
	}
	return h.enter(c, n)
}

func (h *tagHandler) Exit(c *Context, n *markup.Node) error {
	if h.exit == nil {
		return nil
	}
	return h.exit(c, n)
}

// passThrough is used for unregistered tags.
var passThrough = &tagHandler{}

// Warning is handler error which does not fail the run.
type Warning struct {
	Msg string
}

func (w *Warning) Error() string {
	return w.Msg
}

func warnf(format string, args ...any) error {
	return &Warning{Msg: fmt.Sprintf(format, args...)}
}

// Dispatcher routes markup nodes to handlers by tag name.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher returns dispatcher with all built-in handlers registered.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler)}
	registerBuiltins(d)
	return d
}

// Register installs handler for tag, replacing previous one.
func (d *Dispatcher) Register(tag string, h Handler) {
	d.handlers[strings.ToLower(tag)] = h
}

// Handler returns handler for tag, pass through handler when tag is
// unknown.
func (d *Dispatcher) Handler(tag string) Handler {
	if h, ok := d.handlers[tag]; ok {
		return h
	}
	return passThrough
}

// Walk visits node and its subtree in document order.
func (d *Dispatcher) Walk(c *Context, n *markup.Node) {
	if err := c.ctx.Err(); err != nil {
		return
	}
	if n.Kind == markup.TextNode {
		c.AddText(n.Text)
		return
	}

	c.currentLine = n.Line
	h := d.Handler(n.Tag)
	block, opaque, skipOnError := false, false, false
	if th, ok := h.(*tagHandler); ok {
		block, opaque, skipOnError = th.block, th.opaque, th.skipOnError
	}

	props := c.props(n)
	switch strings.ToLower(props["display"].Raw) {
	case "none":
		return
	case "block", "list-item":
		block = true
	case "inline", "inline-block":
		block = false
	}

	var frame *story.Frame
	var saved *story.Story
	if id := n.AttrOr("id", ""); id != "" {
		if frame = c.statics[id]; frame != nil {
			c.Flush()
			saved = c.SwapStory(story.New())
		}
	}

	if isAlways(props["page-break-before"]) {
		c.Append(&story.PageBreak{})
	}

	c.Push()
	resetBox(c.top())
	applyStyles(c, c.top(), props)
	if a, ok := style.ParseAlign(n.AttrOr("align", "")); ok && block {
		c.top().Align = a
	}
	if block {
		c.openBlock()
	}
	if id := n.AttrOr("id", ""); id != "" && frame == nil {
		c.RegisterAnchor(id)
	}

	entered := d.call(c, n, h.Enter)
	if !opaque {
		for _, child := range n.Children {
			d.Walk(c, child)
		}
	}
	if entered || !skipOnError {
		c.currentLine = n.Line
		d.call(c, n, h.Exit)
	}

	if block {
		c.closeBlock()
	}
	c.Pop()

	if frame != nil {
		c.Flush()
		frame.Static = c.SwapStory(saved)
	}
	if isAlways(props["page-break-after"]) {
		c.Append(&story.PageBreak{})
	}
}

// call runs handler step converting failures into diagnostics. It returns
// false when the step failed. Children of such node are still visited,
// whatever the step left on the fragment is dropped with it.
func (d *Dispatcher) call(c *Context, n *markup.Node, step func(*Context, *markup.Node) error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Debug("Handler panic", zap.String("tag", n.Tag), zap.Any("panic", r))
			c.diag.Error(n.Line, diag.CodeHandler, "<%s>: %v", n.Tag, r)
			ok = false
		}
	}()

	err := step(c, n)
	if err == nil {
		return true
	}
	var w *Warning
	if errors.As(err, &w) {
		c.diag.Warn(n.Line, diag.CodeHandler, "<%s>: %s", n.Tag, w.Msg)
	} else {
		c.diag.Error(n.Line, diag.CodeHandler, "<%s>: %v", n.Tag, err)
	}
	return false
}

// props returns cascaded declarations for element, computed once.
func (c *Context) props(n *markup.Node) map[string]css.Value {
	if p, ok := c.computed[n]; ok {
		return p
	}
	p := c.cascade.Compute(n)
	c.computed[n] = p
	return p
}

func isAlways(v css.Value) bool {
	kw := strings.ToLower(strings.TrimSpace(v.Raw))
	return kw == "always" || kw == "page" || kw == "left" || kw == "right"
}
