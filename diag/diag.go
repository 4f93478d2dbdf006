// Package diag keeps per-run conversion diagnostics.
//
// A Log is owned by exactly one conversion run. Its error counter decides
// whether the run succeeded, so every component reports problems here instead
// of returning them when the run can continue.
package diag

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Severity of a diagnostics entry.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Codes used by the engine components. Codes are free-form, these are the
// ones the engine itself produces.
const (
	CodeMarkup     = "markup"
	CodeCSS        = "css"
	CodeHandler    = "handler"
	CodeResource   = "resource"
	CodeImage      = "image"
	CodeTable      = "table"
	CodeAnchor     = "anchor"
	CodeBackground = "background"
	CodeRender     = "render"
	CodeOutput     = "output"
)

// Entry is a single diagnostics record. Line is the source line of the
// markup node which caused it, 0 when unknown.
type Entry struct {
	Severity Severity
	Line     int
	Message  string
	Code     string
}

func (e Entry) String() string {
	var sb strings.Builder
	sb.WriteString(strings.ToUpper(e.Severity.String()))
	if e.Line > 0 {
		fmt.Fprintf(&sb, " line %d", e.Line)
	}
	if e.Code != "" {
		fmt.Fprintf(&sb, " [%s]", e.Code)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}

// Log is an append-only ordered sequence of entries with error and warning
// counters. It is not safe for concurrent use, runs are single threaded.
type Log struct {
	entries  []Entry
	errors   int
	warnings int
	log      *zap.Logger
}

// New returns empty log mirroring entries to the provided logger.
func New(log *zap.Logger) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{log: log}
}

// Add appends entry and updates counters.
func (l *Log) Add(e Entry) {
	l.entries = append(l.entries, e)

	fields := []zap.Field{zap.String("code", e.Code)}
	if e.Line > 0 {
		fields = append(fields, zap.Int("line", e.Line))
	}
	switch e.Severity {
	case SeverityError:
		l.errors++
		l.log.Error(e.Message, fields...)
	case SeverityWarning:
		l.warnings++
		l.log.Warn(e.Message, fields...)
	default:
		l.log.Debug(e.Message, fields...)
	}
}

func (l *Log) Error(line int, code, format string, args ...any) {
	l.Add(Entry{Severity: SeverityError, Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (l *Log) Warn(line int, code, format string, args ...any) {
	l.Add(Entry{Severity: SeverityWarning, Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (l *Log) Debug(line int, code, format string, args ...any) {
	l.Add(Entry{Severity: SeverityDebug, Line: line, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Errors returns number of error entries.
func (l *Log) Errors() int { return l.errors }

// Warnings returns number of warning entries.
func (l *Log) Warnings() int { return l.warnings }

// Failed reports whether at least one error was logged.
func (l *Log) Failed() bool { return l.errors > 0 }

// Entries returns a copy of all entries in order of arrival.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Filter returns entries with severity at or above min.
func (l *Log) Filter(min Severity) []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Severity >= min {
			out = append(out, e)
		}
	}
	return out
}

// WriteTo writes human readable form of the log, one entry per line,
// implementing io.WriterTo.
func (l *Log) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range l.entries {
		n, err := fmt.Fprintln(w, e.String())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
