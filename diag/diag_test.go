package diag

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestLog_Counters(t *testing.T) {
	l := New(zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1))))

	l.Debug(0, CodeMarkup, "parsed %d nodes", 10)
	l.Warn(3, CodeImage, "image %q not found", "a.png")
	l.Warn(4, CodeTable, "empty table")
	l.Error(7, CodeHandler, "handler failed")

	if l.Errors() != 1 {
		t.Errorf("Errors() = %d, want 1", l.Errors())
	}
	if l.Warnings() != 2 {
		t.Errorf("Warnings() = %d, want 2", l.Warnings())
	}
	if !l.Failed() {
		t.Error("Failed() = false, want true")
	}
	if got := len(l.Entries()); got != 4 {
		t.Errorf("len(Entries()) = %d, want 4", got)
	}
	if got := len(l.Filter(SeverityWarning)); got != 3 {
		t.Errorf("len(Filter(warning)) = %d, want 3", got)
	}
}

func TestLog_EntriesAreCopied(t *testing.T) {
	l := New(nil)
	l.Warn(1, CodeCSS, "first")

	entries := l.Entries()
	entries[0].Message = "changed"

	if l.Entries()[0].Message != "first" {
		t.Error("Entries() must return a copy")
	}
}

func TestLog_WriteTo(t *testing.T) {
	l := New(nil)
	l.Warn(12, CodeResource, "missing %s", "x.css")
	l.Error(0, CodeRender, "backend rejected story")

	var sb strings.Builder
	if _, err := l.WriteTo(&sb); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}

	want := "WARNING line 12 [resource]: missing x.css\nERROR [render]: backend rejected story\n"
	if sb.String() != want {
		t.Errorf("WriteTo() = %q, want %q", sb.String(), want)
	}
}

func TestLog_Empty(t *testing.T) {
	l := New(nil)
	if l.Failed() || l.Errors() != 0 || l.Warnings() != 0 {
		t.Error("new log must have zero counters")
	}
}
