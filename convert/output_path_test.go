package convert

import (
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"h2p/config"
	"h2p/state"
	"h2p/story"
)

func setupTestEnvForOutputPath(t *testing.T, noDirs bool, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Document.FileNameTransliterate = transliterate
	cfg.Document.OutputNameTemplate = template

	return &state.LocalEnv{
		Log:    logger,
		Cfg:    cfg,
		NoDirs: noDirs,
	}
}

func testDocument() *story.Document {
	return &story.Document{
		ID: "doc-id",
		Meta: story.Metadata{
			Title:    "Test Book",
			Author:   "John Doe",
			Keywords: "go, pdf",
			Language: "en",
		},
	}
}

func TestBuildOutputPath(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		noDirs        bool
		transliterate bool
		template      string
		want          string
	}{
		{"no dirs", "books/testbook.html", true, false, "", filepath.Join("/output", "testbook.pdf")},
		{"keep dirs", "books/testbook.html", false, false, "", filepath.Join("/output", "books", "testbook.pdf")},
		{"transliterate source", "Книга.htm", true, true, "", filepath.Join("/output", "kniga.pdf")},
		{"template", "x.html", true, false, "{{ .Author }}/{{ .Title }}", filepath.Join("/output", "John Doe", "Test Book.pdf")},
		{"template with dirs", "sub/x.html", false, false, "{{ .Title }}", filepath.Join("/output", "sub", "Test Book.pdf")},
		{"template transliterated", "x.html", true, true, "{{ .Author }}/{{ .Title }}", filepath.Join("/output", "john-doe", "test-book.pdf")},
		{"template escaping output", "x.html", true, false, "../../{{ .Title }}", filepath.Join("/output", "Test Book.pdf")},
		{"empty expansion", "x.html", true, false, "{{ .Subject }}", filepath.Join("/output", "x.pdf")},
		{"broken template", "x.html", true, false, "{{ .Title", filepath.Join("/output", "x.pdf")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, tt.noDirs, tt.transliterate, tt.template)
			if got := buildOutputPath(testDocument(), tt.src, "/output", env); got != tt.want {
				t.Errorf("buildOutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildOutputPath_NoDocument(t *testing.T) {
	env := setupTestEnvForOutputPath(t, true, false, "{{ .SourceFile }}-{{ .Title }}")
	if got, want := buildOutputPath(nil, "page.html", "/output", env), filepath.Join("/output", "page-.pdf"); got != want {
		t.Errorf("buildOutputPath() = %q, want %q", got, want)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"simple path", "author/book", []string{"author", "book"}},
		{"single segment", "book", []string{"book"}},
		{"with trailing slash", "author/book/", []string{"author", "book"}},
		{"three levels", "genre/author/book", []string{"genre", "author", "book"}},
		{"absolute", "/author/book", []string{"author", "book"}},
		{"dots dropped", "./a/../b", []string{"a", "b"}},
		{"blank segments", "a/ /b", []string{"a", "b"}},
		{"empty path", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := splitPath(filepath.FromSlash(tt.path)); !slices.Equal(result, tt.expected) {
				t.Errorf("splitPath() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestCleanPathSegment(t *testing.T) {
	tests := []struct {
		name          string
		segment       string
		transliterate bool
		expected      string
	}{
		{"simple segment", "author", false, "author"},
		{"with spaces", "My Book", false, "My Book"},
		{"transliterate cyrillic", "Автор", true, "avtor"},
		{"special chars", "book:name", false, "bookname"},
		{"leading dots", "..hidden", false, "hidden"},
		{"nothing left", "...", false, "_bad_file_name_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := cleanPathSegment(tt.segment, env)
			if result != tt.expected {
				t.Errorf("cleanPathSegment() = %q, want %q", result, tt.expected)
			}
		})
	}
}
