package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rupor-github/gencfg"
)

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	doc := cfg.Document
	if doc.Page.Size != "a4" {
		t.Errorf("Page.Size = %q, want a4", doc.Page.Size)
	}
	if doc.Page.Orientation != PageOrientationPortrait {
		t.Errorf("Page.Orientation = %v, want portrait", doc.Page.Orientation)
	}
	if got := doc.Page.MarginsArray(); got != [4]float64{36, 36, 36, 36} {
		t.Errorf("Page.MarginsArray() = %v, want all 36", got)
	}
	if doc.Font.Name != "helvetica" || doc.Font.Size != 10 {
		t.Errorf("Font = %+v, want helvetica 10", doc.Font)
	}
	if doc.ImageZoom != 1 {
		t.Errorf("ImageZoom = %v, want 1", doc.ImageZoom)
	}
	if doc.Fallback != FallbackModeRaise {
		t.Errorf("Fallback = %v, want raise", doc.Fallback)
	}
	if !doc.MultiPass || !doc.Compress {
		t.Error("MultiPass and Compress must be enabled by default")
	}
	if doc.Fetch.Enable {
		t.Error("network access must be disabled by default")
	}
	if doc.Fetch.Timeout != 30*time.Second {
		t.Errorf("Fetch.Timeout = %v, want 30s", doc.Fetch.Timeout)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("console level = %q, want normal", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `version: 1
document:
  page:
    size: letter
    orientation: landscape
    margins:
      top: 10
      left: 20
  font:
    name: times
    size: 12
  image_zoom: 0.5
  fallback: report
  multi_pass: false
  fetch:
    enable: true
    timeout: 5s
    authorization: Bearer abc
  output_name_template: "{{ .Title | lower }}"
logging:
  console:
    level: debug
  file:
    level: debug
    destination: ` + filepath.Join(tmpDir, "test.log") + `
    mode: append
reporting:
  destination: ` + filepath.Join(tmpDir, "report.zip") + `
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	doc := cfg.Document
	if doc.Page.Size != "letter" || !doc.Page.Orientation.Landscape() {
		t.Errorf("Page = %+v, want landscape letter", doc.Page)
	}
	if got := doc.Page.MarginsArray(); got != [4]float64{10, 36, 36, 20} {
		t.Errorf("Page.MarginsArray() = %v, want [10 36 36 20]", got)
	}
	if doc.Font.Name != "times" || doc.Font.Size != 12 {
		t.Errorf("Font = %+v, want times 12", doc.Font)
	}
	if doc.ImageZoom != 0.5 {
		t.Errorf("ImageZoom = %v, want 0.5", doc.ImageZoom)
	}
	if doc.Fallback != FallbackModeReport {
		t.Errorf("Fallback = %v, want report", doc.Fallback)
	}
	if doc.MultiPass {
		t.Error("MultiPass must be disabled by configuration file")
	}
	if !doc.Compress {
		t.Error("Compress must keep default value")
	}
	if !doc.Fetch.Enable || doc.Fetch.Timeout != 5*time.Second {
		t.Errorf("Fetch = %+v, want enabled with 5s timeout", doc.Fetch)
	}
	if doc.Fetch.Authorization != "Bearer abc" {
		t.Errorf("Fetch.Authorization = %q, want %q", doc.Fetch.Authorization, "Bearer abc")
	}
	if doc.OutputNameTemplate != "{{ .Title | lower }}" {
		t.Errorf("OutputNameTemplate = %q, must be kept unexpanded", doc.OutputNameTemplate)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "invalid yaml",
			content: `version: 1
document:
  multi_pass: true
  invalid indent
`,
		},
		{
			name: "unknown field",
			content: `version: 1
unknown_field: value
`,
		},
		{
			name:    "wrong version",
			content: "version: 2\n",
		},
		{
			name: "unknown fallback",
			content: `version: 1
document:
  fallback: ignore
`,
		},
		{
			name: "unknown page size",
			content: `version: 1
document:
  page:
    size: tabloid
`,
		},
		{
			name: "zero zoom",
			content: `version: 1
document:
  image_zoom: 0
`,
		},
		{
			name: "negative margin",
			content: `version: 1
document:
  page:
    margins:
      top: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := LoadConfiguration(configPath); err == nil {
				t.Error("LoadConfiguration() expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {}

	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Prepare() returned empty data")
	}
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump_HidesSecrets(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	cfg.Document.Fetch.Authorization = "Bearer very-secret"

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), "very-secret") {
		t.Error("Dump() must not reveal secrets")
	}
	if !strings.Contains(string(data), SecretStringValue) {
		t.Error("Dump() must mark secret fields")
	}
	if !strings.Contains(string(data), "fallback: raise") {
		t.Errorf("Dump() must write enums as text, got:\n%s", data)
	}
}

func TestEnums(t *testing.T) {
	tests := []struct {
		in      string
		want    FallbackMode
		wantErr bool
	}{
		{"raise", FallbackModeRaise, false},
		{"Report", FallbackModeReport, false},
		{"REPORT", FallbackModeReport, false},
		{" report ", FallbackModeRaise, true},
		{"ignore", FallbackModeRaise, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFallbackMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFallbackMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFallbackMode) {
				t.Errorf("ParseFallbackMode(%q) error = %v, want ErrInvalidFallbackMode", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFallbackMode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if got := FallbackMode(7).String(); got != "FallbackMode(7)" {
		t.Errorf("String() = %q, want FallbackMode(7)", got)
	}
	if FallbackMode(7).IsValid() || !FallbackModeReport.IsValid() {
		t.Error("IsValid() reports wrong values")
	}
	if got := strings.Join(PageOrientationNames(), ","); got != "portrait,landscape" {
		t.Errorf("PageOrientationNames() = %q", got)
	}
	if _, err := ParsePageOrientation("sideways"); !errors.Is(err, ErrInvalidPageOrientation) {
		t.Errorf("ParsePageOrientation() error = %v", err)
	}
	if !MustParsePageOrientation("Landscape").Landscape() {
		t.Error("MustParsePageOrientation(Landscape) is not landscape")
	}

	t.Run("must parse panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Error("MustParseFallbackMode should have panicked")
			}
		}()
		MustParseFallbackMode("invalid")
	})

	t.Run("text round trip", func(t *testing.T) {
		var o PageOrientation
		if err := o.UnmarshalText([]byte("landscape")); err != nil || o != PageOrientationLandscape {
			t.Fatalf("UnmarshalText() = %v, %v", o, err)
		}
		if b, err := o.MarshalText(); err != nil || string(b) != "landscape" {
			t.Errorf("MarshalText() = %q, %v", b, err)
		}
	})
}
