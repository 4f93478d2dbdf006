package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	MarginsConfig struct {
		Top    float64 `yaml:"top" validate:"gte=0"`
		Right  float64 `yaml:"right" validate:"gte=0"`
		Bottom float64 `yaml:"bottom" validate:"gte=0"`
		Left   float64 `yaml:"left" validate:"gte=0"`
	}

	PageConfig struct {
		Size        string          `yaml:"size" validate:"omitempty,oneof=a3 a4 a5 b5 letter legal"`
		Width       float64         `yaml:"width,omitempty" validate:"gte=0"`
		Height      float64         `yaml:"height,omitempty" validate:"gte=0"`
		Orientation PageOrientation `yaml:"orientation" validate:"gte=0"`
		Margins     MarginsConfig   `yaml:"margins"`
	}

	FontConfig struct {
		Name string  `yaml:"name" validate:"required"`
		Size float64 `yaml:"size" validate:"gt=0,lte=144"`
	}

	FetchConfig struct {
		Enable        bool          `yaml:"enable"`
		Timeout       time.Duration `yaml:"timeout" validate:"gte=0"`
		UserAgent     string        `yaml:"user_agent,omitempty"`
		Authorization SecretString  `yaml:"authorization,omitempty"`
	}

	DocumentConfig struct {
		StylesheetPath        string       `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		Encoding              string       `yaml:"encoding,omitempty"`
		Page                  PageConfig   `yaml:"page"`
		Font                  FontConfig   `yaml:"font"`
		ImageZoom             float64      `yaml:"image_zoom" validate:"gt=0"`
		Fallback              FallbackMode `yaml:"fallback" validate:"gte=0"`
		MultiPass             bool         `yaml:"multi_pass"`
		Compress              bool         `yaml:"compress"`
		Fetch                 FetchConfig  `yaml:"fetch"`
		OutputNameTemplate    string       `yaml:"output_name_template"`
		FileNameTransliterate bool         `yaml:"file_name_transliterate"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

// Dump returns effective configuration with secrets masked.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// MarginsArray returns page margins as top, right, bottom, left.
func (p *PageConfig) MarginsArray() [4]float64 {
	m := p.Margins
	return [4]float64{m.Top, m.Right, m.Bottom, m.Left}
}
