// Package config — .metatrans.yaml configuration file support.
//
// When a .metatrans.yaml file exists in the working directory, it provides
// defaults for every run setting; command-line flags override individual
// values. Without the file, built-in defaults apply.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".metatrans.yaml"

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// Config is the top-level .metatrans.yaml structure.
type Config struct {
	// Input is the CSV export to translate.
	Input string `yaml:"input"`
	// Output is the path the augmented CSV is written to.
	Output string `yaml:"output"`
	// SourceLang is the source language code.
	SourceLang string `yaml:"source_lang"`
	// TargetLang is the target language code.
	TargetLang string `yaml:"target_lang"`
	// Provider selects the translation service (google, openai).
	Provider string `yaml:"provider"`
	// Model overrides the provider model (openai only).
	Model string `yaml:"model,omitempty"`
	// MaxRetries is the attempt budget per unit of text.
	MaxRetries int `yaml:"max_retries,omitempty"`
	// RequestDelay is the base delay before each API request.
	RequestDelay Duration `yaml:"request_delay,omitempty"`
	// Memory is the translation memory database path ("" disables it).
	Memory string `yaml:"memory,omitempty"`
	// Classify controls which rows and fields are translated.
	Classify Classify `yaml:"classify,omitempty"`
}

// Classify holds the row classification rules.
type Classify struct {
	// Type is the row type marking translatable content objects.
	Type string `yaml:"type"`
	// PlainFields are translated as a single unit of plain text.
	PlainFields []string `yaml:"plain_fields"`
	// RichFields hold JSON rich text; only "value" leaves are translated.
	RichFields []string `yaml:"rich_fields"`
}

// IsPlain reports whether field is translated as plain text.
func (c Classify) IsPlain(field string) bool {
	return contains(c.PlainFields, field)
}

// IsRich reports whether field holds JSON rich text.
func (c Classify) IsRich(field string) bool {
	return contains(c.RichFields, field)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Duration wraps time.Duration with YAML string parsing ("300ms", "2s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// Default returns the built-in configuration. The pl -> cs language pair
// and the classification sets match the export format this tool was built
// around; all of them are plain settings that a config file or flags can
// change.
func Default() *Config {
	return &Config{
		Input:        "export.csv",
		Output:       "output.csv",
		SourceLang:   "pl",
		TargetLang:   "cs",
		Provider:     "google",
		MaxRetries:   5,
		RequestDelay: Duration(300 * time.Millisecond),
		Classify: Classify{
			Type:        "METAOBJECT",
			PlainFields: []string{"thumbnail_title"},
			RichFields:  []string{"description", "tekst", "text"},
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads .metatrans.yaml from dir and merges it over the defaults.
// Returns the defaults when no config file exists.
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// An explicit empty classify block falls back to the defaults.
	def := Default()
	if cfg.Classify.Type == "" {
		cfg.Classify.Type = def.Classify.Type
	}
	if len(cfg.Classify.PlainFields) == 0 {
		cfg.Classify.PlainFields = def.Classify.PlainFields
	}
	if len(cfg.Classify.RichFields) == 0 {
		cfg.Classify.RichFields = def.Classify.RichFields
	}

	return cfg, nil
}

// Validate checks language codes and numeric settings.
func (c *Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path is empty")
	}
	if c.Output == "" {
		return fmt.Errorf("output path is empty")
	}
	if _, err := language.Parse(c.SourceLang); err != nil {
		return fmt.Errorf("invalid source language %q: %w", c.SourceLang, err)
	}
	if _, err := language.Parse(c.TargetLang); err != nil {
		return fmt.Errorf("invalid target language %q: %w", c.TargetLang, err)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.Classify.Type == "" {
		return fmt.Errorf("classify.type is empty")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

// WriteDefault writes a default .metatrans.yaml into dir.
// Fails if the file already exists.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	return path, nil
}
