// Package config loads scrum.toml. A missing file yields defaults; unset
// fields fall back to the defaults through the Get* accessors.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the working directory.
const FileName = "scrum.toml"

// Defaults
const (
	DefaultMaxConcurrent = 4
	DefaultAuditDir      = ".scrum/audit"
	DefaultHooksDir      = ".scrum"
	DefaultModel         = "gpt-4"
	DefaultBaseURL       = "https://api.openai.com/v1"
	DefaultTimeout       = 30 * time.Second
	DefaultTemperature   = 0.3
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
)

// Config is the top-level scrum.toml document.
type Config struct {
	Outline OutlineConfig `toml:"outline"`
	Import  ImportConfig  `toml:"import"`
	AI      AIConfig      `toml:"ai"`
	Log     LogConfig     `toml:"log"`
}

// OutlineConfig configures the text outline parser.
type OutlineConfig struct {
	// TaskMarkers replaces the built-in heading prefixes that mark tasks.
	// Empty = built-in markers.
	TaskMarkers []string `toml:"task_markers" validate:"dive,required"`

	// DefaultName names nodes that have no name. Empty = "Untitled".
	DefaultName string `toml:"default_name"`
}

// ImportConfig configures the import pipeline.
type ImportConfig struct {
	// MaxConcurrent bounds parallel imports. nil = default (4). 0 = unlimited.
	MaxConcurrent *int `toml:"max_concurrent" validate:"omitempty,min=0"`

	// AuditDir receives parsed-tree snapshots from the write-import-audit hook.
	AuditDir string `toml:"audit_dir"`

	// HooksDir holds hooks.json.
	HooksDir string `toml:"hooks_dir"`
}

// AIConfig configures the chat model used for analyses.
type AIConfig struct {
	Model       string   `toml:"model"`
	BaseURL     string   `toml:"base_url" validate:"omitempty,url"`
	APIKey      string   `toml:"api_key"`
	Timeout     string   `toml:"timeout"`
	Temperature *float64 `toml:"temperature" validate:"omitempty,min=0,max=2"`

	// Prompts is a YAML prompt set replacing the built-in prompts.
	Prompts string `toml:"prompts"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `toml:"format" validate:"omitempty,oneof=console json"`
}

var validate = validator.New()

// Default returns a Config with every default filled in.
func Default() *Config {
	maxConcurrent := DefaultMaxConcurrent
	temperature := DefaultTemperature
	return &Config{
		Import: ImportConfig{
			MaxConcurrent: &maxConcurrent,
			AuditDir:      DefaultAuditDir,
			HooksDir:      DefaultHooksDir,
		},
		AI: AIConfig{
			Model:       DefaultModel,
			BaseURL:     DefaultBaseURL,
			Timeout:     DefaultTimeout.String(),
			Temperature: &temperature,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads a TOML config file. A missing file is not an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes TOML text, rejecting unknown keys, and validates it.
func Parse(text string) (*Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("parsing config: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.AI.Timeout != "" {
		if _, err := time.ParseDuration(c.AI.Timeout); err != nil {
			return fmt.Errorf("invalid config: ai.timeout: %w", err)
		}
	}
	return nil
}

// Override applies values set in v (environment or flags) on top of the
// file values. Keys use dotted section names, e.g. "ai.model".
func (c *Config) Override(v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("outline.default_name", &c.Outline.DefaultName)
	str("import.audit_dir", &c.Import.AuditDir)
	str("import.hooks_dir", &c.Import.HooksDir)
	str("ai.model", &c.AI.Model)
	str("ai.base_url", &c.AI.BaseURL)
	str("ai.api_key", &c.AI.APIKey)
	str("ai.timeout", &c.AI.Timeout)
	str("ai.prompts", &c.AI.Prompts)
	str("log.level", &c.Log.Level)
	str("log.format", &c.Log.Format)

	if v.IsSet("outline.task_markers") {
		c.Outline.TaskMarkers = v.GetStringSlice("outline.task_markers")
	}
	if v.IsSet("import.max_concurrent") {
		n := v.GetInt("import.max_concurrent")
		c.Import.MaxConcurrent = &n
	}
	if v.IsSet("ai.temperature") {
		t := v.GetFloat64("ai.temperature")
		c.AI.Temperature = &t
	}
	return c.Validate()
}

// GetMaxConcurrent returns MaxConcurrent or the default if unset.
// Returns 0 if explicitly set to 0 (unlimited).
func (c *ImportConfig) GetMaxConcurrent() int {
	if c == nil || c.MaxConcurrent == nil {
		return DefaultMaxConcurrent
	}
	return *c.MaxConcurrent
}

// GetAuditDir returns AuditDir or the default.
func (c *ImportConfig) GetAuditDir() string {
	if c == nil || c.AuditDir == "" {
		return DefaultAuditDir
	}
	return c.AuditDir
}

// GetHooksDir returns HooksDir or the default.
func (c *ImportConfig) GetHooksDir() string {
	if c == nil || c.HooksDir == "" {
		return DefaultHooksDir
	}
	return c.HooksDir
}

// GetModel returns Model or the default.
func (c *AIConfig) GetModel() string {
	if c == nil || c.Model == "" {
		return DefaultModel
	}
	return c.Model
}

// GetBaseURL returns BaseURL or the default.
func (c *AIConfig) GetBaseURL() string {
	if c == nil || c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

// GetTimeout returns Timeout as a duration, defaulting to 30s.
func (c *AIConfig) GetTimeout() time.Duration {
	if c == nil {
		return DefaultTimeout
	}
	return ParseDurationOrDefault(c.Timeout, DefaultTimeout)
}

// GetTemperature returns Temperature or the default.
func (c *AIConfig) GetTemperature() float64 {
	if c == nil || c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// ParseDurationOrDefault parses a Go duration string, returning fallback on error or empty input.
func ParseDurationOrDefault(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
