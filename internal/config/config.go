// Package config holds runtime configuration: model selection, credentials,
// thinking options, tool overrides, and the YAML file loader.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultModel is used when no model_name is configured.
const DefaultModel = "anthropic:claude-sonnet-4-20250514"

// DefaultCacheTTL is the schema cache lifetime in seconds.
const DefaultCacheTTL = 900

// Config is the full set of recognized options.
type Config struct {
	// ModelName selects provider and model as "provider:model".
	ModelName string `yaml:"model_name"`

	// APIKey overrides credential lookup. Requires ModelName.
	APIKey string `yaml:"api_key"`

	// Memory overrides stored memories verbatim when set. An empty string
	// disables memory injection entirely, so nil and "" differ.
	Memory *string `yaml:"memory"`

	// SystemPrompt replaces the built-in base template. Whitespace-only
	// values are ignored.
	SystemPrompt string `yaml:"system_prompt"`

	ThinkingEnabled bool   `yaml:"thinking_enabled"`
	ThinkingLevel   string `yaml:"thinking_level"`

	// ToolOverrides lets individual tools (notably viz) use a different
	// model or key.
	ToolOverrides map[string]*ModelOverride `yaml:"tool_overrides"`

	AllowDangerous bool `yaml:"allow_dangerous"`

	// CacheTTL is the schema cache lifetime in seconds.
	CacheTTL int `yaml:"cache_ttl"`
}

// Default returns a config with defaults applied.
func Default() *Config {
	return &Config{
		ModelName: DefaultModel,
		CacheTTL:  DefaultCacheTTL,
	}
}

// Load reads a YAML config file, expands environment references, rejects
// unknown fields, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes and validates config YAML.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: failed to parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate applies defaults and checks cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ModelName) == "" {
		c.ModelName = DefaultModel
	}
	if _, _, err := ParseModelName(c.ModelName); err != nil {
		return err
	}
	if c.APIKey != "" && strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("config: api_key requires model_name")
	}
	if c.ThinkingLevel != "" {
		if _, err := ThinkingBudget(c.ThinkingLevel); err != nil {
			return err
		}
		// Setting a level implies enabled.
		c.ThinkingEnabled = true
	}
	overrides, err := NormalizeToolOverrides(c.ToolOverrides)
	if err != nil {
		return err
	}
	c.ToolOverrides = overrides
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = ""
	}
	return nil
}

// MemorySet reports whether a memory override is present, including the
// empty string that disables injection.
func (c *Config) MemorySet() bool { return c.Memory != nil }
