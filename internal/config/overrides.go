package config

import (
	"fmt"
	"strings"
)

// ModelOverride redirects one tool to a different model and optionally a
// different credential.
type ModelOverride struct {
	ModelName string `yaml:"model_name"`
	APIKey    string `yaml:"api_key"`
}

// NormalizeToolOverrides trims override fields, drops empty entries, and
// enforces that a key override names its model (the provider is derived
// from the model name).
func NormalizeToolOverrides(overrides map[string]*ModelOverride) (map[string]*ModelOverride, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	normalized := make(map[string]*ModelOverride, len(overrides))
	for rawName, override := range overrides {
		name := strings.TrimSpace(rawName)
		if name == "" {
			return nil, fmt.Errorf("config: tool override key cannot be empty")
		}
		if override == nil {
			continue
		}
		modelName := strings.TrimSpace(override.ModelName)
		apiKey := strings.TrimSpace(override.APIKey)
		if apiKey != "" && modelName == "" {
			return nil, fmt.Errorf(
				"config: api_key override for tool %q requires model_name so the provider can be determined", name)
		}
		if modelName == "" && apiKey == "" {
			continue
		}
		if modelName != "" {
			if _, _, err := ParseModelName(modelName); err != nil {
				return nil, err
			}
		}
		normalized[name] = &ModelOverride{ModelName: modelName, APIKey: apiKey}
	}
	if len(normalized) == 0 {
		return nil, nil
	}
	return normalized, nil
}
