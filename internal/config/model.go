package config

import (
	"fmt"
	"os"
	"strings"
)

// Providers known to the client layer.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// ParseModelName splits "provider:model" and validates the provider. A bare
// model name without a prefix defaults to Anthropic, matching the common
// case of claude-* names.
func ParseModelName(name string) (provider, model string, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("config: model name is empty")
	}
	provider, model, found := strings.Cut(name, ":")
	if !found {
		return ProviderAnthropic, name, nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	model = strings.TrimSpace(model)
	if model == "" {
		return "", "", fmt.Errorf("config: model name %q has no model part", name)
	}
	switch provider {
	case ProviderAnthropic, ProviderOpenAI:
		return provider, model, nil
	}
	return "", "", fmt.Errorf("config: unknown provider %q", provider)
}

// APIKeyEnvVar names the environment variable consulted for a provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	}
	return "AI_API_KEY"
}

// LookupAPIKey resolves the credential for a provider from the environment.
func LookupAPIKey(provider string) (string, error) {
	envVar := APIKeyEnvVar(provider)
	if key := os.Getenv(envVar); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("config: no API key for %s: set %s", provider, envVar)
}

// ResolveAPIKey returns the explicit key when set, otherwise the
// environment credential for the model's provider.
func (c *Config) ResolveAPIKey() (string, error) {
	if c.APIKey != "" {
		return c.APIKey, nil
	}
	provider, _, err := ParseModelName(c.ModelName)
	if err != nil {
		return "", err
	}
	return LookupAPIKey(provider)
}
