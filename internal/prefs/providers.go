package prefs

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProviderType selects the wire format a provider speaks. Every supported
// provider today exposes an OpenAI-compatible surface.
type ProviderType string

const (
	ProviderTypeOpenAI     ProviderType = "OpenAi"
	ProviderTypeMolyServer ProviderType = "MolyServer"
)

// ModelFlag is a per-model enable switch. It serializes as a two-element JSON
// array ["name", enabled] to keep the on-disk preferences format stable.
type ModelFlag struct {
	Name    string
	Enabled bool
}

func (m ModelFlag) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{m.Name, m.Enabled})
}

func (m *ModelFlag) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("model flag must be a [name, enabled] pair: %w", err)
	}
	if err := json.Unmarshal(pair[0], &m.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &m.Enabled)
}

// ProviderPrefs is one provider's persisted configuration.
type ProviderPrefs struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	URL              string       `json:"url"`
	APIKey           string       `json:"api_key,omitempty"`
	Enabled          bool         `json:"enabled"`
	ProviderType     ProviderType `json:"provider_type"`
	Models           []ModelFlag  `json:"models"`
	WasCustomlyAdded bool         `json:"was_customly_added"`
	ToolsEnabled     bool         `json:"tools_enabled"`
}

// HasAPIKey reports whether the preferences themselves carry a usable key.
// Keys held in the OS keyring are resolved separately by the providers
// package.
func (p ProviderPrefs) HasAPIKey() bool {
	return strings.TrimSpace(p.APIKey) != ""
}

func newProviderPrefs(id, name, url string) ProviderPrefs {
	return ProviderPrefs{
		ID:           id,
		Name:         name,
		URL:          url,
		Enabled:      true,
		ProviderType: ProviderTypeOpenAI,
		ToolsEnabled: true,
	}
}

// SupportedProviders is the single authoritative table of built-in providers.
// Everything else in the codebase references this list; it is never duplicated.
func SupportedProviders() []ProviderPrefs {
	return []ProviderPrefs{
		newProviderPrefs("openai", "OpenAI", "https://api.openai.com/v1"),
		newProviderPrefs("anthropic", "Anthropic", "https://api.anthropic.com/v1"),
		newProviderPrefs("gemini", "Google Gemini", "https://generativelanguage.googleapis.com/v1beta/openai"),
		newProviderPrefs("ollama", "Ollama (Local)", "http://localhost:11434/v1"),
		newProviderPrefs("groq", "Groq", "https://api.groq.com/openai/v1"),
		newProviderPrefs("deepseek", "DeepSeek", "https://api.deepseek.com/v1"),
	}
}
