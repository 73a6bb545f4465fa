package prefs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	p := Load(t.TempDir())

	assert.False(t, p.DarkMode)
	assert.True(t, p.SidebarExpanded)
	assert.Equal(t, "Chat", p.CurrentView)
	assert.Len(t, p.Providers, len(SupportedProviders()))

	openai, err := p.Provider("openai")
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", openai.URL)
	assert.True(t, openai.Enabled)
	assert.False(t, openai.WasCustomlyAdded)
}

func TestLoadCorruptFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preferences.json"), []byte("{not json"), 0o644))

	p := Load(dir)
	assert.Len(t, p.Providers, len(SupportedProviders()))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	p := Load(dir)
	require.NoError(t, p.SetDarkMode(true))
	require.NoError(t, p.SetProviderAPIKey("groq", "gsk-test"))
	require.NoError(t, p.SetProviderEnabled("deepseek", false))
	require.NoError(t, p.SetCurrentChatModel("6;gpt-4o@openai"))
	require.NoError(t, p.SetModelEnabled("groq", "llama-3.3-70b", false))

	reloaded := Load(dir)
	assert.True(t, reloaded.DarkMode)
	assert.Equal(t, "6;gpt-4o@openai", reloaded.CurrentChatModel)

	groq, err := reloaded.Provider("groq")
	require.NoError(t, err)
	assert.Equal(t, "gsk-test", groq.APIKey)
	assert.Equal(t, []ModelFlag{{Name: "llama-3.3-70b", Enabled: false}}, groq.Models)

	deepseek, err := reloaded.Provider("deepseek")
	require.NoError(t, err)
	assert.False(t, deepseek.Enabled)
}

func TestLoadMergesNewSupportedProviders(t *testing.T) {
	dir := t.TempDir()

	// Simulate an older file that only knew about one provider.
	old := `{"dark_mode":false,"providers_preferences":[{"id":"openai","name":"OpenAI","url":"https://api.openai.com/v1","enabled":true,"provider_type":"OpenAi","models":[],"was_customly_added":false,"tools_enabled":true}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preferences.json"), []byte(old), 0o644))

	p := Load(dir)
	assert.Len(t, p.Providers, len(SupportedProviders()))
	_, err := p.Provider("anthropic")
	assert.NoError(t, err)
}

func TestModelFlagPairEncoding(t *testing.T) {
	data, err := json.Marshal([]ModelFlag{{Name: "gpt-4o", Enabled: true}, {Name: "o3-mini", Enabled: false}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["gpt-4o",true],["o3-mini",false]]`, string(data))

	var flags []ModelFlag
	require.NoError(t, json.Unmarshal(data, &flags))
	assert.Equal(t, "o3-mini", flags[1].Name)
	assert.False(t, flags[1].Enabled)
}

func TestSetProviderModelsPreservesFlags(t *testing.T) {
	p := Load(t.TempDir())
	require.NoError(t, p.SetModelEnabled("openai", "o3-mini", false))

	require.NoError(t, p.SetProviderModels("openai", []string{"gpt-4o", "o3-mini"}))
	pp, err := p.Provider("openai")
	require.NoError(t, err)
	require.Len(t, pp.Models, 2)
	assert.Equal(t, ModelFlag{Name: "gpt-4o", Enabled: true}, pp.Models[0])
	assert.Equal(t, ModelFlag{Name: "o3-mini", Enabled: false}, pp.Models[1])

	// A vanished model drops off the list.
	require.NoError(t, p.SetProviderModels("openai", []string{"gpt-4o"}))
	pp, err = p.Provider("openai")
	require.NoError(t, err)
	require.Len(t, pp.Models, 1)
	assert.Equal(t, "gpt-4o", pp.Models[0].Name)

	// An identical list skips the save entirely.
	require.NoError(t, os.Remove(p.Path()))
	require.NoError(t, p.SetProviderModels("openai", []string{"gpt-4o"}))
	_, err = os.Stat(p.Path())
	assert.True(t, os.IsNotExist(err), "unchanged model list must not rewrite the file")

	require.ErrorIs(t, p.SetProviderModels("nope", nil), ErrProviderNotFound)
}

func TestEnabledProvidersFiltersOnKeyAndFlag(t *testing.T) {
	p := Load(t.TempDir())
	require.NoError(t, p.SetProviderAPIKey("openai", "sk-a"))
	require.NoError(t, p.SetProviderAPIKey("groq", "   "))
	require.NoError(t, p.SetProviderAPIKey("anthropic", "sk-b"))
	require.NoError(t, p.SetProviderEnabled("anthropic", false))

	enabled := p.EnabledProviders(nil)
	require.Len(t, enabled, 1)
	assert.Equal(t, "openai", enabled[0].ID)

	// A custom key resolver can admit providers whose key lives elsewhere.
	enabled = p.EnabledProviders(func(pp ProviderPrefs) bool { return pp.ID == "ollama" })
	require.Len(t, enabled, 1)
	assert.Equal(t, "ollama", enabled[0].ID)
}

func TestCustomProviderLifecycle(t *testing.T) {
	p := Load(t.TempDir())

	require.NoError(t, p.AddCustomProvider("localai", "LocalAI", "http://localhost:8080/v1"))
	assert.Error(t, p.AddCustomProvider("localai", "dup", "http://x"))

	assert.Error(t, p.RemoveProvider("openai"), "built-in providers are not deletable")
	require.NoError(t, p.RemoveProvider("localai"))
	_, err := p.Provider("localai")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}
