// Package prefs is the durable preferences store: provider configurations and
// UI state, loaded once at startup and rewritten whole on every mutation.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"polychat/internal/util"
)

const preferencesFilename = "preferences.json"

var ErrProviderNotFound = errors.New("provider not found")

// Preferences is the persisted user state. Field names mirror the on-disk
// JSON contract; absence of the file means defaults, never an error.
type Preferences struct {
	DarkMode         bool            `json:"dark_mode"`
	SidebarExpanded  bool            `json:"sidebar_expanded"`
	CurrentView      string          `json:"current_view"`
	Providers        []ProviderPrefs `json:"providers_preferences"`
	CurrentChatModel string          `json:"current_chat_model,omitempty"`

	path string
}

func defaults(path string) *Preferences {
	return &Preferences{
		SidebarExpanded: true,
		CurrentView:     "Chat",
		Providers:       SupportedProviders(),
		path:            path,
	}
}

// Load reads preferences from <dataDir>/preferences.json. A missing or
// unparseable file degrades to defaults; supported providers missing from an
// older file are merged in.
func Load(dataDir string) *Preferences {
	path := filepath.Join(dataDir, preferencesFilename)

	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("failed to read preferences")
		}
		return defaults(path)
	}

	p := Preferences{SidebarExpanded: true, CurrentView: "Chat"}
	if err := json.Unmarshal(raw, &p); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to parse preferences, using defaults")
		return defaults(path)
	}
	p.path = path
	p.mergeSupportedProviders()
	return &p
}

// Save rewrites the whole preferences file, pretty-printed.
func (p *Preferences) Save() error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := util.AtomicWriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// Path is the backing file, used by the change watcher.
func (p *Preferences) Path() string { return p.path }

func (p *Preferences) mergeSupportedProviders() {
	for _, sp := range SupportedProviders() {
		if _, err := p.Provider(sp.ID); errors.Is(err, ErrProviderNotFound) {
			p.Providers = append(p.Providers, sp)
		}
	}
}

// Provider looks up a provider configuration by id.
func (p *Preferences) Provider(id string) (*ProviderPrefs, error) {
	for i := range p.Providers {
		if p.Providers[i].ID == id {
			return &p.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
}

// EnabledProviders returns providers that are enabled and have a resolvable
// API key. hasKey decides key presence; nil means "key stored in preferences".
func (p *Preferences) EnabledProviders(hasKey func(ProviderPrefs) bool) []ProviderPrefs {
	if hasKey == nil {
		hasKey = ProviderPrefs.HasAPIKey
	}
	var out []ProviderPrefs
	for _, pp := range p.Providers {
		if pp.Enabled && hasKey(pp) {
			out = append(out, pp)
		}
	}
	return out
}

func (p *Preferences) SetDarkMode(on bool) error {
	p.DarkMode = on
	return p.Save()
}

func (p *Preferences) SetSidebarExpanded(on bool) error {
	p.SidebarExpanded = on
	return p.Save()
}

func (p *Preferences) SetCurrentView(view string) error {
	p.CurrentView = view
	return p.Save()
}

func (p *Preferences) SetCurrentChatModel(id string) error {
	p.CurrentChatModel = id
	return p.Save()
}

func (p *Preferences) SetProviderURL(id, url string) error {
	pp, err := p.Provider(id)
	if err != nil {
		return err
	}
	pp.URL = strings.TrimSpace(url)
	return p.Save()
}

func (p *Preferences) SetProviderAPIKey(id, key string) error {
	pp, err := p.Provider(id)
	if err != nil {
		return err
	}
	pp.APIKey = strings.TrimSpace(key)
	return p.Save()
}

func (p *Preferences) SetProviderEnabled(id string, enabled bool) error {
	pp, err := p.Provider(id)
	if err != nil {
		return err
	}
	pp.Enabled = enabled
	return p.Save()
}

// SetModelEnabled flips a per-model flag, appending the model if unseen.
func (p *Preferences) SetModelEnabled(providerID, model string, enabled bool) error {
	pp, err := p.Provider(providerID)
	if err != nil {
		return err
	}
	for i := range pp.Models {
		if pp.Models[i].Name == model {
			pp.Models[i].Enabled = enabled
			return p.Save()
		}
	}
	pp.Models = append(pp.Models, ModelFlag{Name: model, Enabled: enabled})
	return p.Save()
}

// SetProviderModels replaces a provider's model list with the names fetched
// from it, preserving the enabled flag of models already known. New models
// default to enabled. An unchanged list skips the save.
func (p *Preferences) SetProviderModels(providerID string, names []string) error {
	pp, err := p.Provider(providerID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(pp.Models))
	for _, m := range pp.Models {
		known[m.Name] = m.Enabled
	}

	next := make([]ModelFlag, 0, len(names))
	changed := len(names) != len(pp.Models)
	for i, name := range names {
		enabled := true
		if was, ok := known[name]; ok {
			enabled = was
		}
		if !changed && (pp.Models[i].Name != name || pp.Models[i].Enabled != enabled) {
			changed = true
		}
		next = append(next, ModelFlag{Name: name, Enabled: enabled})
	}
	if !changed {
		return nil
	}
	pp.Models = next
	return p.Save()
}

// AddCustomProvider registers a user-added provider. The id must be unique.
func (p *Preferences) AddCustomProvider(id, name, url string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("provider id is empty")
	}
	if _, err := p.Provider(id); err == nil {
		return fmt.Errorf("provider %q already exists", id)
	}
	pp := newProviderPrefs(id, strings.TrimSpace(name), strings.TrimSpace(url))
	pp.WasCustomlyAdded = true
	p.Providers = append(p.Providers, pp)
	return p.Save()
}

// RemoveProvider deletes a provider; built-in providers cannot be removed.
func (p *Preferences) RemoveProvider(id string) error {
	for i := range p.Providers {
		if p.Providers[i].ID != id {
			continue
		}
		if !p.Providers[i].WasCustomlyAdded {
			return fmt.Errorf("provider %q is built in and cannot be removed", id)
		}
		p.Providers = append(p.Providers[:i], p.Providers[i+1:]...)
		return p.Save()
	}
	return fmt.Errorf("%w: %s", ErrProviderNotFound, id)
}
