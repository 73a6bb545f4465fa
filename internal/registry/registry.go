// Package registry tracks the configured provider clients and the bots each
// one contributed, keyed by explicit provider tags rather than by guessing
// from bot names.
package registry

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"polychat/internal/bots"
	"polychat/internal/prefs"
	"polychat/internal/providers"
)

// Manager owns the provider clients and the merged bot list. All methods are
// safe for concurrent use; the fetch loop writes while the UI reads.
type Manager struct {
	mu           sync.RWMutex
	order        []string
	clients      map[string]*providers.Client
	providerBots map[string][]bots.Bot
	botProvider  map[string]string
}

func NewManager() *Manager {
	return &Manager{
		clients:      make(map[string]*providers.Client),
		providerBots: make(map[string][]bots.Bot),
		botProvider:  make(map[string]string),
	}
}

// Configure rebuilds the client set from the enabled provider preferences.
// resolveKey supplies each provider's API key; nil reads the key stored in
// the preferences themselves. Bots from providers no longer configured are
// dropped.
func (m *Manager) Configure(enabled []prefs.ProviderPrefs, timeout time.Duration, resolveKey func(prefs.ProviderPrefs) string) {
	if resolveKey == nil {
		resolveKey = func(pp prefs.ProviderPrefs) string { return pp.APIKey }
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = m.order[:0]
	m.clients = make(map[string]*providers.Client, len(enabled))
	for _, pp := range enabled {
		m.order = append(m.order, pp.ID)
		m.clients[pp.ID] = providers.NewClient(pp.ID, pp.URL, resolveKey(pp), timeout)
	}

	for id := range m.providerBots {
		if _, ok := m.clients[id]; !ok {
			delete(m.providerBots, id)
		}
	}
	m.rebuildIndexLocked()
	log.Debug().Int("providers", len(m.order)).Msg("registry configured")
}

// ProviderIDs returns the configured provider ids in configuration order.
func (m *Manager) ProviderIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Client returns the configured client for a provider id.
func (m *Manager) Client(providerID string) (*providers.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[providerID]
	return c, ok
}

// SetBots replaces the bot list contributed by one provider. Every bot is
// stamped with the provider id at insertion.
func (m *Manager) SetBots(providerID string, list []bots.Bot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tagged := make([]bots.Bot, len(list))
	for i, b := range list {
		b.Provider = providerID
		tagged[i] = b
	}
	m.providerBots[providerID] = tagged
	m.rebuildIndexLocked()
}

// ClearProvider drops one provider's bots, for example after a failed fetch.
func (m *Manager) ClearProvider(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providerBots, providerID)
	m.rebuildIndexLocked()
}

// ClearBots drops every provider's bots while keeping the clients.
func (m *Manager) ClearBots() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providerBots = make(map[string][]bots.Bot)
	m.rebuildIndexLocked()
}

// Bots returns the merged bot list in provider configuration order.
func (m *Manager) Bots() []bots.Bot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []bots.Bot
	for _, id := range m.order {
		out = append(out, m.providerBots[id]...)
	}
	return out
}

// Bot looks up a bot by its id.
func (m *Manager) Bot(botID string) (bots.Bot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	providerID, ok := m.botProvider[botID]
	if !ok {
		return bots.Bot{}, false
	}
	for _, b := range m.providerBots[providerID] {
		if b.ID == botID {
			return b, true
		}
	}
	return bots.Bot{}, false
}

// ProviderForBot maps a bot id to the provider that contributed it.
func (m *Manager) ProviderForBot(botID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.botProvider[botID]
	return id, ok
}

// ClientForBot returns a clone of the client serving a bot, so callers can
// hold it across a completion without aliasing registry state.
func (m *Manager) ClientForBot(botID string) (*providers.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	providerID, ok := m.botProvider[botID]
	if !ok {
		return nil, false
	}
	c, ok := m.clients[providerID]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

func (m *Manager) rebuildIndexLocked() {
	m.botProvider = make(map[string]string)
	for id, list := range m.providerBots {
		for _, b := range list {
			m.botProvider[b.ID] = id
		}
	}
}
