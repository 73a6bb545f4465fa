// Package orchestrator walks the enabled providers one at a time, collecting
// each provider's models and restoring the saved selection once the cycle
// settles. Exactly one fetch is in flight at any moment.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"polychat/internal/bots"
	"polychat/internal/prefs"
	"polychat/internal/providers"
	"polychat/internal/registry"
)

// Fetch describes one provider's turn in the cycle. The caller performs the
// request (usually off the UI goroutine) and reports back via CompleteFetch.
type Fetch struct {
	ProviderID string
	Client     *providers.Client

	gen uint64
}

// CycleResult is published once after the last provider settles.
type CycleResult struct {
	Bots      []bots.Bot
	Selection bots.Selection
	Restored  bool
}

// ProviderOutcome summarizes one provider's turn for headless callers.
type ProviderOutcome struct {
	ProviderID string
	BotCount   int
	Err        error
}

// Orchestrator sequences provider fetches. The transition API (StartCycle,
// CompleteFetch) suits a message-loop caller; RunCycle drives a whole cycle
// synchronously.
type Orchestrator struct {
	reg        *registry.Manager
	prefs      *prefs.Preferences
	resolver   *bots.Resolver
	timeout    time.Duration
	resolveKey func(prefs.ProviderPrefs) string

	mu             sync.Mutex
	gen            uint64
	queue          []string
	lastConfigured []string
	started        uint64
	settled        uint64
}

func New(reg *registry.Manager, p *prefs.Preferences, timeout time.Duration, resolveKey func(prefs.ProviderPrefs) string) *Orchestrator {
	return &Orchestrator{
		reg:        reg,
		prefs:      p,
		resolver:   &bots.Resolver{},
		timeout:    timeout,
		resolveKey: resolveKey,
	}
}

// Counters reports how many fetches have been started and settled. Started
// never exceeds settled by more than one.
func (o *Orchestrator) Counters() (started, settled uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started, o.settled
}

// Busy reports whether a fetch is in flight or queued.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.started > o.settled || len(o.queue) > 0
}

// NeedsCycle reports whether the enabled provider set differs from the one
// last configured.
func (o *Orchestrator) NeedsCycle(enabled []prefs.ProviderPrefs) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !sameIDs(o.lastConfigured, providerIDs(enabled))
}

// StartCycle reconfigures the registry from the enabled providers and begins
// a new fetch cycle, superseding any cycle still in flight. It returns the
// first fetch to perform, or a final result when there is nothing to fetch.
// Without force, a cycle only starts when the enabled set changed.
func (o *Orchestrator) StartCycle(enabled []prefs.ProviderPrefs, force bool) (*Fetch, *CycleResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ids := providerIDs(enabled)
	if !force && sameIDs(o.lastConfigured, ids) {
		return nil, nil
	}

	o.gen++
	o.lastConfigured = ids
	o.queue = append([]string(nil), ids...)
	o.resolver.Reset()

	o.reg.Configure(enabled, o.timeout, o.resolveKey)
	o.reg.ClearBots()

	if len(ids) == 0 {
		// Nothing enabled: clear the saved selection synchronously.
		if o.prefs.CurrentChatModel != "" {
			if err := o.prefs.SetCurrentChatModel(""); err != nil {
				log.Warn().Err(err).Msg("failed to clear saved model")
			}
		}
		return nil, &CycleResult{}
	}

	log.Info().Strs("providers", ids).Msg("starting model fetch cycle")
	return o.nextFetchLocked()
}

// CompleteFetch records one provider's outcome and advances the cycle. A
// fetch from a superseded cycle is ignored. Exactly one of the return values
// is non-nil unless the fetch was stale.
func (o *Orchestrator) CompleteFetch(f *Fetch, list []bots.Bot, err error) (*Fetch, *CycleResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if f == nil || f.gen != o.gen {
		return nil, nil
	}
	o.settled++

	if err != nil {
		// Degrades to "no models from this provider".
		log.Warn().Err(err).Str("provider", f.ProviderID).Msg("model fetch failed")
		o.reg.ClearProvider(f.ProviderID)
	} else {
		o.recordModelsLocked(f.ProviderID, list)
		list = o.enabledModelsLocked(f.ProviderID, list)
		o.reg.SetBots(f.ProviderID, list)
		log.Debug().Str("provider", f.ProviderID).Int("models", len(list)).Msg("models fetched")
	}

	return o.nextFetchLocked()
}

// recordModelsLocked syncs the provider's per-model flags with the names the
// fetch returned, keeping existing enable/disable choices.
func (o *Orchestrator) recordModelsLocked(providerID string, list []bots.Bot) {
	names := make([]string, 0, len(list))
	for _, b := range list {
		names = append(names, b.Name)
	}
	if err := o.prefs.SetProviderModels(providerID, names); err != nil {
		log.Warn().Err(err).Str("provider", providerID).Msg("failed to record fetched models")
	}
}

// enabledModelsLocked drops models the user disabled, so they never reach the
// registry or the picker. Unknown names stay in.
func (o *Orchestrator) enabledModelsLocked(providerID string, list []bots.Bot) []bots.Bot {
	pp, err := o.prefs.Provider(providerID)
	if err != nil {
		return list
	}
	disabled := make(map[string]bool)
	for _, m := range pp.Models {
		if !m.Enabled {
			disabled[m.Name] = true
		}
	}
	if len(disabled) == 0 {
		return list
	}
	kept := make([]bots.Bot, 0, len(list))
	for _, b := range list {
		if !disabled[b.Name] {
			kept = append(kept, b)
		}
	}
	return kept
}

// nextFetchLocked hands out the next provider turn, skipping any id whose
// client disappeared, and finalizes the cycle when the queue is empty.
func (o *Orchestrator) nextFetchLocked() (*Fetch, *CycleResult) {
	for len(o.queue) > 0 {
		id := o.queue[0]
		o.queue = o.queue[1:]
		client, ok := o.reg.Client(id)
		if !ok {
			log.Warn().Str("provider", id).Msg("no client for provider, skipping")
			continue
		}
		o.started++
		return &Fetch{ProviderID: id, Client: client.Clone(), gen: o.gen}, nil
	}
	return nil, o.finalizeLocked()
}

func (o *Orchestrator) finalizeLocked() *CycleResult {
	all := o.reg.Bots()
	sel, applied := o.resolver.Resolve(o.prefs.CurrentChatModel, all)
	if applied && sel.Found && sel.Rewritten {
		if err := o.prefs.SetCurrentChatModel(sel.Bot.ID); err != nil {
			log.Warn().Err(err).Msg("failed to persist restored model")
		}
	}
	log.Info().Int("bots", len(all)).Bool("restored", applied).Msg("model fetch cycle settled")
	return &CycleResult{Bots: all, Selection: sel, Restored: applied}
}

// RunCycle drives a full forced cycle synchronously and reports per-provider
// outcomes. Used by headless callers; the TUI uses the transition API.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleResult, []ProviderOutcome, error) {
	enabled := o.EnabledProviders()
	fetch, result := o.StartCycle(enabled, true)

	var outcomes []ProviderOutcome
	for fetch != nil {
		if err := ctx.Err(); err != nil {
			return CycleResult{}, outcomes, err
		}
		list, err := fetch.Client.ListBots(ctx)
		outcomes = append(outcomes, ProviderOutcome{ProviderID: fetch.ProviderID, BotCount: len(list), Err: err})
		fetch, result = o.CompleteFetch(fetch, list, err)
	}
	if result == nil {
		return CycleResult{}, outcomes, nil
	}
	return *result, outcomes, nil
}

// EnabledProviders returns the providers eligible for a fetch cycle: enabled
// in the preferences and holding a resolvable key when one is required.
func (o *Orchestrator) EnabledProviders() []prefs.ProviderPrefs {
	hasKey := func(pp prefs.ProviderPrefs) bool {
		if !requiresKey(pp) {
			return true
		}
		if o.resolveKey == nil {
			return pp.HasAPIKey()
		}
		return o.resolveKey(pp) != ""
	}
	return o.prefs.EnabledProviders(hasKey)
}

// requiresKey reports whether a provider needs an API key at all. Local
// servers authenticate by reachability.
func requiresKey(pp prefs.ProviderPrefs) bool {
	return pp.ProviderType != prefs.ProviderTypeMolyServer && pp.ID != "ollama"
}

func providerIDs(enabled []prefs.ProviderPrefs) []string {
	ids := make([]string, 0, len(enabled))
	for _, pp := range enabled {
		ids = append(ids, pp.ID)
	}
	return ids
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
