package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"polychat/internal/bots"
	"polychat/internal/prefs"
	"polychat/internal/registry"
)

func newTestOrchestrator(t *testing.T) (*Orchestrator, *prefs.Preferences) {
	t.Helper()
	p := prefs.Load(t.TempDir())
	o := New(registry.NewManager(), p, 5*time.Second, func(pp prefs.ProviderPrefs) string { return pp.APIKey })
	return o, p
}

func enabledProvider(id string) prefs.ProviderPrefs {
	return prefs.ProviderPrefs{ID: id, URL: "https://" + id + ".example/v1", APIKey: "k", Enabled: true}
}

func TestStartCycleOnlyOnProviderSetChange(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	enabled := []prefs.ProviderPrefs{enabledProvider("openai")}

	fetch, _ := o.StartCycle(enabled, false)
	require.NotNil(t, fetch)
	_, result := o.CompleteFetch(fetch, []bots.Bot{bots.New("gpt-4o", "openai")}, nil)
	require.NotNil(t, result)

	// Same set again: no new cycle without force.
	fetch, result = o.StartCycle(enabled, false)
	require.Nil(t, fetch)
	require.Nil(t, result)
	require.False(t, o.NeedsCycle(enabled))

	fetch, _ = o.StartCycle(enabled, true)
	require.NotNil(t, fetch)
}

func TestCycleVisitsProvidersInOrder(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	enabled := []prefs.ProviderPrefs{enabledProvider("openai"), enabledProvider("gemini")}

	fetch, result := o.StartCycle(enabled, true)
	require.Nil(t, result)
	require.Equal(t, "openai", fetch.ProviderID)

	started, settled := o.Counters()
	require.Equal(t, uint64(1), started)
	require.Equal(t, uint64(0), settled)
	require.True(t, o.Busy())

	fetch, result = o.CompleteFetch(fetch, []bots.Bot{bots.New("gpt-4o", "openai")}, nil)
	require.Nil(t, result)
	require.Equal(t, "gemini", fetch.ProviderID)

	// Never more than one fetch in flight.
	started, settled = o.Counters()
	require.Equal(t, uint64(2), started)
	require.Equal(t, uint64(1), settled)

	fetch, result = o.CompleteFetch(fetch, []bots.Bot{bots.New("models/gemini-2.0-flash", "gemini")}, nil)
	require.Nil(t, fetch)
	require.NotNil(t, result)
	require.False(t, o.Busy())

	require.Len(t, result.Bots, 2)
	require.Equal(t, "openai", result.Bots[0].Provider)
	require.Equal(t, "gemini", result.Bots[1].Provider)
}

func TestFailedProviderDegradesToNoModels(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	enabled := []prefs.ProviderPrefs{enabledProvider("openai"), enabledProvider("groq")}

	fetch, _ := o.StartCycle(enabled, true)
	fetch, result := o.CompleteFetch(fetch, nil, context.DeadlineExceeded)
	require.NotNil(t, fetch)
	require.Equal(t, "groq", fetch.ProviderID)

	_, result = o.CompleteFetch(fetch, []bots.Bot{bots.New("llama-3.1-70b", "groq")}, nil)
	require.NotNil(t, result)
	require.Len(t, result.Bots, 1)
	require.Equal(t, "groq", result.Bots[0].Provider)
}

func TestZeroModelsSettlesTurnImmediately(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	enabled := []prefs.ProviderPrefs{enabledProvider("openai"), enabledProvider("gemini")}

	fetch, _ := o.StartCycle(enabled, true)
	fetch, _ = o.CompleteFetch(fetch, nil, nil)
	require.NotNil(t, fetch)
	require.Equal(t, "gemini", fetch.ProviderID)
}

func TestEmptyEnabledSetClearsBotsAndSavedModel(t *testing.T) {
	o, p := newTestOrchestrator(t)
	require.NoError(t, p.SetCurrentChatModel("6;gpt-4o@openai"))

	fetch, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("openai")}, true)
	_, result := o.CompleteFetch(fetch, []bots.Bot{bots.New("gpt-4o", "openai")}, nil)
	require.NotNil(t, result)

	fetch, result = o.StartCycle(nil, true)
	require.Nil(t, fetch)
	require.NotNil(t, result)
	require.Empty(t, result.Bots)
	require.Empty(t, p.CurrentChatModel)
}

func TestStaleFetchFromSupersededCycleIsIgnored(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	stale, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("openai")}, true)
	fresh, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("gemini")}, true)

	fetch, result := o.CompleteFetch(stale, []bots.Bot{bots.New("gpt-4o", "openai")}, nil)
	require.Nil(t, fetch)
	require.Nil(t, result)

	_, result = o.CompleteFetch(fresh, []bots.Bot{bots.New("models/gemini-2.0-flash", "gemini")}, nil)
	require.NotNil(t, result)
	require.Len(t, result.Bots, 1)
	require.Equal(t, "gemini", result.Bots[0].Provider)
}

func TestCompleteFetchRecordsAndFiltersModelFlags(t *testing.T) {
	o, p := newTestOrchestrator(t)
	require.NoError(t, p.SetModelEnabled("openai", "o3-mini", false))

	fetch, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("openai")}, true)
	require.NotNil(t, fetch)

	list := []bots.Bot{bots.New("gpt-4o", "openai"), bots.New("o3-mini", "openai")}
	next, result := o.CompleteFetch(fetch, list, nil)
	require.Nil(t, next)
	require.NotNil(t, result)

	// The disabled model never reaches the merged bot list.
	require.Len(t, result.Bots, 1)
	require.Equal(t, "gpt-4o", result.Bots[0].Name)

	// Both fetched names are recorded, the user's disable preserved.
	pp, err := p.Provider("openai")
	require.NoError(t, err)
	require.Equal(t, []prefs.ModelFlag{
		{Name: "gpt-4o", Enabled: true},
		{Name: "o3-mini", Enabled: false},
	}, pp.Models)
}

func TestFinalizePersistsRewrittenSelection(t *testing.T) {
	o, p := newTestOrchestrator(t)
	require.NoError(t, p.SetCurrentChatModel("9;retired-m@openai"))

	fetch, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("openai")}, true)
	_, result := o.CompleteFetch(fetch, []bots.Bot{bots.New("gpt-4o", "openai")}, nil)
	require.NotNil(t, result)
	require.True(t, result.Restored)
	require.True(t, result.Selection.Found)
	require.True(t, result.Selection.Rewritten)
	require.Equal(t, "6;gpt-4o@openai", p.CurrentChatModel)
}

func TestFinalizeFuzzyMatchRewritesModelsPrefix(t *testing.T) {
	o, p := newTestOrchestrator(t)
	require.NoError(t, p.SetCurrentChatModel(bots.FormatID("gemini-2.0-flash", "gemini")))

	fetch, _ := o.StartCycle([]prefs.ProviderPrefs{enabledProvider("gemini")}, true)
	live := bots.New("models/gemini-2.0-flash", "gemini")
	_, result := o.CompleteFetch(fetch, []bots.Bot{live}, nil)
	require.NotNil(t, result)
	require.Equal(t, live.ID, result.Selection.Bot.ID)
	require.Equal(t, live.ID, p.CurrentChatModel)
}

func TestRunCycleDrivesProvidersOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	p := prefs.Load(t.TempDir())
	for _, sp := range prefs.SupportedProviders() {
		if sp.ID != "openai" {
			require.NoError(t, p.SetProviderEnabled(sp.ID, false))
		}
	}
	require.NoError(t, p.SetProviderURL("openai", srv.URL+"/v1"))
	require.NoError(t, p.SetProviderAPIKey("openai", "test-key"))

	o := New(registry.NewManager(), p, 5*time.Second, func(pp prefs.ProviderPrefs) string { return pp.APIKey })

	result, outcomes, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.Equal(t, "openai", outcomes[0].ProviderID)
	require.Equal(t, 2, outcomes[0].BotCount)
	require.NoError(t, outcomes[0].Err)
	require.Len(t, result.Bots, 2)
	require.Equal(t, "6;gpt-4o@openai", result.Selection.Bot.ID)
	require.Equal(t, "6;gpt-4o@openai", p.CurrentChatModel, "first pick is persisted")
}
