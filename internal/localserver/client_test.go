package localserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBase(srv.URL, 5*time.Second)
}

func TestPingTracksStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	})

	st, _ := c.Status()
	require.Equal(t, StatusDisconnected, st)

	require.NoError(t, c.Ping(context.Background()))
	st, _ = c.Status()
	require.Equal(t, StatusConnected, st)
}

func TestPingServerErrorSetsErrorStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.Error(t, c.Ping(context.Background()))
	st, msg := c.Status()
	require.Equal(t, StatusError, st)
	require.Contains(t, msg, "500")
}

func TestPingUnreachableSetsDisconnected(t *testing.T) {
	c := NewWithBase("http://127.0.0.1:1", 100*time.Millisecond)
	require.Error(t, c.Ping(context.Background()))
	st, _ := c.Status()
	require.Equal(t, StatusDisconnected, st)
}

func TestSearchModelsEscapesQuery(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/search", r.URL.Path)
		require.Equal(t, "llama 3 8b", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode([]Model{{ID: "llama-3-8b", Name: "Llama 3 8B"}})
	})

	models, err := c.SearchModels(context.Background(), "llama 3 8b")
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.Equal(t, "llama-3-8b", models[0].ID)
}

func TestFeaturedModelsAndFiles(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/featured":
			_ = json.NewEncoder(w).Encode([]Model{{ID: "m1"}, {ID: "m2"}})
		case "/files":
			_ = json.NewEncoder(w).Encode([]DownloadedFile{{FileID: "f1", SizeBytes: 42}})
		case "/downloads":
			_ = json.NewEncoder(w).Encode([]PendingDownload{{FileID: "f2", Progress: 0.5, Paused: true}})
		default:
			http.NotFound(w, r)
		}
	})

	models, err := c.FeaturedModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)

	files, err := c.DownloadedFiles(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(42), files[0].SizeBytes)

	pending, err := c.PendingDownloads(context.Background())
	require.NoError(t, err)
	require.True(t, pending[0].Paused)
}

func TestDownloadLifecycleRequests(t *testing.T) {
	var calls []string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost && r.URL.Path == "/downloads" {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "f1", body["file_id"])
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	require.NoError(t, c.StartDownload(ctx, "f1"))
	require.NoError(t, c.PauseDownload(ctx, "f1"))
	require.NoError(t, c.CancelDownload(ctx, "f1"))
	require.NoError(t, c.DeleteFile(ctx, "f1"))

	require.Equal(t, []string{
		"POST /downloads",
		"POST /downloads/f1",
		"DELETE /downloads/f1",
		"DELETE /files/f1",
	}, calls)
}
