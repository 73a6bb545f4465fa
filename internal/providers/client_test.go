package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestClient(providerID, baseURL, apiKey string, rt roundTripFunc) *Client {
	c := NewClient(providerID, baseURL, apiKey, 5*time.Second)
	c.http = &http.Client{Transport: rt}
	return c
}

func TestListBotsTagsProvider(t *testing.T) {
	t.Parallel()

	c := newTestClient("openai", "https://api.openai.com/v1", "test-key", func(r *http.Request) (*http.Response, error) {
		if got := r.URL.String(); got != "https://api.openai.com/v1/models" {
			t.Fatalf("unexpected URL: %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"data":[{"id":"gpt-4o"},{"id":"  "},{"id":"gpt-4o-mini"}]}`)),
			Header:     make(http.Header),
		}, nil
	})

	got, err := c.ListBots(context.Background())
	if err != nil {
		t.Fatalf("list bots: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(got))
	}
	if got[0].Name != "gpt-4o" || got[0].Provider != "openai" {
		t.Fatalf("unexpected first bot %+v", got[0])
	}
	if got[1].ID != "11;gpt-4o-mini@openai" {
		t.Fatalf("unexpected second bot id %q", got[1].ID)
	}
}

func TestListBotsUnauthorized(t *testing.T) {
	t.Parallel()

	c := newTestClient("openai", "https://api.openai.com/v1", "bad-key", func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader(`{"error":"bad key"}`)),
			Header:     make(http.Header),
		}, nil
	})

	_, err := c.ListBots(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if authErr.Provider != "openai" {
		t.Fatalf("unexpected provider %q", authErr.Provider)
	}
}

func TestListBotsTrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	c := newTestClient("ollama", "http://localhost:11434/v1/", "", func(r *http.Request) (*http.Response, error) {
		if got := r.URL.String(); got != "http://localhost:11434/v1/models" {
			t.Fatalf("unexpected URL: %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatal("expected no auth header without api key")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"data":[]}`)),
			Header:     make(http.Header),
		}, nil
	})

	if _, err := c.ListBots(context.Background()); err != nil {
		t.Fatalf("list bots: %v", err)
	}
}

func TestCompleteStreamsTokens(t *testing.T) {
	t.Parallel()

	stream := strings.Join([]string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		``,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")

	c := newTestClient("openai", "https://api.openai.com/v1", "test-key", func(r *http.Request) (*http.Response, error) {
		if got := r.URL.Path; !strings.HasSuffix(got, "/chat/completions") {
			t.Fatalf("unexpected path: %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":true`) {
			t.Fatalf("expected streaming request, got %s", body)
		}
		header := make(http.Header)
		header.Set("Content-Type", "text/event-stream")
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(stream)),
			Header:     header,
		}, nil
	})

	var tokens []string
	resp, err := c.Complete(context.Background(), "gpt-4o", []Message{{Role: "user", Content: "hi"}}, func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "Hello" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if len(tokens) != 2 || tokens[0] != "Hel" || tokens[1] != "lo" {
		t.Fatalf("unexpected tokens %v", tokens)
	}
}

func TestCompleteNonStreaming(t *testing.T) {
	t.Parallel()

	c := newTestClient("deepseek", "https://api.deepseek.com/v1", "test-key", func(r *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":false`) {
			t.Fatalf("expected non-streaming request, got %s", body)
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"choices":[{"message":{"content":"42"},"finish_reason":"stop"}]}`)),
			Header:     make(http.Header),
		}, nil
	})

	resp, err := c.Complete(context.Background(), "deepseek-chat", []Message{{Role: "user", Content: "answer?"}}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if resp.Text != "42" || resp.FinishReason != "stop" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCompleteUnauthorized(t *testing.T) {
	t.Parallel()

	c := newTestClient("openai", "https://api.openai.com/v1", "bad-key", func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
		}, nil
	})

	_, err := c.Complete(context.Background(), "gpt-4o", nil, nil)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}
