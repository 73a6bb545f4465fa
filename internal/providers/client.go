// Package providers implements the outbound HTTP clients for
// OpenAI-compatible model providers and the credential storage behind them.
package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"polychat/internal/bots"
)

// TokenCallback receives streamed completion tokens as they arrive.
type TokenCallback func(token string)

// Message is the wire form of a chat message.
type Message struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

type CompletionResponse struct {
	Text         string
	FinishReason string
}

// Client talks to one OpenAI-compatible provider endpoint.
type Client struct {
	ProviderID string
	BaseURL    string

	apiKey string
	http   *http.Client
}

func NewClient(providerID, baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		ProviderID: providerID,
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		http:       &http.Client{Timeout: timeout},
	}
}

// Clone returns an independent copy sharing the same configuration. The
// registry hands clones to the chat loop so the active client can be swapped
// without aliasing.
func (c *Client) Clone() *Client {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// ListBots fetches the provider's model list and tags every bot with the
// owning provider id.
func (c *Client) ListBots(ctx context.Context) ([]bots.Bot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, &AuthError{Provider: c.ProviderID, Msg: "Unauthorized: invalid API key"}
		}
		return nil, fmt.Errorf("list models failed, status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	out := make([]bots.Bot, 0, len(result.Data))
	for _, m := range result.Data {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			continue
		}
		out = append(out, bots.New(id, c.ProviderID))
	}
	return out, nil
}

// Complete issues a chat completion. When onToken is non-nil the request is
// streamed and tokens are delivered as they arrive.
func (c *Client) Complete(ctx context.Context, model string, messages []Message, onToken TokenCallback) (CompletionResponse, error) {
	reqMessages := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	payload := map[string]any{
		"model":    model,
		"messages": reqMessages,
		"stream":   onToken != nil,
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return CompletionResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewBuffer(bodyBytes))
	if err != nil {
		return CompletionResponse{}, err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")
	if onToken != nil {
		req.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusUnauthorized {
			return CompletionResponse{}, &AuthError{Provider: c.ProviderID, Msg: "Unauthorized: invalid API key"}
		}
		return CompletionResponse{}, fmt.Errorf("completion failed, status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	contentType := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Type")))
	if onToken != nil && strings.Contains(contentType, "text/event-stream") {
		text, err := readCompletionStream(resp.Body, onToken)
		if err != nil {
			return CompletionResponse{}, err
		}
		return CompletionResponse{Text: text, FinishReason: "stop"}, nil
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode completion response: %w", err)
	}
	if len(result.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("empty response from %s", c.ProviderID)
	}
	choice := result.Choices[0]
	if onToken != nil && choice.Message.Content != "" {
		onToken(choice.Message.Content)
	}
	return CompletionResponse{Text: choice.Message.Content, FinishReason: choice.FinishReason}, nil
}

func readCompletionStream(body io.Reader, onToken TokenCallback) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			out.WriteString(choice.Delta.Content)
			if onToken != nil {
				onToken(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}
