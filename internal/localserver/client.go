// Package localserver talks to the optional companion model server that
// handles local model discovery and downloads.
package localserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status tracks reachability of the companion server.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "disconnected"
	}
}

// Model is a downloadable model listed by the server.
type Model struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Author       string      `json:"author,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	Architecture string      `json:"architecture,omitempty"`
	Size         string      `json:"size,omitempty"`
	Files        []ModelFile `json:"files,omitempty"`
}

// ModelFile is one artifact of a model.
type ModelFile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SizeBytes  int64  `json:"size_bytes"`
	Quantized  string `json:"quantization,omitempty"`
	Downloaded bool   `json:"downloaded"`
}

// DownloadedFile is a fully downloaded artifact on disk.
type DownloadedFile struct {
	FileID       string    `json:"file_id"`
	ModelID      string    `json:"model_id"`
	Name         string    `json:"name"`
	SizeBytes    int64     `json:"size_bytes"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// PendingDownload is an in-progress or paused download.
type PendingDownload struct {
	FileID   string  `json:"file_id"`
	ModelID  string  `json:"model_id"`
	Progress float64 `json:"progress"`
	Paused   bool    `json:"paused"`
}

// Client is the HTTP client for the companion server. Safe for concurrent
// use; the connection status is guarded separately from requests.
type Client struct {
	base string
	http *http.Client

	mu     sync.Mutex
	status Status
	errMsg string
}

func New(port int, timeout time.Duration) *Client {
	return NewWithBase(fmt.Sprintf("http://localhost:%d", port), timeout)
}

func NewWithBase(baseURL string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Status returns the last observed connection status and, for StatusError,
// its message.
func (c *Client) Status() (Status, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status, c.errMsg
}

func (c *Client) setStatus(s Status, msg string) {
	c.mu.Lock()
	c.status = s
	c.errMsg = msg
	c.mu.Unlock()
}

// Ping probes the server and updates the tracked status.
func (c *Client) Ping(ctx context.Context) error {
	c.setStatus(StatusConnecting, "")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/ping", nil)
	if err != nil {
		c.setStatus(StatusError, err.Error())
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.setStatus(StatusDisconnected, "")
		log.Debug().Err(err).Msg("local server unreachable")
		return fmt.Errorf("connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("server returned status %d", resp.StatusCode)
		c.setStatus(StatusError, msg)
		return fmt.Errorf("%s", msg)
	}
	c.setStatus(StatusConnected, "")
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) FeaturedModels(ctx context.Context) ([]Model, error) {
	var out []Model
	if err := c.getJSON(ctx, "/models/featured", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SearchModels(ctx context.Context, query string) ([]Model, error) {
	var out []Model
	path := "/models/search?q=" + url.QueryEscape(query)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DownloadedFiles(ctx context.Context) ([]DownloadedFile, error) {
	var out []DownloadedFile
	if err := c.getJSON(ctx, "/files", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PendingDownloads(ctx context.Context) ([]PendingDownload, error) {
	var out []PendingDownload
	if err := c.getJSON(ctx, "/downloads", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartDownload asks the server to begin downloading a file.
func (c *Client) StartDownload(ctx context.Context, fileID string) error {
	body, err := json.Marshal(map[string]string{"file_id": fileID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/downloads", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to start download: %s", strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) PauseDownload(ctx context.Context, fileID string) error {
	return c.simpleRequest(ctx, http.MethodPost, "/downloads/"+url.PathEscape(fileID), "pause download")
}

func (c *Client) CancelDownload(ctx context.Context, fileID string) error {
	return c.simpleRequest(ctx, http.MethodDelete, "/downloads/"+url.PathEscape(fileID), "cancel download")
}

func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	return c.simpleRequest(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), "delete file")
}

func (c *Client) simpleRequest(ctx context.Context, method, path, action string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to %s: status %d", action, resp.StatusCode)
	}
	return nil
}
