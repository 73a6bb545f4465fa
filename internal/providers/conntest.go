package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ConnResult reports the outcome of probing a provider endpoint.
type ConnResult struct {
	Connected  bool
	Endpoint   string
	ModelCount int
	Detail     string
}

// TestConnection probes the provider's model list, trying the common
// endpoint layouts in order. A 404 means "try the next shape", anything
// else settles the result.
func (c *Client) TestConnection(ctx context.Context) ConnResult {
	candidates := []string{
		c.BaseURL + "/models",
		c.BaseURL + "/v1/models",
		c.BaseURL,
	}

	var last ConnResult
	for _, endpoint := range candidates {
		res, retry := c.probe(ctx, endpoint)
		if !retry {
			return res
		}
		last = res
	}
	return last
}

// probe returns (result, retryNext). retryNext is true only for a 404,
// which signals the endpoint shape rather than the server is wrong.
func (c *Client) probe(ctx context.Context, endpoint string) (ConnResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ConnResult{Endpoint: endpoint, Detail: err.Error()}, false
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return ConnResult{Endpoint: endpoint, Detail: "Unable to reach server"}, false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ConnResult{Endpoint: endpoint, Detail: "Not found"}, true
	case resp.StatusCode == http.StatusUnauthorized:
		return ConnResult{Endpoint: endpoint, Detail: "Invalid API key"}, false
	case resp.StatusCode == http.StatusForbidden:
		return ConnResult{Endpoint: endpoint, Detail: "Access denied"}, false
	case resp.StatusCode == http.StatusTooManyRequests:
		return ConnResult{Endpoint: endpoint, Detail: "Rate limited"}, false
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return ConnResult{Endpoint: endpoint, Detail: fmt.Sprintf("Unexpected status %d", resp.StatusCode)}, false
	}

	// Connected. A body we cannot parse still counts; the server answered.
	var result struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	count := 0
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		for _, m := range result.Data {
			if strings.TrimSpace(m.ID) != "" {
				count++
			}
		}
	}
	return ConnResult{Connected: true, Endpoint: endpoint, ModelCount: count}, false
}
