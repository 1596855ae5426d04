// Package memory retrieves advisory context snippets from the memory
// service. All failures are swallowed by callers; memory is never on a
// turn's critical path.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"grumpstudio/internal/domain"
)

// Client is an HTTP memory retrieval client.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a memory client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// ListMemories implements domain.MemoryProvider. The caller bounds the
// call with a context timeout; there is no internal retry.
func (c *Client) ListMemories(ctx context.Context, filter string, limit int) ([]domain.MemorySnippet, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("q", filter)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/memories?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("memory service: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Entries []domain.MemorySnippet `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode memory response: %w", err)
	}
	return body.Entries, nil
}

var _ domain.MemoryProvider = (*Client)(nil)
