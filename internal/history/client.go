// Package history talks to the REST endpoint that stores chat backlogs.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/soyeahso/slotchat/internal/config"
	"github.com/soyeahso/slotchat/internal/domain"
)

// ThreadResponse is the body of GET /chat/{threadId}.
type ThreadResponse struct {
	Messages []domain.Message `json:"messages"`
}

// PostRequest is the body of POST /chat/{threadId}.
type PostRequest struct {
	Message domain.Message `json:"message"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("history: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("history: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Client is a small HTTP client for the history endpoint.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// New creates a client from the api config section.
func New(cfg config.APIConfig) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) threadURL(threadID string) string {
	return fmt.Sprintf("%s/chat/%s", c.baseURL, url.PathEscape(threadID))
}

// Fetch returns the stored backlog for threadID in server order.
func (c *Client) Fetch(ctx context.Context, threadID string) ([]domain.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.threadURL(threadID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var result ThreadResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return result.Messages, nil
}

// Persist stores msg in threadID.
func (c *Client) Persist(ctx context.Context, threadID string, msg domain.Message) error {
	payload, err := json.Marshal(PostRequest{Message: msg})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.threadURL(threadID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return body, nil
}
