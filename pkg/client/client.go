package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client provides HTTP client functionality to communicate with a tempchan
// daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new tempchan API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultConfig().BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: config.Timeout},
		logger:  config.Logger,
	}
}

// Health checks daemon liveness.
func (c *Client) Health(ctx context.Context) error {
	var resp OKResponse
	return c.get(ctx, "/healthz", &resp)
}

// Slots lists tracked slots in creation order.
func (c *Client) Slots(ctx context.Context) ([]Slot, error) {
	var out []Slot
	if err := c.get(ctx, "/slots", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Groups lists the configured groups.
func (c *Client) Groups(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := c.get(ctx, "/groups", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pending lists outstanding pick requests.
func (c *Client) Pending(ctx context.Context) ([]PendingRequest, error) {
	var out []PendingRequest
	if err := c.get(ctx, "/pending", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Allocate requests a slot in a group, optionally with a specific preset
// name.
func (c *Client) Allocate(ctx context.Context, req AllocateRequest) (Slot, error) {
	var out Slot
	if err := c.post(ctx, "/allocate", req, &out); err != nil {
		return Slot{}, err
	}
	return out, nil
}

// Pick completes a pending manual-mode request with the chosen preset name.
func (c *Client) Pick(ctx context.Context, req PickRequest) (Slot, error) {
	var out Slot
	if err := c.post(ctx, "/pick", req, &out); err != nil {
		return Slot{}, err
	}
	return out, nil
}

// Evict removes an empty slot. Unknown ids succeed: eviction is idempotent.
func (c *Client) Evict(ctx context.Context, slotID string) error {
	var resp OKResponse
	return c.post(ctx, "/evict", EvictRequest{SlotID: slotID}, &resp)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	c.logger.Debug("api request", "method", req.Method, "url", req.URL.String())
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
		}
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
