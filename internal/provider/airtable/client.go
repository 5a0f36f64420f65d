// Package airtable writes survey rows and interaction logs to Airtable.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rpggio/searchstudy/internal/repository"
)

// DefaultBaseURL is the Airtable REST endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

// ErrNotConfigured is returned when the API key or base id is missing.
var ErrNotConfigured = errors.New("airtable not configured: missing AIRTABLE_API_KEY or AIRTABLE_BASE_ID")

// ProviderError reports a non-2xx reply from Airtable.
type ProviderError struct {
	Status int
	Body   string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("airtable returned %d", e.Status)
}

// Retryable reports whether the failure is worth another attempt.
func (e *ProviderError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// Recorder observes provider calls.
type Recorder interface {
	ObserveProviderRequest(provider, outcome string, d time.Duration)
}

// Client posts rows to tables of one Airtable base.
type Client struct {
	APIKey     string
	BaseID     string
	BaseURL    string
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *slog.Logger
}

var _ repository.TableWriter = (*Client)(nil)

// NewClient creates a client with the default endpoint and a 10 second timeout.
func NewClient(apiKey, baseID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		APIKey:     apiKey,
		BaseID:     baseID,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

type record struct {
	Fields map[string]any `json:"fields"`
}

type recordsBody struct {
	Records []record `json:"records"`
}

// Save appends one row to table.
func (c *Client) Save(ctx context.Context, table string, fields map[string]any, shape repository.Shape) error {
	if c.APIKey == "" || c.BaseID == "" {
		return ErrNotConfigured
	}
	if table == "" {
		return fmt.Errorf("%w: table name required", repository.ErrInvalidInput)
	}

	var payload any = recordsBody{Records: []record{{Fields: fields}}}
	if shape == repository.ShapeFields {
		payload = record{Fields: fields}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s row: %w", table, err)
	}

	endpoint := c.BaseURL + "/" + url.PathEscape(c.BaseID) + "/" + url.PathEscape(table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", table, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.observe("error", start)
		return fmt.Errorf("post %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.observe("error", start)
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.Logger.Warn("airtable write rejected", "table", table, "status", resp.StatusCode)
		return &ProviderError{Status: resp.StatusCode, Body: string(data)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	c.observe("ok", start)
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.Recorder != nil {
		c.Recorder.ObserveProviderRequest("airtable", outcome, time.Since(start))
	}
}
