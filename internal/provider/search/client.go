// Package search adapts the Google Custom Search JSON API.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rpggio/searchstudy/internal/domain/task"
)

const (
	// DefaultBaseURL is the Custom Search endpoint.
	DefaultBaseURL = "https://www.googleapis.com/customsearch/v1"
	// PageSize is the largest page the API serves.
	PageSize = 10
	// MaxResults is the deepest result index the API allows.
	MaxResults = 100
)

// ErrNotConfigured is returned when the API key or engine id is missing.
var ErrNotConfigured = errors.New("search not configured: missing GOOGLE_CSE_API_KEY or GOOGLE_CSE_CX")

// UpstreamError reports a non-2xx reply from the search API.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("search upstream returned %d", e.Status)
}

// Recorder observes provider calls.
type Recorder interface {
	ObserveProviderRequest(provider, outcome string, d time.Duration)
}

// Client pages through Custom Search results.
type Client struct {
	APIKey     string
	EngineID   string
	BaseURL    string
	HTTPClient *http.Client
	Recorder   Recorder
	Logger     *slog.Logger
}

// NewClient creates a client with default endpoint and a 10 second timeout.
func NewClient(apiKey, engineID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		APIKey:     apiKey,
		EngineID:   engineID,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Logger:     logger,
	}
}

type item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

type page struct {
	Items []item `json:"items"`
}

var _ task.Searcher = (*Client)(nil)

// Search returns up to desired results for query, fetching pages of ten until
// a short page arrives or enough results are collected.
func (c *Client) Search(ctx context.Context, query string, desired int) ([]task.Result, error) {
	if c.APIKey == "" || c.EngineID == "" {
		return nil, ErrNotConfigured
	}
	if desired <= 0 {
		desired = PageSize
	}
	if desired > MaxResults {
		desired = MaxResults
	}

	start := time.Now()
	pages := (desired + PageSize - 1) / PageSize
	results := make([]task.Result, 0, desired)
	for i := 0; i < pages; i++ {
		items, err := c.fetchPage(ctx, query, i*PageSize+1)
		if err != nil {
			c.observe("error", start)
			return nil, err
		}
		for _, it := range items {
			results = append(results, task.Result{
				Title:       it.Title,
				Snippet:     it.Snippet,
				Link:        it.Link,
				DisplayLink: it.DisplayLink,
			})
		}
		if len(items) < PageSize {
			break
		}
	}
	c.observe("ok", start)

	if len(results) > desired {
		results = results[:desired]
	}
	c.Logger.Debug("search complete", "query_len", len(query), "pages", pages, "results", len(results))
	return results, nil
}

func (c *Client) fetchPage(ctx context.Context, query string, startIndex int) ([]item, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", c.APIKey)
	q.Set("cx", c.EngineID)
	q.Set("q", query)
	q.Set("start", strconv.Itoa(startIndex))
	q.Set("num", strconv.Itoa(PageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return p.Items, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) observe(outcome string, start time.Time) {
	if c.Recorder != nil {
		c.Recorder.ObserveProviderRequest("search", outcome, time.Since(start))
	}
}
