// Package article fetches a web page and extracts its readable text for the
// study landing page.
package article

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const (
	// DefaultTimeout bounds one fetch.
	DefaultTimeout = 8 * time.Second
	// DefaultMaxChars caps the returned text.
	DefaultMaxChars = 20000
	// DefaultMaxBytes caps the downloaded page.
	DefaultMaxBytes = 5 << 20

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120 Safari/537.36"
	accept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	truncatedSuffix = "\n\n...[truncated]"
)

// Article is the extracted page.
type Article struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	CharCount int    `json:"charCount"`
}

// Options configures a Fetcher.
type Options struct {
	Timeout  time.Duration
	MaxChars int
	MaxBytes int64
	// AllowPrivate disables the private network guard. Tests only.
	AllowPrivate bool
}

// Recorder observes provider calls.
type Recorder interface {
	ObserveProviderRequest(provider, outcome string, d time.Duration)
}

// Fetcher downloads pages and extracts readable text.
type Fetcher struct {
	client   *http.Client
	opts     Options
	extract  *extractor
	Recorder Recorder
	logger   *slog.Logger
}

// NewFetcher creates a fetcher.
func NewFetcher(opts Options, logger *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.AllowPrivate {
		transport.DialContext = safeDialContext(newDialer())
	}
	transport.ResponseHeaderTimeout = opts.Timeout

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if _, err := ValidateURL(req.URL.String(), opts.AllowPrivate); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		},
	}

	return &Fetcher{client: client, opts: opts, extract: newExtractor(), logger: logger}
}

// Fetch downloads raw and returns its readable text.
func (f *Fetcher) Fetch(ctx context.Context, raw string) (*Article, error) {
	u, err := ValidateURL(raw, f.opts.AllowPrivate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	start := time.Now()
	art, err := f.fetch(ctx, u.String())
	outcome := "ok"
	if err != nil {
		outcome = "error"
		f.logger.Debug("article fetch failed", "host", u.Hostname(), "error", err)
	}
	if f.Recorder != nil {
		f.Recorder.ObserveProviderRequest("article", outcome, time.Since(start))
	}
	return art, err
}

func (f *Fetcher) fetch(ctx context.Context, target string) (*Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, ErrInvalidURL
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrTimeout
		}
		if errors.Is(err, ErrBlockedHost) {
			return nil, fmt.Errorf("fetch %s: %w", target, ErrBlockedHost)
		}
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err != nil || mediaType != "text/html" {
		return nil, &ContentTypeError{ContentType: contentType}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, f.opts.MaxBytes))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}

	title, text, err := f.extract.Extract(doc)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", target, err)
	}
	if text == "" {
		return nil, ErrNoContent
	}
	text = truncate(text, f.opts.MaxChars)

	return &Article{
		URL:       target,
		Title:     title,
		Text:      text,
		CharCount: utf8.RuneCountInString(text),
	}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func truncate(s string, maxChars int) string {
	if utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:maxChars]), " \n") + truncatedSuffix
}
