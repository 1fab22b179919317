// Package fetcher downloads a web page and extracts its readable text.
package fetcher

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"webqa/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout      = 20 * time.Second
	DefaultMaxAttempts  = 3
	DefaultMaxBodyBytes = 5 << 20
	DefaultUserAgent    = "webqa/1.0 (+page question answering)"
)

// Elements that never carry page content.
const noiseSelector = "script, style, noscript, template, svg, iframe, nav, header, footer, aside, form"

// Elements whose boundaries become paragraph breaks.
const blockSelector = "p, div, section, article, main, h1, h2, h3, h4, h5, h6, li, ul, ol, dl, dt, dd, " +
	"blockquote, pre, table, tr, td, th, figcaption, caption"

// Config configures the HTTP fetcher.
type Config struct {
	Timeout      time.Duration
	MaxAttempts  int
	MaxBodyBytes int64
	UserAgent    string
}

// Fetcher retrieves pages over HTTP with a bounded retry policy.
type Fetcher struct {
	client       *http.Client
	maxAttempts  int
	maxBodyBytes int64
	userAgent    string
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	log          *slog.Logger
}

// New creates a Fetcher. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, log *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		client:       client,
		maxAttempts:  cfg.MaxAttempts,
		maxBodyBytes: cfg.MaxBodyBytes,
		userAgent:    cfg.UserAgent,
		now:          time.Now,
		sleep:        sleepContext,
		log:          log,
	}
}

// Fetch downloads rawURL and returns its normalized text.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Document, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.Document{}, &domain.FetchError{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.Document{}, &domain.FetchError{URL: rawURL, Err: errors.New("only http and https URLs are supported")}
	}
	if parsed.Host == "" {
		return domain.Document{}, &domain.FetchError{URL: rawURL, Err: errors.New("URL has no host")}
	}
	target := parsed.String()

	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := f.sleep(ctx, lastDelay(lastErr, attempt-1)); err != nil {
				return domain.Document{}, &domain.FetchError{URL: target, Err: err}
			}
		}
		doc, err := f.fetchOnce(ctx, target)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		f.log.Warn("fetch attempt failed", "url", target, "attempt", attempt+1, "error", err)
	}
	var fe *domain.FetchError
	if errors.As(lastErr, &fe) {
		return domain.Document{}, fe
	}
	var se *statusError
	if errors.As(lastErr, &se) {
		return domain.Document{}, &domain.FetchError{URL: target, StatusCode: se.code, Err: se}
	}
	return domain.Document{}, &domain.FetchError{URL: target, Err: lastErr}
}

// statusError carries the response status out of a single attempt.
type statusError struct {
	code       int
	status     string
	retryAfter time.Duration
}

func (e *statusError) Error() string { return "unexpected status " + e.status }

func (f *Fetcher) fetchOnce(ctx context.Context, target string) (domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.Document{}, &domain.FetchError{URL: target, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Document{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &statusError{code: resp.StatusCode, status: resp.Status}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				se.retryAfter = time.Duration(secs) * time.Second
			}
		}
		if retryableStatus(resp.StatusCode) {
			return domain.Document{}, se
		}
		return domain.Document{}, &domain.FetchError{URL: target, StatusCode: resp.StatusCode, Err: se}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return domain.Document{}, fmt.Errorf("read response: %w", err)
	}

	var title, text string
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	switch {
	case contentType == "" || strings.Contains(contentType, "text/html") || strings.Contains(contentType, "application/xhtml+xml"):
		title, text, err = ExtractHTML(string(body))
		if err != nil {
			return domain.Document{}, &domain.FetchError{URL: target, Err: fmt.Errorf("parse HTML: %w", err)}
		}
	case strings.HasPrefix(contentType, "text/"):
		text = Normalize(string(body))
	default:
		return domain.Document{}, &domain.FetchError{URL: target, Err: fmt.Errorf("unsupported content type %q", contentType)}
	}
	if text == "" {
		return domain.Document{}, &domain.FetchError{URL: target, Err: errors.New("no extractable text content")}
	}

	f.log.Debug("page fetched", "url", target, "bytes", len(body), "chars", len(text))
	return domain.Document{
		ID:        hashString(target),
		URL:       target,
		Title:     title,
		Text:      text,
		FetchedAt: f.now().UTC(),
	}, nil
}

// ExtractHTML returns the page title and its normalized body text with
// navigation, scripts and styles removed.
func ExtractHTML(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", err
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")

	doc.Find(noiseSelector).Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml("\n\n")
		s.AfterHtml("\n\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return title, Normalize(root.Text()), nil
}

// Normalize collapses whitespace inside paragraphs and separates paragraphs
// with a single blank line.
func Normalize(text string) string {
	return strings.Join(domain.SplitParagraphs(text), "\n\n")
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return true
	}
	var fe *domain.FetchError
	// Transport errors are plain errors; typed fetch errors are final.
	return !errors.As(err, &fe)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// maxRetryDelay bounds every wait between attempts, Retry-After included.
const maxRetryDelay = 5 * time.Second

func lastDelay(err error, attempt int) time.Duration {
	var se *statusError
	if errors.As(err, &se) && se.retryAfter > 0 {
		return min(se.retryAfter, maxRetryDelay)
	}
	return retryDelay(attempt)
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at maxRetryDelay
	d := base << attempt
	if d > maxRetryDelay || d <= 0 {
		d = maxRetryDelay
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
