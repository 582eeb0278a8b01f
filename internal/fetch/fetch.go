// Package fetch retrieves raw page content, preferring a lightweight
// HTTP path and escalating to a headless browser when a site requires
// JavaScript rendering or serves a bot challenge.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/session"
)

// RawContent is the result of a successful fetch.
type RawContent struct {
	SourceURL   string
	FinalURL    string
	HTML        string
	StatusCode  int
	ContentType string
	Browser     bool // true when the headless path produced it
	FetchedAt   time.Time
}

// Fetcher retrieves URLs using a fast HTTP path with a headless
// browser fallback. Safe for concurrent use.
type Fetcher struct {
	sessions session.Store
	navigate NavigateFunc

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher backed by the given session store. The
// headless path uses chromedp unless overridden via WithNavigate.
func New(sessions session.Store, opts ...Option) *Fetcher {
	f := &Fetcher{
		sessions: sessions,
		navigate: chromedpNavigate,
		limiters: make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithNavigate replaces the headless navigation implementation.
func WithNavigate(fn NavigateFunc) Option {
	return func(f *Fetcher) { f.navigate = fn }
}

// Fetch retrieves url. It tries the fast HTTP path first; on a bot
// challenge or an empty render it escalates to the browser path, which
// retries a detected challenge once with an extended wait before
// giving up with a blocked error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*RawContent, error) {
	engine.IncrFetchRequests()

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	if err := f.waitHost(ctx, u.Hostname()); err != nil {
		return nil, &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}

	content, err := f.fetchFast(ctx, rawURL)
	if err == nil && !isChallenge(content.StatusCode, content.HTML) {
		return content, nil
	}
	if err != nil {
		var fe *Error
		if errors.As(err, &fe) && fe.Kind == KindAuthRequired {
			engine.IncrFetchErrors()
			return nil, err
		}
		slog.Debug("fast path failed, escalating to browser",
			slog.String("url", rawURL), slog.Any("error", err))
	} else {
		slog.Debug("fast path challenged, escalating to browser", slog.String("url", rawURL))
	}

	content, err = f.fetchBrowser(ctx, rawURL, u.Hostname())
	if err != nil {
		engine.IncrFetchErrors()
		return nil, err
	}
	return content, nil
}

// waitHost enforces the per-host rate limit.
func (f *Fetcher) waitHost(ctx context.Context, host string) error {
	f.mu.Lock()
	lim, ok := f.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Second), 2)
		f.limiters[host] = lim
	}
	f.mu.Unlock()
	return lim.Wait(ctx)
}

// fetchFast performs a direct GET. Uses the Chrome-fingerprint client
// when configured, otherwise a plain HTTP client with backoff retry.
func (f *Fetcher) fetchFast(ctx context.Context, rawURL string) (*RawContent, error) {
	if bc := engine.Cfg.BrowserClient; bc != nil {
		body, _, status, err := bc.Do(http.MethodGet, rawURL, engine.ChromeHeaders(), nil)
		if err != nil {
			return nil, f.wrapNetErr(rawURL, err)
		}
		if isAuthStatus(status) {
			return nil, &Error{Kind: KindAuthRequired, URL: rawURL, Status: status}
		}
		return &RawContent{
			SourceURL:  rawURL,
			FinalURL:   rawURL,
			HTML:       string(body),
			StatusCode: status,
			FetchedAt:  time.Now(),
		}, nil
	}

	resp, err := f.fetchWithRetry(ctx, rawURL)
	if err != nil {
		return nil, f.wrapNetErr(rawURL, err)
	}
	defer resp.Body.Close()

	if isAuthStatus(resp.StatusCode) {
		return nil, &Error{Kind: KindAuthRequired, URL: rawURL, Status: resp.StatusCode}
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: rawURL, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}
	return &RawContent{
		SourceURL:   rawURL,
		FinalURL:    finalURL,
		HTML:        string(body),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now(),
	}, nil
}

// fetchWithRetry performs an HTTP GET with exponential backoff on
// retryable statuses. Auth and client errors are permanent.
func (f *Fetcher) fetchWithRetry(ctx context.Context, fetchURL string) (*http.Response, error) {
	client := engine.Cfg.HTTPClient
	if client == nil {
		client = defaultClient
	}

	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := client.Do(req)
		if err != nil {
			if isTimeoutErr(err) {
				return nil, err // transient, let backoff retry
			}
			return nil, backoff.Permanent(err)
		}
		if engine.IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second

	timeout := engine.Cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
		backoff.WithMaxElapsedTime(timeout))
}

var defaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	},
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		return nil
	},
}

// readResponseBody reads the response body, handling gzip if needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) wrapNetErr(rawURL string, err error) error {
	if isTimeoutErr(err) {
		return &Error{Kind: KindTimeout, URL: rawURL, Err: err}
	}
	return &Error{Kind: KindNetwork, URL: rawURL, Err: err}
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Domain extracts the registrable host portion used as a session key.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
