package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/session"
)

// NavigateResult is what one headless navigation produced.
type NavigateResult struct {
	HTML    string
	Status  int
	Cookies []session.Cookie
}

// NavigateFunc performs one headless navigation. settle is how long to
// let the page render after load before snapshotting the DOM.
type NavigateFunc func(ctx context.Context, url string, cookies []session.Cookie, settle time.Duration) (*NavigateResult, error)

const (
	defaultSettle  = 3 * time.Second
	extendedSettle = 12 * time.Second
)

// fetchBrowser runs the headless path: inject stored session cookies,
// navigate, and check for a challenge. A detected challenge gets one
// retry with an extended settle wait; a second challenge is a blocked
// error. New cookies are written back to the session store on success.
func (f *Fetcher) fetchBrowser(ctx context.Context, rawURL, host string) (*RawContent, error) {
	engine.IncrBrowserFetches()

	var cookies []session.Cookie
	if st, err := f.sessions.Get(ctx, host); err == nil && st != nil {
		cookies = st.Cookies
	}

	res, err := f.navigate(ctx, rawURL, cookies, defaultSettle)
	if err != nil {
		return nil, f.wrapNetErr(rawURL, err)
	}

	if isChallenge(res.Status, res.HTML) {
		engine.IncrChallengeRetries()
		slog.Info("bot challenge detected, retrying with extended wait",
			slog.String("url", rawURL))
		res, err = f.navigate(ctx, rawURL, cookies, extendedSettle)
		if err != nil {
			return nil, f.wrapNetErr(rawURL, err)
		}
		if isChallenge(res.Status, res.HTML) {
			return nil, &Error{Kind: KindBlocked, URL: rawURL, Status: res.Status}
		}
	}

	if isAuthStatus(res.Status) {
		return nil, &Error{Kind: KindAuthRequired, URL: rawURL, Status: res.Status}
	}

	if len(res.Cookies) > 0 {
		st := &session.State{Domain: host, Cookies: res.Cookies, CapturedAt: time.Now()}
		if err := f.sessions.Put(ctx, st); err != nil {
			slog.Warn("failed to persist session", slog.String("domain", host), slog.Any("error", err))
		}
	}

	return &RawContent{
		SourceURL:  rawURL,
		FinalURL:   rawURL,
		HTML:       res.HTML,
		StatusCode: res.Status,
		Browser:    true,
		FetchedAt:  time.Now(),
	}, nil
}

// chromedpNavigate is the production NavigateFunc.
func chromedpNavigate(ctx context.Context, rawURL string, cookies []session.Cookie, settle time.Duration) (*NavigateResult, error) {
	timeout := engine.Cfg.NavigateTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(engine.UserAgentChrome),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)
	defer timeoutCancel()

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		return nil, err
	}

	if len(cookies) > 0 {
		if err := chromedp.Run(browserCtx, injectCookies(cookies)); err != nil {
			slog.Warn("cookie injection failed", slog.Any("error", err))
		}
	}

	var html string
	var status int
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(rawURL),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(`window.performance?.getEntriesByType?.('navigation')?.[0]?.responseStatus || 200`, &status),
	)
	if err != nil {
		return nil, err
	}

	var harvested []*network.Cookie
	err = chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		cs, err := network.GetCookies().WithURLs([]string{rawURL}).Do(ctx)
		if err != nil {
			return err
		}
		harvested = cs
		return nil
	}))
	if err != nil {
		slog.Warn("cookie harvest failed", slog.Any("error", err))
	}

	return &NavigateResult{
		HTML:    html,
		Status:  status,
		Cookies: fromNetworkCookies(harvested),
	}, nil
}

// injectCookies sets stored session cookies before navigation.
func injectCookies(cookies []session.Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			setter := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if c.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				setter = setter.WithExpires(&expires)
			}
			if err := setter.Do(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func fromNetworkCookies(cs []*network.Cookie) []session.Cookie {
	out := make([]session.Cookie, 0, len(cs))
	for _, c := range cs {
		out = append(out, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return out
}
