package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/session"
)

const challengePage = `<html><head><title>Just a moment...</title></head><body><div id="challenge-form"></div></body></html>`

func init() {
	engine.Init(engine.Config{
		FetchTimeout:    5 * time.Second,
		NavigateTimeout: 5 * time.Second,
	})
}

// failNavigate is a NavigateFunc for tests that must not reach the
// browser path.
func failNavigate(t *testing.T) NavigateFunc {
	return func(context.Context, string, []session.Cookie, time.Duration) (*NavigateResult, error) {
		t.Fatal("browser path invoked unexpectedly")
		return nil, nil
	}
}

func TestFetchFastPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><title>Article</title></head><body><p>hello</p></body></html>"))
	}))
	defer srv.Close()

	f := New(session.NewMemory(), WithNavigate(failNavigate(t)))
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Contains(t, got.HTML, "hello")
	assert.False(t, got.Browser)
}

func TestFetchAuthRequiredNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := New(session.NewMemory(), WithNavigate(failNavigate(t)))
	_, err := f.Fetch(context.Background(), srv.URL)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindAuthRequired, fe.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchEscalatesToBrowserOnChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(challengePage))
	}))
	defer srv.Close()

	var browserCalls int
	navigate := func(_ context.Context, _ string, _ []session.Cookie, _ time.Duration) (*NavigateResult, error) {
		browserCalls++
		return &NavigateResult{HTML: "<html><title>Real page</title><body>content</body></html>", Status: 200}, nil
	}

	f := New(session.NewMemory(), WithNavigate(navigate))
	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, got.Browser)
	assert.Equal(t, 1, browserCalls)
	assert.Contains(t, got.HTML, "Real page")
}

func TestFetchBlockedAfterOneExtendedRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(challengePage))
	}))
	defer srv.Close()

	var settles []time.Duration
	navigate := func(_ context.Context, _ string, _ []session.Cookie, settle time.Duration) (*NavigateResult, error) {
		settles = append(settles, settle)
		return &NavigateResult{HTML: challengePage, Status: 503}, nil
	}

	f := New(session.NewMemory(), WithNavigate(navigate))
	_, err := f.Fetch(context.Background(), srv.URL)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindBlocked, fe.Kind)

	// Exactly one retry, with a longer settle wait than the first try.
	require.Len(t, settles, 2)
	assert.Greater(t, settles[1], settles[0])
}

func TestFetchBrowserPersistsHarvestedCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(challengePage))
	}))
	defer srv.Close()

	harvested := []session.Cookie{{Name: "auth", Value: "tok", Domain: "127.0.0.1", Path: "/"}}
	navigate := func(_ context.Context, _ string, _ []session.Cookie, _ time.Duration) (*NavigateResult, error) {
		return &NavigateResult{HTML: "<title>ok</title>real content", Status: 200, Cookies: harvested}, nil
	}

	sessions := session.NewMemory()
	f := New(sessions, WithNavigate(navigate))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	st, err := sessions.Get(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, harvested, st.Cookies)
}

func TestFetchBrowserInjectsStoredCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(challengePage))
	}))
	defer srv.Close()

	sessions := session.NewMemory()
	stored := &session.State{
		Domain:  "127.0.0.1",
		Cookies: []session.Cookie{{Name: "auth", Value: "stored-tok"}},
	}
	require.NoError(t, sessions.Put(context.Background(), stored))

	var injected []session.Cookie
	navigate := func(_ context.Context, _ string, cookies []session.Cookie, _ time.Duration) (*NavigateResult, error) {
		injected = cookies
		return &NavigateResult{HTML: "<title>ok</title>content", Status: 200}, nil
	}

	f := New(sessions, WithNavigate(navigate))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, injected, 1)
	assert.Equal(t, "stored-tok", injected[0].Value)
}

func TestFetchNavigateErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(challengePage))
	}))
	defer srv.Close()

	navigate := func(context.Context, string, []session.Cookie, time.Duration) (*NavigateResult, error) {
		return nil, errors.New("chrome crashed")
	}

	f := New(session.NewMemory(), WithNavigate(navigate))
	_, err := f.Fetch(context.Background(), srv.URL)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, KindNetwork, fe.Kind)
}

func TestDomain(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://www.Example.com/a", "example.com"},
		{"https://blog.example.com/post", "blog.example.com"},
		{"http://example.com:8080/x", "example.com"},
	}
	for _, tt := range tests {
		if got := Domain(tt.input); got != tt.want {
			t.Errorf("Domain(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
