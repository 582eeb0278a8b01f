package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteGetAbsent(t *testing.T) {
	store := newTestStore(t)

	st, err := store.Get(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSQLitePutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := &State{
		Domain: "news.example.com",
		Cookies: []Cookie{
			{Name: "auth", Value: "tok-1", Domain: ".example.com", Path: "/", Secure: true, HTTPOnly: true},
			{Name: "pref", Value: "dark", Domain: "news.example.com", Path: "/"},
		},
		CapturedAt: time.Now().Truncate(time.Second),
	}
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "news.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.Domain, got.Domain)
	assert.Equal(t, want.Cookies, got.Cookies)
	assert.WithinDuration(t, want.CapturedAt, got.CapturedAt, time.Second)
}

func TestSQLitePutOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &State{
		Domain:  "example.com",
		Cookies: []Cookie{{Name: "auth", Value: "old"}},
	}))
	require.NoError(t, store.Put(ctx, &State{
		Domain:  "example.com",
		Cookies: []Cookie{{Name: "auth", Value: "new"}},
	}))

	got, err := store.Get(ctx, "example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Cookies, 1)
	assert.Equal(t, "new", got.Cookies[0].Value)
}

func TestSQLiteCorruptRowReadsAsAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.db.ExecContext(ctx,
		`INSERT INTO sessions (domain, cookies, captured_at) VALUES (?, ?, ?)`,
		"broken.example.com", []byte("{not json"), time.Now(),
	)
	require.NoError(t, err)

	got, err := store.Get(ctx, "broken.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteDomainsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &State{Domain: "a.example.com", Cookies: []Cookie{{Name: "a", Value: "1"}}}))
	require.NoError(t, store.Put(ctx, &State{Domain: "b.example.com", Cookies: []Cookie{{Name: "b", Value: "2"}}}))

	a, err := store.Get(ctx, "a.example.com")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "a", a.Cookies[0].Name)

	b, err := store.Get(ctx, "b.example.com")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "b", b.Cookies[0].Name)
}

func TestMemoryStoreIsolation(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	orig := &State{Domain: "x.example.com", Cookies: []Cookie{{Name: "k", Value: "v"}}}
	require.NoError(t, store.Put(ctx, orig))

	got, err := store.Get(ctx, "x.example.com")
	require.NoError(t, err)
	require.NotNil(t, got)

	// Mutating the returned copy must not affect the stored state.
	got.Cookies[0].Value = "mutated"
	again, err := store.Get(ctx, "x.example.com")
	require.NoError(t, err)
	assert.Equal(t, "v", again.Cookies[0].Value)
}
