// Package session persists per-domain authentication state so repeated
// fetches to an authenticated domain do not require re-login.
package session

import (
	"context"
	"encoding/json"
	"time"
)

// Cookie is a single browser cookie captured from an authenticated
// session. Mirrors the fields needed to re-inject into a headless
// browser context.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 = session cookie
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
}

// State is the authentication snapshot for one domain. Overwritten on
// every successful authenticated fetch, never appended.
type State struct {
	Domain     string    `json:"domain"`
	Cookies    []Cookie  `json:"cookies"`
	CapturedAt time.Time `json:"captured_at"`
}

// Store persists session state per domain. Get returns (nil, nil) when
// no usable state exists; a corrupt stored blob is treated as absent,
// never as a fatal error.
type Store interface {
	Get(ctx context.Context, domain string) (*State, error)
	Put(ctx context.Context, state *State) error
}

func encodeCookies(cookies []Cookie) ([]byte, error) {
	return json.Marshal(cookies)
}

func decodeCookies(blob []byte) ([]Cookie, bool) {
	var cookies []Cookie
	if err := json.Unmarshal(blob, &cookies); err != nil {
		return nil, false
	}
	return cookies, true
}
