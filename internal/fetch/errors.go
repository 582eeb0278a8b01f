package fetch

import "fmt"

// Kind classifies fetch failures. Blocked and auth failures are never
// retried automatically; network and timeout failures are retried with
// backoff before being surfaced.
type Kind string

const (
	KindBlocked      Kind = "blocked"
	KindAuthRequired Kind = "auth_required"
	KindNetwork      Kind = "network"
	KindTimeout      Kind = "timeout"
)

// Error is the typed failure returned by the Fetcher.
type Error struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d)", e.URL, e.Kind, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }
