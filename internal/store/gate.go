package store

import (
	"context"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Gate is the duplicate check that runs before any fetch or
// transcription work. Lookups go through the record cache when one is
// configured.
type Gate struct {
	records Records
	cache   *RecordCache // optional
}

// NewGate builds a Gate. cache may be nil.
func NewGate(records Records, cache *RecordCache) *Gate {
	return &Gate{records: records, cache: cache}
}

// Check returns the existing record for a normalized URL, or nil when
// the URL is new. With force set, the gate reports the URL as new and
// drops any cached entry so the reprocessed record takes its place.
func (g *Gate) Check(ctx context.Context, normalizedURL string, force bool) (*Record, error) {
	if force {
		if g.cache != nil {
			g.cache.Invalidate(ctx, normalizedURL)
		}
		return nil, nil
	}

	if g.cache != nil {
		if rec, ok := g.cache.Get(ctx, normalizedURL); ok {
			engine.IncrDuplicateHits()
			return rec, nil
		}
	}

	rec, err := g.records.FindByNormalizedURL(ctx, normalizedURL)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	engine.IncrDuplicateHits()
	if g.cache != nil {
		g.cache.Set(ctx, rec)
	}
	return rec, nil
}

// Saved records a freshly persisted record in the cache so immediate
// resubmissions hit without a database round trip.
func (g *Gate) Saved(ctx context.Context, rec *Record) {
	if g.cache != nil {
		g.cache.Set(ctx, rec)
	}
}
