// Package store persists digest records and runs the duplicate gate
// that keeps already-summarized URLs from being reprocessed.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/transcript"
)

// Record is one summarized piece of content. NormalizedURL is the
// duplicate-detection key and is unique.
type Record struct {
	ID               string               `json:"id"`
	SourceURL        string               `json:"source_url"`
	NormalizedURL    string               `json:"normalized_url"`
	MediaKind        string               `json:"media_kind"`
	Title            string               `json:"title"`
	Summary          string               `json:"summary"`
	KeyPoints        []string             `json:"key_points,omitempty"`
	Transcript       []transcript.Segment `json:"transcript,omitempty"`
	TranscriptMethod string               `json:"transcript_method,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Records is the persistence boundary for digest records.
// FindByNormalizedURL returns (nil, nil) when no record exists.
type Records interface {
	Save(ctx context.Context, rec *Record) (*Record, error)
	FindByNormalizedURL(ctx context.Context, normalizedURL string) (*Record, error)
	GetByID(ctx context.Context, id string) (*Record, error)
}

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
    id                TEXT PRIMARY KEY,
    source_url        TEXT NOT NULL,
    normalized_url    TEXT NOT NULL UNIQUE,
    media_kind        TEXT NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    summary           TEXT NOT NULL DEFAULT '',
    key_points        JSONB NOT NULL DEFAULT '[]',
    transcript        JSONB NOT NULL DEFAULT '[]',
    transcript_method TEXT NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);
`

// PostgresRecords implements Records on a pgx connection pool.
type PostgresRecords struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the schema exists.
func NewPostgres(ctx context.Context, databaseURL string) (*PostgresRecords, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, recordsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init records schema: %w", err)
	}
	return &PostgresRecords{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresRecords) Close() {
	s.pool.Close()
}

// Ping verifies database connectivity.
func (s *PostgresRecords) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save upserts by normalized URL. Re-saving an existing URL (force
// reprocess) overwrites the previous record, last writer wins, and
// keeps the original id and created_at.
func (s *PostgresRecords) Save(ctx context.Context, rec *Record) (*Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	keyPoints, err := json.Marshal(rec.KeyPoints)
	if err != nil {
		return nil, fmt.Errorf("encode key points: %w", err)
	}
	segments, err := json.Marshal(rec.Transcript)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO records (id, source_url, normalized_url, media_kind, title, summary, key_points, transcript, transcript_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (normalized_url) DO UPDATE SET
			source_url        = excluded.source_url,
			media_kind        = excluded.media_kind,
			title             = excluded.title,
			summary           = excluded.summary,
			key_points        = excluded.key_points,
			transcript        = excluded.transcript,
			transcript_method = excluded.transcript_method,
			updated_at        = now()
		RETURNING id, created_at, updated_at`,
		rec.ID, rec.SourceURL, rec.NormalizedURL, rec.MediaKind,
		rec.Title, rec.Summary, keyPoints, segments, rec.TranscriptMethod,
	)

	saved := *rec
	if err := row.Scan(&saved.ID, &saved.CreatedAt, &saved.UpdatedAt); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	engine.IncrRecordsSaved()
	return &saved, nil
}

// FindByNormalizedURL looks up a record by its duplicate key.
func (s *PostgresRecords) FindByNormalizedURL(ctx context.Context, normalizedURL string) (*Record, error) {
	return s.scanOne(ctx, `WHERE normalized_url = $1`, normalizedURL)
}

// GetByID fetches a record by identifier.
func (s *PostgresRecords) GetByID(ctx context.Context, id string) (*Record, error) {
	return s.scanOne(ctx, `WHERE id = $1`, id)
}

func (s *PostgresRecords) scanOne(ctx context.Context, where string, arg any) (*Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source_url, normalized_url, media_kind, title, summary, key_points, transcript, transcript_method, created_at, updated_at
		FROM records `+where, arg)

	var rec Record
	var keyPoints, segments []byte
	err := row.Scan(&rec.ID, &rec.SourceURL, &rec.NormalizedURL, &rec.MediaKind,
		&rec.Title, &rec.Summary, &keyPoints, &segments, &rec.TranscriptMethod,
		&rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal(keyPoints, &rec.KeyPoints); err != nil {
		return nil, fmt.Errorf("decode key points: %w", err)
	}
	if err := json.Unmarshal(segments, &rec.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return &rec, nil
}
