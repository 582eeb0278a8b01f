// go_digest is a content digest service.
//
// Accepts a URL, fetches the page (plain HTTP with a headless-browser
// escalation for challenged sites), classifies its media, acquires a
// transcript when there is one, summarizes with an LLM, and persists
// the digest record. Progress streams to the caller as SSE.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/joho/godotenv"

	"github.com/anatolykoptev/go_digest/internal/classify"
	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/fetch"
	"github.com/anatolykoptev/go_digest/internal/pipeline"
	"github.com/anatolykoptev/go_digest/internal/server"
	"github.com/anatolykoptev/go_digest/internal/session"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
	"github.com/anatolykoptev/go_digest/internal/transcript"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	initEngine()

	slog.Info("starting go_digest",
		slog.String("version", version),
		slog.String("addr", engine.Cfg.ListenAddr),
	)

	sessions, err := session.NewSQLite(engine.Cfg.SessionDBPath)
	if err != nil {
		slog.Error("session store init failed", slog.Any("error", err))
		os.Exit(1)
	}

	var records store.Records
	if engine.Cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(context.Background(), engine.Cfg.DatabaseURL)
		if err != nil {
			slog.Error("records store init failed", slog.Any("error", err))
			os.Exit(1)
		}
		defer pg.Close()
		records = pg
	} else {
		slog.Warn("DATABASE_URL not set, records are in-memory only")
		records = store.NewMemoryRecords()
	}

	cache := store.NewRecordCache(engine.Cfg.RedisURL,
		engine.Cfg.CacheTTL, engine.Cfg.CacheMaxEntries, engine.Cfg.CacheCleanupInterval)

	p := pipeline.New(
		store.NewGate(records, cache),
		records,
		fetch.New(sessions),
		classify.New(),
		transcript.NewAcquirer(),
		summarize.New(),
	)

	srv := server.New(p, records)
	if err := srv.ListenAndServe(engine.Cfg.ListenAddr); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func initEngine() {
	c := engine.Config{
		ListenAddr:    env.Str("LISTEN_ADDR", ":8892"),
		DatabaseURL:   env.Str("DATABASE_URL", ""),
		SessionDBPath: env.Str("SESSION_DB_PATH", "data/sessions.db"),
		RedisURL:      env.Str("REDIS_URL", ""),

		LLMAPIKey:          env.Str("LLM_API_KEY", ""),
		LLMAPIKeyFallbacks: env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:         env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		LLMModel:           env.Str("LLM_MODEL", "gemini-2.5-flash"),
		LLMTemperature:     env.Float("LLM_TEMPERATURE", 0.1),
		LLMMaxTokens:       env.Int("LLM_MAX_TOKENS", 8192),

		TranscribeAPIBase:   env.Str("TRANSCRIBE_API_BASE", "https://api.openai.com/v1"),
		TranscribeAPIKey:    env.Str("TRANSCRIBE_API_KEY", ""),
		TranscribeModel:     env.Str("TRANSCRIBE_MODEL", "whisper-1"),
		TranscribeByteLimit: int64(env.Int("TRANSCRIBE_BYTE_LIMIT", 25*1024*1024)),

		FetchTimeout:    env.Duration("FETCH_TIMEOUT", 15*time.Second),
		NavigateTimeout: env.Duration("NAVIGATE_TIMEOUT", 60*time.Second),
		MaxContentChars: env.Int("MAX_CONTENT_CHARS", 50000),
		MaxAudioBytes:   int64(env.Int("MAX_AUDIO_BYTES", 512*1024*1024)),

		ChunkConcurrency: env.Int("CHUNK_CONCURRENCY", 2),

		CacheTTL:             env.Duration("CACHE_TTL", 15*time.Minute),
		CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),

		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	bc, err := stealth.NewClient(stealth.WithTimeout(15))
	if err != nil {
		slog.Warn("stealth client init failed, fast path uses plain HTTP", slog.Any("error", err))
	} else {
		c.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	if c.LLMAPIKey != "" {
		c.LLMClient = llm.NewClient(c.LLMAPIBase, c.LLMAPIKey, c.LLMModel,
			llm.WithFallbackKeys(c.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(c.LLMMaxTokens),
			llm.WithTemperature(c.LLMTemperature),
			llm.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		)
	} else {
		slog.Warn("LLM_API_KEY not set, summarization disabled")
	}

	engine.Init(c)
}
