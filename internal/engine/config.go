package engine

import (
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	ListenAddr string

	// Persistence
	DatabaseURL   string // Postgres DSN for the records store
	SessionDBPath string // SQLite file for per-domain auth sessions
	RedisURL      string // optional L2 for the duplicate-gate cache

	// Summarization collaborator
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMClient          *llm.Client

	// Transcription collaborator (OpenAI-compatible /audio/transcriptions)
	TranscribeAPIBase   string
	TranscribeAPIKey    string
	TranscribeModel     string
	TranscribeByteLimit int64 // hard per-request size limit of the service

	// Fetching
	FetchTimeout    time.Duration // fast-path HTTP fetch
	NavigateTimeout time.Duration // browser-path navigation
	MaxContentChars int
	MaxAudioBytes   int64 // refuse audio downloads larger than this

	ChunkConcurrency int // parallel chunk transcriptions per job

	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = fast path falls back to HTTPClient
}

var cfg Config

// Cfg exposes the engine configuration for sub-packages.
// Always points to the current cfg value.
var Cfg = &cfg

// Init initializes the engine with the given configuration.
func Init(c Config) {
	cfg = c
	Cfg = &cfg
}
