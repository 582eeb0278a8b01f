package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the pipeline.
var metrics struct {
	DigestRequests     atomic.Int64
	DuplicateHits      atomic.Int64
	FetchRequests      atomic.Int64
	FetchErrors        atomic.Int64
	BrowserFetches     atomic.Int64
	ChallengeRetries   atomic.Int64
	VideoDetected      atomic.Int64
	AudioDetected      atomic.Int64
	TextOnlyDetected   atomic.Int64
	TranscriptRequests atomic.Int64
	ChunksTranscribed  atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	RecordsSaved       atomic.Int64
	CacheHits          atomic.Int64
	CacheMisses        atomic.Int64
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"digest_requests":     metrics.DigestRequests.Load(),
		"duplicate_hits":      metrics.DuplicateHits.Load(),
		"fetch_requests":      metrics.FetchRequests.Load(),
		"fetch_errors":        metrics.FetchErrors.Load(),
		"browser_fetches":     metrics.BrowserFetches.Load(),
		"challenge_retries":   metrics.ChallengeRetries.Load(),
		"video_detected":      metrics.VideoDetected.Load(),
		"audio_detected":      metrics.AudioDetected.Load(),
		"text_only_detected":  metrics.TextOnlyDetected.Load(),
		"transcript_requests": metrics.TranscriptRequests.Load(),
		"chunks_transcribed":  metrics.ChunksTranscribed.Load(),
		"llm_calls":           metrics.LLMCalls.Load(),
		"llm_errors":          metrics.LLMErrors.Load(),
		"records_saved":       metrics.RecordsSaved.Load(),
		"cache_hits":          metrics.CacheHits.Load(),
		"cache_misses":        metrics.CacheMisses.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for the HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	keys := []string{
		"digest_requests", "duplicate_hits",
		"fetch_requests", "fetch_errors", "browser_fetches", "challenge_retries",
		"video_detected", "audio_detected", "text_only_detected",
		"transcript_requests", "chunks_transcribed",
		"llm_calls", "llm_errors", "records_saved",
		"cache_hits", "cache_misses",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrDigestRequests()     { metrics.DigestRequests.Add(1) }
func IncrDuplicateHits()      { metrics.DuplicateHits.Add(1) }
func IncrFetchRequests()      { metrics.FetchRequests.Add(1) }
func IncrFetchErrors()        { metrics.FetchErrors.Add(1) }
func IncrBrowserFetches()     { metrics.BrowserFetches.Add(1) }
func IncrChallengeRetries()   { metrics.ChallengeRetries.Add(1) }
func IncrVideoDetected()      { metrics.VideoDetected.Add(1) }
func IncrAudioDetected()      { metrics.AudioDetected.Add(1) }
func IncrTextOnlyDetected()   { metrics.TextOnlyDetected.Add(1) }
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrChunksTranscribed()  { metrics.ChunksTranscribed.Add(1) }
func IncrLLMCalls()           { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()          { metrics.LLMErrors.Add(1) }
func IncrRecordsSaved()       { metrics.RecordsSaved.Add(1) }
func IncrCacheHits()          { metrics.CacheHits.Add(1) }
func IncrCacheMisses()        { metrics.CacheMisses.Add(1) }
