package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_digest/internal/classify"
	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Progress reports acquisition milestones to the caller. The Acquirer
// invokes it synchronously from the driving goroutine, so callers see
// each milestone before the corresponding work starts.
type Progress func(name string, payload map[string]any)

// Acquirer turns classified media candidates into a transcript.
type Acquirer struct {
	transcriber Transcriber
	runner      commandRunner
	langs       []string
}

// NewAcquirer builds an Acquirer with the production transcription
// client and command runner.
func NewAcquirer() *Acquirer {
	return &Acquirer{
		transcriber: NewWhisperClient(),
		runner:      &execRunner{},
		langs:       []string{"en"},
	}
}

// NewAcquirerWith injects collaborators for tests.
func NewAcquirerWith(t Transcriber, runner commandRunner) *Acquirer {
	return &Acquirer{transcriber: t, runner: runner, langs: []string{"en"}}
}

// Acquire produces a transcript for the first usable candidate. A
// candidate whose acquisition fails does not doom the item: the next
// candidate is tried, so a dead video embed still falls through to a
// live audio link on the same page. Video candidates try platform
// captions first and fall back to the audio track; audio candidates
// are downloaded and transcribed, chunked when they exceed the
// service's byte limit.
func (a *Acquirer) Acquire(ctx context.Context, candidates []classify.Candidate, progress Progress) (*Result, error) {
	engine.IncrTranscriptRequests()

	if progress == nil {
		progress = func(string, map[string]any) {}
	}

	var lastErr error
	for _, cand := range candidates {
		var (
			res *Result
			err error
		)
		switch cand.Kind {
		case classify.KindVideo:
			res, err = a.acquireVideo(ctx, cand, progress)
		case classify.KindAudio:
			res, err = a.acquireAudio(ctx, cand.MediaURL, progress)
		default:
			continue
		}
		if err == nil {
			return res, nil
		}
		lastErr = err
		slog.Warn("candidate acquisition failed, trying next",
			slog.String("platform", cand.Platform),
			slog.String("media_url", cand.MediaURL),
			slog.Any("error", err))
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, &Error{Kind: KindUnsupportedFormat, Err: fmt.Errorf("no usable media candidate")}
}

func (a *Acquirer) acquireVideo(ctx context.Context, cand classify.Candidate, progress Progress) (*Result, error) {
	if cand.Platform == "youtube" {
		segments, err := FetchYouTubeCaptions(ctx, cand.ID, a.langs)
		if err == nil {
			return &Result{Segments: segments, Method: MethodYouTube}, nil
		}
		slog.Info("platform captions unavailable, falling back to audio track",
			slog.String("video_id", cand.ID), slog.Any("error", err))
	}

	workDir, err := os.MkdirTemp("", "digest-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	progress("downloading_audio", nil)
	path, size, err := downloadPlatformAudio(ctx, a.runner, videoPageURL(cand), workDir)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedFormat, Err: err}
	}
	return a.transcribeFile(ctx, path, size, workDir, progress)
}

func (a *Acquirer) acquireAudio(ctx context.Context, mediaURL string, progress Progress) (*Result, error) {
	workDir, err := os.MkdirTemp("", "digest-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	progress("downloading_audio", nil)
	path, size, err := downloadAudio(ctx, mediaURL, workDir)
	if err != nil {
		return nil, err
	}
	return a.transcribeFile(ctx, path, size, workDir, progress)
}

// transcribeFile transcribes a local audio file, chunking it first
// when it exceeds the service byte limit.
func (a *Acquirer) transcribeFile(ctx context.Context, path string, size int64, workDir string, progress Progress) (*Result, error) {
	byteLimit := engine.Cfg.TranscribeByteLimit
	if byteLimit <= 0 {
		byteLimit = 25 * 1024 * 1024
	}

	if size <= byteLimit {
		segments, err := a.transcriber.Transcribe(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Result{Segments: segments, Method: MethodDirect}, nil
	}

	probe, err := probeAudio(ctx, a.runner, path)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedFormat, Err: err}
	}

	plan, err := PlanChunks(size, probe.Duration, byteLimit)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedFormat, Err: err}
	}
	progress("audio_chunking_required", map[string]any{
		"file_size":   size,
		"chunk_count": plan.ChunkCount,
	})

	chunkPaths, err := splitAudio(ctx, a.runner, path, workDir, plan)
	if err != nil {
		return nil, &Error{Kind: KindUnsupportedFormat, Err: err}
	}

	segments, err := a.transcribeChunks(ctx, plan, chunkPaths, progress)
	if err != nil {
		return nil, err
	}
	return &Result{Segments: segments, Method: MethodChunked}, nil
}

// transcribeChunks fans out chunk transcription with bounded
// concurrency, joins fully, and stitches the results. Any chunk
// failing fails the whole transcript; a hole in the middle of a
// timeline is worse than retrying the item later.
func (a *Acquirer) transcribeChunks(ctx context.Context, plan *ChunkPlan, chunkPaths []string, progress Progress) ([]Segment, error) {
	perChunk := make([][]Segment, plan.ChunkCount)

	g, gctx := errgroup.WithContext(ctx)
	limit := engine.Cfg.ChunkConcurrency
	if limit <= 0 {
		limit = 2
	}
	g.SetLimit(limit)

	for _, w := range plan.Windows {
		progress("transcribing_chunk", map[string]any{
			"index": w.Index,
			"total": plan.ChunkCount,
		})
		g.Go(func() error {
			segments, err := a.transcriber.Transcribe(gctx, chunkPaths[w.Index])
			if err != nil {
				return fmt.Errorf("chunk %d: %w", w.Index, err)
			}
			perChunk[w.Index] = segments
			engine.IncrChunksTranscribed()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return stitch(plan.Windows, perChunk), nil
}

func videoPageURL(cand classify.Candidate) string {
	switch cand.Platform {
	case "youtube":
		return "https://www.youtube.com/watch?v=" + cand.ID
	case "vimeo":
		return "https://vimeo.com/" + cand.ID
	default:
		return cand.MediaURL
	}
}
