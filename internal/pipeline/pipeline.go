package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_digest/internal/classify"
	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/fetch"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
	"github.com/anatolykoptev/go_digest/internal/transcript"
)

// Stage names reported in error events.
const (
	StageStarted    = "started"
	StageFetching   = "fetching"
	StageClassify   = "classifying"
	StageTranscript = "extracting_transcript"
	StageSummarize  = "summarizing"
	StageSaving     = "saving"
)

// Fetcher retrieves raw content for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.RawContent, error)
}

// Classifier determines the media kind of fetched content.
type Classifier interface {
	Classify(rc *fetch.RawContent) (classify.Kind, []classify.Candidate, error)
}

// Acquirer produces a transcript from media candidates.
type Acquirer interface {
	Acquire(ctx context.Context, candidates []classify.Candidate, progress transcript.Progress) (*transcript.Result, error)
}

// Pipeline drives one URL through fetch, classify, transcript,
// summarize, and save, emitting events along the way.
type Pipeline struct {
	gate       *store.Gate
	records    store.Records
	fetcher    Fetcher
	classifier Classifier
	acquirer   Acquirer
	summarizer summarize.Summarizer
}

// New wires the pipeline from its stage components.
func New(gate *store.Gate, records store.Records, fetcher Fetcher, classifier Classifier, acquirer Acquirer, summarizer summarize.Summarizer) *Pipeline {
	return &Pipeline{
		gate:       gate,
		records:    records,
		fetcher:    fetcher,
		classifier: classifier,
		acquirer:   acquirer,
		summarizer: summarizer,
	}
}

// Request is one submitted URL. Force bypasses the duplicate gate.
type Request struct {
	URL   string
	Force bool
}

// Run processes one request, delivering every event to sink from this
// goroutine. The caller always observes exactly one terminal event:
// completed, duplicate_detected, or error.
func (p *Pipeline) Run(ctx context.Context, req Request, sink Sink) {
	engine.IncrDigestRequests()
	em := newEmitter(sink)
	started := time.Now()

	em.emit(EventStarted, map[string]any{"url": req.URL})

	normalized, err := engine.NormalizeURL(req.URL)
	if err != nil {
		p.fail(em, StageStarted, err)
		return
	}

	existing, err := p.gate.Check(ctx, normalized, req.Force)
	if err != nil {
		p.fail(em, StageStarted, err)
		return
	}
	if existing != nil {
		em.emit(EventDuplicateDetected, map[string]any{
			"existing_id": existing.ID,
			"created_at":  existing.CreatedAt.Format(time.RFC3339),
		})
		return
	}

	// Fetch.
	em.emit(EventFetchStart, map[string]any{"url": req.URL})
	raw, err := p.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		p.fail(em, StageFetching, err)
		return
	}
	em.emit(EventFetchComplete, map[string]any{
		"status":  raw.StatusCode,
		"browser": raw.Browser,
	})

	// Classify. The media kind is set once here and never changes.
	kind, candidates, err := p.classifier.Classify(raw)
	if err != nil {
		p.fail(em, StageClassify, err)
		return
	}
	em.emit(detectEventName(kind), map[string]any{"candidate_count": len(candidates)})

	article := p.extractArticle(raw)

	// Transcript, skipped entirely for text-only content.
	var result *transcript.Result
	if kind != classify.KindText {
		result, err = p.acquirer.Acquire(ctx, candidates, func(name string, payload map[string]any) {
			em.emit(name, payload)
		})
		if err != nil {
			// No usable media but readable text: degrade to a
			// text-only digest instead of failing the whole item.
			var te *transcript.Error
			if errors.As(err, &te) && te.Kind == transcript.KindUnsupportedFormat && article != nil && article.Text != "" {
				slog.Info("transcript unavailable, continuing with article text",
					slog.String("url", req.URL), slog.Any("error", err))
				result = &transcript.Result{Method: transcript.MethodNone}
			} else {
				p.fail(em, StageTranscript, err)
				return
			}
		}
		em.emit(EventTranscriptComplete, map[string]any{"method": string(result.Method)})
	}

	// Summarize.
	em.emit(EventAIStart, nil)
	bundle := &summarize.Bundle{
		SourceURL: req.URL,
		MediaKind: string(kind),
	}
	if article != nil {
		bundle.Title = article.Title
		bundle.ArticleText = article.Text
	}
	if result != nil && len(result.Segments) > 0 {
		bundle.TranscriptText = result.Text()
	}
	summary, err := p.summarizer.Summarize(ctx, bundle)
	if err != nil {
		p.fail(em, StageSummarize, err)
		return
	}
	em.emit(EventAIComplete, nil)

	// Save.
	em.emit(EventSaveStart, nil)
	rec := &store.Record{
		SourceURL:     req.URL,
		NormalizedURL: normalized,
		MediaKind:     string(kind),
		Title:         summary.Title,
		Summary:       summary.Summary,
		KeyPoints:     summary.KeyPoints,
	}
	if result != nil {
		rec.Transcript = result.Segments
		rec.TranscriptMethod = string(result.Method)
	}
	saved, err := p.records.Save(ctx, rec)
	if err != nil {
		p.fail(em, StageSaving, err)
		return
	}
	p.gate.Saved(ctx, saved)
	em.emit(EventSaveComplete, nil)

	em.emit(EventCompleted, map[string]any{"record_id": saved.ID})
	slog.Info("digest completed",
		slog.String("url", req.URL),
		slog.String("record_id", saved.ID),
		slog.String("media_kind", string(kind)),
		slog.Duration("elapsed", time.Since(started)))
}

// extractArticle pulls readable text; failures are tolerable for
// media pages where the transcript carries the content.
func (p *Pipeline) extractArticle(raw *fetch.RawContent) *fetch.Article {
	article, err := fetch.Extract(raw)
	if err != nil {
		slog.Debug("article extraction failed", slog.String("url", raw.SourceURL), slog.Any("error", err))
		return nil
	}
	return article
}

func (p *Pipeline) fail(em *emitter, stage string, err error) {
	slog.Warn("pipeline stage failed", slog.String("stage", stage), slog.Any("error", err))
	em.emit(EventError, map[string]any{
		"message": err.Error(),
		"stage":   stage,
	})
}

func detectEventName(kind classify.Kind) string {
	switch kind {
	case classify.KindVideo, classify.KindMixed:
		return EventDetectingVideo
	case classify.KindAudio:
		return EventDetectingAudio
	default:
		return EventDetectingTextOnly
	}
}
