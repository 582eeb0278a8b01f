package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_digest/internal/classify"
	"github.com/anatolykoptev/go_digest/internal/fetch"
	"github.com/anatolykoptev/go_digest/internal/store"
	"github.com/anatolykoptev/go_digest/internal/summarize"
	"github.com/anatolykoptev/go_digest/internal/transcript"
)

const articleHTML = `<html><head><title>Plain Article</title></head><body><article>
<p>This is a long enough body of text for the pipeline to summarize. It says
interesting things about software and keeps saying them for a while so the
extractor has something to work with.</p>
</article></body></html>`

const videoHTML = `<html><head><title>Video Post</title></head><body>
<iframe src="https://www.youtube.com/embed/abc123DEF45"></iframe>
<p>Watch the talk above.</p>
</body></html>`

type fakeFetcher struct {
	html string
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*fetch.RawContent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.RawContent{SourceURL: url, FinalURL: url, HTML: f.html, StatusCode: 200}, nil
}

type fakeAcquirer struct {
	result   *transcript.Result
	err      error
	progress []string
}

func (a *fakeAcquirer) Acquire(_ context.Context, _ []classify.Candidate, progress transcript.Progress) (*transcript.Result, error) {
	for _, name := range a.progress {
		progress(name, map[string]any{"index": 0, "total": 1})
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

type fakeSummarizer struct {
	err error
}

func (s *fakeSummarizer) Summarize(_ context.Context, b *summarize.Bundle) (*summarize.Summary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &summarize.Summary{Title: "Summarized: " + b.MediaKind, Summary: "a summary", KeyPoints: []string{"point"}}, nil
}

type eventLog struct {
	events []Event
}

func (l *eventLog) sink(e Event) { l.events = append(l.events, e) }

func (l *eventLog) names() []string {
	out := make([]string, len(l.events))
	for i, e := range l.events {
		out[i] = e.Name
	}
	return out
}

func newTestPipeline(f Fetcher, a Acquirer, s summarize.Summarizer) (*Pipeline, *store.MemoryRecords) {
	records := store.NewMemoryRecords()
	gate := store.NewGate(records, nil)
	return New(gate, records, f, classify.New(), a, s), records
}

// checkEventInvariants verifies strictly increasing contiguous
// sequence numbers and exactly one terminal event, at the end.
func checkEventInvariants(t *testing.T, events []Event) {
	t.Helper()
	require.NotEmpty(t, events)

	terminals := 0
	for i, e := range events {
		assert.Equal(t, i+1, e.Seq, "sequence gap at event %q", e.Name)
		if IsTerminal(e.Name) {
			terminals++
			assert.Equal(t, len(events)-1, i, "terminal event %q not last", e.Name)
		}
	}
	assert.Equal(t, 1, terminals, "want exactly one terminal event, got %v", events)
}

func TestRunTextOnlyArticle(t *testing.T) {
	p, _ := newTestPipeline(&fakeFetcher{html: articleHTML}, &fakeAcquirer{}, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/post"}, log.sink)

	checkEventInvariants(t, log.events)
	assert.Equal(t, []string{
		EventStarted,
		EventFetchStart,
		EventFetchComplete,
		EventDetectingTextOnly,
		EventAIStart,
		EventAIComplete,
		EventSaveStart,
		EventSaveComplete,
		EventCompleted,
	}, log.names())

	// Text-only skips the transcript machinery entirely.
	for _, e := range log.events {
		assert.NotEqual(t, EventDownloadingAudio, e.Name)
		assert.NotEqual(t, EventTranscribingChunk, e.Name)
		assert.NotEqual(t, EventTranscriptComplete, e.Name)
	}
}

func TestRunVideoWithTranscript(t *testing.T) {
	acq := &fakeAcquirer{
		result: &transcript.Result{
			Method: transcript.MethodYouTube,
			Segments: []transcript.Segment{
				{Start: 0, End: 5, Text: "welcome to the talk"},
			},
		},
	}
	p, records := newTestPipeline(&fakeFetcher{html: videoHTML}, acq, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/video-post"}, log.sink)

	checkEventInvariants(t, log.events)
	names := log.names()
	assert.Contains(t, names, EventDetectingVideo)
	assert.Contains(t, names, EventTranscriptComplete)

	last := log.events[len(log.events)-1]
	require.Equal(t, EventCompleted, last.Name)
	recordID := last.Payload["record_id"].(string)

	saved, err := records.GetByID(context.Background(), recordID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "video", saved.MediaKind)
	assert.Equal(t, "youtube", saved.TranscriptMethod)
	require.Len(t, saved.Transcript, 1)
}

func TestRunTranscriptProgressForwarded(t *testing.T) {
	acq := &fakeAcquirer{
		progress: []string{EventDownloadingAudio, EventAudioChunkingRequired, EventTranscribingChunk},
		result:   &transcript.Result{Method: transcript.MethodChunked},
	}
	p, _ := newTestPipeline(&fakeFetcher{html: videoHTML}, acq, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/v"}, log.sink)

	checkEventInvariants(t, log.events)
	names := log.names()
	assert.Contains(t, names, EventDownloadingAudio)
	assert.Contains(t, names, EventAudioChunkingRequired)
	assert.Contains(t, names, EventTranscribingChunk)

	// transcript_complete carries the method and follows the progress events.
	var tc *Event
	for i := range log.events {
		if log.events[i].Name == EventTranscriptComplete {
			tc = &log.events[i]
		}
	}
	require.NotNil(t, tc)
	assert.Equal(t, "chunked", tc.Payload["method"])
}

func TestRunDuplicateShortCircuit(t *testing.T) {
	p, records := newTestPipeline(&fakeFetcher{html: articleHTML}, &fakeAcquirer{}, &fakeSummarizer{})
	ctx := context.Background()

	// First submission completes normally.
	var first eventLog
	p.Run(ctx, Request{URL: "https://example.com/once?utm_source=a"}, first.sink)
	require.Equal(t, EventCompleted, first.events[len(first.events)-1].Name)
	firstID := first.events[len(first.events)-1].Payload["record_id"].(string)

	// Second submission of a URL variant short-circuits with the
	// first record's identity and never fetches.
	var second eventLog
	p.Run(ctx, Request{URL: "http://www.example.com/once/"}, second.sink)

	checkEventInvariants(t, second.events)
	require.Len(t, second.events, 2)
	assert.Equal(t, EventStarted, second.events[0].Name)
	assert.Equal(t, EventDuplicateDetected, second.events[1].Name)
	assert.Equal(t, firstID, second.events[1].Payload["existing_id"])
	assert.NotEmpty(t, second.events[1].Payload["created_at"])

	// Only one record exists.
	rec, err := records.FindByNormalizedURL(ctx, "https://example.com/once")
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestRunForceReprocessesDuplicate(t *testing.T) {
	p, _ := newTestPipeline(&fakeFetcher{html: articleHTML}, &fakeAcquirer{}, &fakeSummarizer{})
	ctx := context.Background()

	var first eventLog
	p.Run(ctx, Request{URL: "https://example.com/again"}, first.sink)
	firstID := first.events[len(first.events)-1].Payload["record_id"].(string)

	var second eventLog
	p.Run(ctx, Request{URL: "https://example.com/again", Force: true}, second.sink)

	last := second.events[len(second.events)-1]
	require.Equal(t, EventCompleted, last.Name)
	// The upsert keeps the original record identity.
	assert.Equal(t, firstID, last.Payload["record_id"])
}

func TestRunFetchErrorEmitsSingleErrorEvent(t *testing.T) {
	p, _ := newTestPipeline(
		&fakeFetcher{err: &fetch.Error{Kind: fetch.KindBlocked, URL: "https://example.com/b"}},
		&fakeAcquirer{}, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/b"}, log.sink)

	checkEventInvariants(t, log.events)
	last := log.events[len(log.events)-1]
	require.Equal(t, EventError, last.Name)
	assert.Equal(t, StageFetching, last.Payload["stage"])
	assert.NotEmpty(t, last.Payload["message"])
}

func TestRunTranscriptErrorFailsJob(t *testing.T) {
	acq := &fakeAcquirer{
		err: &transcript.Error{Kind: transcript.KindServiceUnavailable, Err: errors.New("whisper down")},
	}
	p, records := newTestPipeline(&fakeFetcher{html: videoHTML}, acq, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/v2"}, log.sink)

	checkEventInvariants(t, log.events)
	last := log.events[len(log.events)-1]
	require.Equal(t, EventError, last.Name)
	assert.Equal(t, StageTranscript, last.Payload["stage"])

	// No partial record persisted.
	rec, err := records.FindByNormalizedURL(context.Background(), "https://example.com/v2")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRunUnsupportedMediaFallsBackToText(t *testing.T) {
	// A page with a video embed whose media cannot be acquired still
	// digests the article text, with transcript method "none".
	acq := &fakeAcquirer{
		err: &transcript.Error{Kind: transcript.KindUnsupportedFormat, Err: errors.New("no usable media candidate")},
	}
	p, _ := newTestPipeline(&fakeFetcher{html: videoHTML}, acq, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "https://example.com/v3"}, log.sink)

	checkEventInvariants(t, log.events)
	require.Equal(t, EventCompleted, log.events[len(log.events)-1].Name)

	var tc *Event
	for i := range log.events {
		if log.events[i].Name == EventTranscriptComplete {
			tc = &log.events[i]
		}
	}
	require.NotNil(t, tc)
	assert.Equal(t, "none", tc.Payload["method"])
}

func TestRunInvalidURL(t *testing.T) {
	p, _ := newTestPipeline(&fakeFetcher{html: articleHTML}, &fakeAcquirer{}, &fakeSummarizer{})

	var log eventLog
	p.Run(context.Background(), Request{URL: "ftp://example.com/file"}, log.sink)

	checkEventInvariants(t, log.events)
	last := log.events[len(log.events)-1]
	require.Equal(t, EventError, last.Name)
	assert.Equal(t, StageStarted, last.Payload["stage"])
}

func TestEmitterStopsAfterTerminal(t *testing.T) {
	var log eventLog
	em := newEmitter(log.sink)
	em.emit(EventStarted, nil)
	em.emit(EventError, map[string]any{"message": "x", "stage": "fetching"})
	em.emit(EventCompleted, nil) // must be dropped

	require.Len(t, log.events, 2)
	assert.Equal(t, EventError, log.events[1].Name)
}
