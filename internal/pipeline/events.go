// Package pipeline sequences the digest stages and emits one typed
// event per stage transition. The driving goroutine and the event
// producer are the same execution context: events reach the sink the
// moment they happen, never batched behind unrelated work.
package pipeline

// Event is one progress notification. Seq is strictly increasing and
// contiguous within a job; the orchestrator is the only producer.
type Event struct {
	Name    string         `json:"name"`
	Seq     int            `json:"seq"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Event vocabulary.
const (
	EventStarted               = "started"
	EventDuplicateDetected     = "duplicate_detected"
	EventFetchStart            = "fetch_start"
	EventFetchComplete         = "fetch_complete"
	EventDetectingVideo        = "detecting_video"
	EventDetectingAudio        = "detecting_audio"
	EventDetectingTextOnly     = "detecting_text_only"
	EventDownloadingAudio      = "downloading_audio"
	EventAudioChunkingRequired = "audio_chunking_required"
	EventTranscribingChunk     = "transcribing_chunk"
	EventTranscriptComplete    = "transcript_complete"
	EventAIStart               = "ai_start"
	EventAIComplete            = "ai_complete"
	EventSaveStart             = "save_start"
	EventSaveComplete          = "save_complete"
	EventCompleted             = "completed"
	EventError                 = "error"
)

// IsTerminal reports whether an event name ends the stream.
func IsTerminal(name string) bool {
	switch name {
	case EventCompleted, EventError, EventDuplicateDetected:
		return true
	}
	return false
}

// Sink consumes events. Called synchronously from the pipeline's
// driving goroutine; a slow sink slows the job, it never reorders it.
type Sink func(Event)

// emitter assigns sequence numbers and guards the one-terminal-event
// invariant.
type emitter struct {
	sink     Sink
	seq      int
	terminal bool
}

func newEmitter(sink Sink) *emitter {
	if sink == nil {
		sink = func(Event) {}
	}
	return &emitter{sink: sink}
}

func (e *emitter) emit(name string, payload map[string]any) {
	if e.terminal {
		return
	}
	if IsTerminal(name) {
		e.terminal = true
	}
	e.seq++
	e.sink(Event{Name: name, Seq: e.seq, Payload: payload})
}
