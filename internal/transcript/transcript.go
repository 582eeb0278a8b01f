// Package transcript turns video and audio candidates into timestamped
// text, chunking audio files that exceed the transcription service's
// size limit and stitching the results back into one timeline.
package transcript

import "fmt"

// Segment is one timestamped piece of transcript text. Immutable once
// created; segments in a finished transcript are sorted by Start.
type Segment struct {
	Start float64 `json:"start"` // seconds from the beginning of the media
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Method records how a transcript was obtained.
type Method string

const (
	MethodYouTube Method = "youtube" // platform-provided captions
	MethodDirect  Method = "direct"  // single transcription call
	MethodChunked Method = "chunked" // split, transcribed, stitched
	MethodNone    Method = "none"    // no transcript (text-only content)
)

// Result is a completed transcript with its acquisition method.
type Result struct {
	Segments []Segment
	Method   Method
}

// Text joins all segment text in timeline order.
func (r *Result) Text() string {
	var out []byte
	for i, s := range r.Segments {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, s.Text...)
	}
	return string(out)
}

// ErrorKind classifies transcript failures.
type ErrorKind string

const (
	KindUnsupportedFormat  ErrorKind = "unsupported_format"
	KindSizeExceeded       ErrorKind = "size_exceeded_after_chunking"
	KindServiceUnavailable ErrorKind = "service_unavailable"
)

// Error is the typed failure returned by the Acquirer.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transcript: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transcript: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }
