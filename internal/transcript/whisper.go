package transcript

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Transcriber converts one audio file into timestamped segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]Segment, error)
}

// WhisperClient calls an OpenAI-compatible /audio/transcriptions
// endpoint with verbose_json output.
type WhisperClient struct {
	apiBase string
	apiKey  string
	model   string
	client  *http.Client
}

// NewWhisperClient builds a client from the engine config.
func NewWhisperClient() *WhisperClient {
	base := strings.TrimSuffix(engine.Cfg.TranscribeAPIBase, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	model := engine.Cfg.TranscribeModel
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperClient{
		apiBase: base,
		apiKey:  engine.Cfg.TranscribeAPIKey,
		model:   model,
		client:  httpClient(),
	}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

// Transcribe uploads the audio file and returns its segments with
// in-file timestamps. A 413 from the service means the file is still
// too large; 5xx responses surface as service unavailability after
// retries are exhausted.
func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	segments, err := engine.RetryDo(ctx, engine.DefaultRetryConfig, func() ([]Segment, error) {
		return c.transcribeOnce(ctx, audioPath)
	})
	if err != nil {
		var se *engine.HTTPStatusError
		if errors.As(err, &se) {
			return nil, &Error{Kind: KindServiceUnavailable, Err: err}
		}
		return nil, err
	}
	return segments, nil
}

func (c *WhisperClient) transcribeOnce(ctx context.Context, audioPath string) ([]Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	_ = mw.WriteField("model", c.model)
	_ = mw.WriteField("response_format", "verbose_json")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return nil, &Error{
			Kind: KindSizeExceeded,
			Err:  fmt.Errorf("service rejected %s as too large", filepath.Base(audioPath)),
		}
	case engine.IsRetryableStatus(resp.StatusCode):
		return nil, &engine.HTTPStatusError{StatusCode: resp.StatusCode}
	case resp.StatusCode != http.StatusOK:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &Error{
			Kind: KindServiceUnavailable,
			Err:  fmt.Errorf("transcription HTTP %d: %s", resp.StatusCode, snippet),
		}
	}

	var wr whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&wr); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}

	if len(wr.Segments) == 0 {
		text := strings.TrimSpace(wr.Text)
		if text == "" {
			return nil, &Error{Kind: KindServiceUnavailable, Err: fmt.Errorf("empty transcription result")}
		}
		return []Segment{{Start: 0, End: 0, Text: text}}, nil
	}

	segments := make([]Segment, 0, len(wr.Segments))
	for _, s := range wr.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: s.Start, End: s.End, Text: text})
	}
	return segments, nil
}
