// Package summarize hands the assembled text bundle to the LLM
// collaborator and parses its structured response. Semantic quality is
// the model's problem; only transport failures are retried.
package summarize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Bundle is everything the summarizer gets about one item.
type Bundle struct {
	SourceURL      string
	MediaKind      string
	Title          string
	ArticleText    string
	TranscriptText string
}

// Summary is the structured result returned by the model.
type Summary struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Summarizer is the collaborator boundary for AI summarization.
type Summarizer interface {
	Summarize(ctx context.Context, b *Bundle) (*Summary, error)
}

const systemPrompt = `You are a precise content summarizer. Respond with strict JSON only:
{"title": "...", "summary": "...", "key_points": ["...", "..."]}
No prose outside the JSON object. The summary is 2-4 paragraphs; key_points has 3-7 entries.`

// LLMSummarizer implements Summarizer over the configured LLM client.
type LLMSummarizer struct {
	client *llm.Client
}

// New returns a summarizer using the engine's LLM client.
func New() *LLMSummarizer {
	return &LLMSummarizer{client: engine.Cfg.LLMClient}
}

// Summarize builds the prompt, calls the model once, and parses strict
// JSON out of the reply, tolerating code fences and stray prose.
func (s *LLMSummarizer) Summarize(ctx context.Context, b *Bundle) (*Summary, error) {
	if s.client == nil {
		return nil, fmt.Errorf("summarize: no LLM client configured")
	}

	engine.IncrLLMCalls()
	raw, err := s.client.Complete(ctx, systemPrompt, buildPrompt(b))
	if err != nil {
		engine.IncrLLMErrors()
		return nil, fmt.Errorf("summarize: %w", err)
	}

	summary, err := parseSummary(raw)
	if err != nil {
		engine.IncrLLMErrors()
		return nil, err
	}
	if summary.Title == "" {
		summary.Title = b.Title
	}
	return summary, nil
}

func buildPrompt(b *Bundle) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source URL: %s\nMedia kind: %s\n", b.SourceURL, b.MediaKind)
	if b.Title != "" {
		fmt.Fprintf(&sb, "Original title: %s\n", b.Title)
	}
	if b.ArticleText != "" {
		fmt.Fprintf(&sb, "\nArticle text:\n%s\n", b.ArticleText)
	}
	if b.TranscriptText != "" {
		fmt.Fprintf(&sb, "\nTranscript:\n%s\n", b.TranscriptText)
	}
	return sb.String()
}

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// parseSummary decodes the model reply. If the whole reply is not
// valid JSON, it falls back to the first complete JSON object found in
// the text before giving up.
func parseSummary(raw string) (*Summary, error) {
	cleaned := stripFences(raw)

	var out Summary
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil && out.Summary != "" {
		return &out, nil
	}

	if obj := firstJSONObject(cleaned); obj != "" {
		if err := json.Unmarshal([]byte(obj), &out); err == nil && out.Summary != "" {
			return &out, nil
		}
	}
	return nil, fmt.Errorf("summarize: unparseable model reply: %q", engine.Truncate(cleaned, 200))
}

// firstJSONObject returns the first balanced {...} in s, honoring
// string literals and escapes.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inStr := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
