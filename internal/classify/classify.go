// Package classify inspects fetched content for embedded video players
// and audio references. Classification is pure and deterministic: the
// same document always yields the same kind and candidate list.
package classify

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_digest/internal/engine"
	"github.com/anatolykoptev/go_digest/internal/fetch"
)

// Kind is the media classification of a fetched page.
type Kind string

const (
	KindText    Kind = "text"
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindMixed   Kind = "mixed"
	KindUnknown Kind = "unknown"
)

// Candidate is one playable media reference found in the document.
// Video candidates carry a platform ID; audio candidates carry a
// direct media URL.
type Candidate struct {
	Platform string // "youtube", "vimeo", "direct"
	Kind     Kind   // KindVideo or KindAudio
	ID       string // platform video identifier
	MediaURL string // direct media file URL (audio)
}

// Extractor finds media candidates of one platform or shape.
type Extractor interface {
	Name() string
	Match(pageURL string, doc *goquery.Document) bool
	Extract(pageURL string, doc *goquery.Document) []Candidate
}

// Registry holds extractors in registration order. All matching
// extractors contribute candidates; first usable candidate wins
// downstream.
type Registry struct {
	extractors []Extractor
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

func (r *Registry) Extractors() []Extractor {
	return r.extractors
}

// Classifier runs the extractor registry over fetched content.
type Classifier struct {
	registry *Registry
}

// New returns a Classifier with the default extractor set.
func New() *Classifier {
	r := NewRegistry()
	r.Register(&YouTubeExtractor{})
	r.Register(&VimeoExtractor{})
	r.Register(&AudioExtractor{})
	return &Classifier{registry: r}
}

// NewWithRegistry returns a Classifier using a custom registry.
func NewWithRegistry(r *Registry) *Classifier {
	return &Classifier{registry: r}
}

// Classify determines the media kind of rc and the candidates found.
// Text-only pages return KindText with no candidates.
func (c *Classifier) Classify(rc *fetch.RawContent) (Kind, []Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rc.HTML))
	if err != nil {
		return KindUnknown, nil, fmt.Errorf("parse document: %w", err)
	}

	var candidates []Candidate
	for _, e := range c.registry.Extractors() {
		if !e.Match(rc.FinalURL, doc) {
			continue
		}
		candidates = append(candidates, e.Extract(rc.FinalURL, doc)...)
	}
	candidates = dedupe(candidates)

	var hasVideo, hasAudio bool
	for _, cand := range candidates {
		switch cand.Kind {
		case KindVideo:
			hasVideo = true
		case KindAudio:
			hasAudio = true
		}
	}

	switch {
	case hasVideo && hasAudio:
		engine.IncrVideoDetected()
		return KindMixed, candidates, nil
	case hasVideo:
		engine.IncrVideoDetected()
		return KindVideo, candidates, nil
	case hasAudio:
		engine.IncrAudioDetected()
		return KindAudio, candidates, nil
	default:
		engine.IncrTextOnlyDetected()
		return KindText, nil, nil
	}
}

// dedupe removes repeated candidates, preserving first-seen order.
func dedupe(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, c := range in {
		key := c.Platform + "|" + c.ID + "|" + c.MediaURL
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
