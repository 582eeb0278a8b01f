package classify

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".flac": true,
}

// AudioExtractor finds standalone audio: <audio> elements, their
// <source> children, podcast enclosure links, and direct links to
// audio files.
type AudioExtractor struct{}

func (e *AudioExtractor) Name() string { return "audio" }

func (e *AudioExtractor) Match(pageURL string, doc *goquery.Document) bool {
	if isAudioURL(pageURL) {
		return true
	}
	if doc.Find("audio").Length() > 0 {
		return true
	}
	if doc.Find(`link[type^='audio/']`).Length() > 0 {
		return true
	}
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if isAudioURL(href) {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *AudioExtractor) Extract(pageURL string, doc *goquery.Document) []Candidate {
	var out []Candidate
	add := func(mediaURL string) {
		mediaURL = strings.TrimSpace(mediaURL)
		if mediaURL == "" {
			return
		}
		out = append(out, Candidate{Platform: "direct", Kind: KindAudio, MediaURL: resolveURL(pageURL, mediaURL)})
	}

	if isAudioURL(pageURL) {
		add(pageURL)
	}

	doc.Find("audio").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			add(src)
		}
		s.Find("source[src]").Each(func(_ int, src *goquery.Selection) {
			v, _ := src.Attr("src")
			add(v)
		})
	})

	// Podcast enclosure style: <link type="audio/mpeg" href=...>.
	doc.Find(`link[type^='audio/']`).Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			add(href)
		}
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if isAudioURL(href) {
			add(href)
		}
	})

	return out
}

// isAudioURL reports whether u points at an audio file by extension.
func isAudioURL(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	return audioExtensions[ext]
}

// resolveURL makes relative media references absolute against the page.
func resolveURL(pageURL, ref string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
