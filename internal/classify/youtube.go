package classify

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// YouTube video IDs are 11 chars of [A-Za-z0-9_-].
var youtubeURLRes = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com|youtube-nocookie\.com)/(?:embed/|v/|shorts/|live/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/watch\?(?:[^"'&\s]*&)*v=([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})`),
}

// YouTubeExtractor finds YouTube videos: the page itself being a watch
// URL, or embedded players in iframes.
type YouTubeExtractor struct{}

func (e *YouTubeExtractor) Name() string { return "youtube" }

func (e *YouTubeExtractor) Match(pageURL string, doc *goquery.Document) bool {
	if matchYouTubeID(pageURL) != "" {
		return true
	}
	found := false
	doc.Find("iframe[src], embed[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if matchYouTubeID(src) != "" {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *YouTubeExtractor) Extract(pageURL string, doc *goquery.Document) []Candidate {
	var out []Candidate
	if id := matchYouTubeID(pageURL); id != "" {
		out = append(out, Candidate{Platform: "youtube", Kind: KindVideo, ID: id})
	}
	doc.Find("iframe[src], embed[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if id := matchYouTubeID(src); id != "" {
			out = append(out, Candidate{Platform: "youtube", Kind: KindVideo, ID: id})
		}
	})
	return out
}

func matchYouTubeID(u string) string {
	for _, re := range youtubeURLRes {
		if m := re.FindStringSubmatch(u); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
