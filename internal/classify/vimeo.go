package classify

import (
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var vimeoURLRes = []*regexp.Regexp{
	regexp.MustCompile(`player\.vimeo\.com/video/(\d+)`),
	regexp.MustCompile(`vimeo\.com/(\d+)`),
}

// VimeoExtractor finds Vimeo videos in page URLs and embedded players.
type VimeoExtractor struct{}

func (e *VimeoExtractor) Name() string { return "vimeo" }

func (e *VimeoExtractor) Match(pageURL string, doc *goquery.Document) bool {
	if matchVimeoID(pageURL) != "" {
		return true
	}
	found := false
	doc.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if matchVimeoID(src) != "" {
			found = true
			return false
		}
		return true
	})
	return found
}

func (e *VimeoExtractor) Extract(pageURL string, doc *goquery.Document) []Candidate {
	var out []Candidate
	if id := matchVimeoID(pageURL); id != "" {
		out = append(out, Candidate{Platform: "vimeo", Kind: KindVideo, ID: id})
	}
	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if id := matchVimeoID(src); id != "" {
			out = append(out, Candidate{Platform: "vimeo", Kind: KindVideo, ID: id})
		}
	})
	return out
}

func matchVimeoID(u string) string {
	for _, re := range vimeoURLRes {
		if m := re.FindStringSubmatch(u); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
