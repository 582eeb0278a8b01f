package fetch

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// Article is the readable text extracted from fetched HTML.
type Article struct {
	Title string
	Text  string // markdown when conversion succeeds, plain text otherwise
}

// Extract pulls the main readable content out of fetched HTML using
// readability, falling back to goquery selectors, then regex stripping.
func Extract(rc *RawContent) (*Article, error) {
	parsedURL, _ := url.Parse(rc.FinalURL)

	article, err := readability.FromReader(strings.NewReader(rc.HTML), parsedURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		text := article.Content
		if md, mdErr := htmltomarkdown.ConvertString(text); mdErr == nil {
			text = md
		} else {
			text = article.TextContent
		}
		return &Article{
			Title: titleOrMeta(article.Title, rc.HTML),
			Text:  capContent(strings.TrimSpace(text)),
		}, nil
	}

	if a, gqErr := extractWithGoquery(rc.HTML); gqErr == nil && a.Text != "" {
		a.Title = titleOrMeta(a.Title, rc.HTML)
		return a, nil
	}

	title := engine.CleanHTML(firstTitleMatch(rc.HTML))
	text := engine.CollapseSpace(engine.CleanHTML(stripNonContent(rc.HTML)))
	if text == "" {
		return nil, fmt.Errorf("no readable content in %s", rc.SourceURL)
	}
	return &Article{Title: title, Text: capContent(text)}, nil
}

// titleOrMeta prefers the extractor's title, falling back to
// OpenGraph/head metadata.
func titleOrMeta(title, rawHTML string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return ParseMeta(rawHTML).Title
}

// extractWithGoquery uses structured HTML parsing when readability fails.
func extractWithGoquery(html string) (*Article, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
	}

	doc.Find(strings.Join([]string{
		"script", "style", "noscript", "iframe", "svg",
		"header", "footer", "nav", "aside",
		".advertisement", ".ad", ".sidebar", ".comments",
		"[role=navigation]", "[role=banner]", "[role=contentinfo]",
	}, ", ")).Remove()

	contentSel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if contentSel.Length() == 0 {
		contentSel = doc.Find("body")
	}

	text := engine.CollapseSpace(contentSel.Text())
	return &Article{Title: title, Text: capContent(text)}, nil
}

var nonContentRes = func() []*regexp.Regexp {
	tags := []string{"script", "style", "noscript", "header", "footer", "nav", "aside", "iframe"}
	res := make([]*regexp.Regexp, len(tags))
	for i, tag := range tags {
		res[i] = regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
	}
	return res
}()

func stripNonContent(html string) string {
	for _, re := range nonContentRes {
		html = re.ReplaceAllString(html, "")
	}
	return html
}

func firstTitleMatch(html string) string {
	if m := titleRe.FindStringSubmatch(html); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func capContent(text string) string {
	if max := engine.Cfg.MaxContentChars; max > 0 {
		return engine.Truncate(text, max)
	}
	return text
}
