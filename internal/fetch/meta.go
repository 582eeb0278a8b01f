package fetch

import (
	"strings"

	"golang.org/x/net/html"
)

// PageMeta is the head metadata of a fetched page. OpenGraph values
// win over plain tags when both are present.
type PageMeta struct {
	Title       string
	Description string
	Image       string
	OGType      string // og:type, e.g. "article", "video.other"
	Canonical   string
}

// ParseMeta walks the HTML tree and collects title, canonical link,
// and OpenGraph/plain meta values. Never fails: unparseable input
// yields an empty PageMeta.
func ParseMeta(rawHTML string) *PageMeta {
	meta := &PageMeta{}
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}

	var plainTitle, plainDesc string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if plainTitle == "" {
					plainTitle = strings.TrimSpace(textContent(n))
				}
			case "meta":
				name := getAttr(n, "property")
				if name == "" {
					name = getAttr(n, "name")
				}
				content := strings.TrimSpace(getAttr(n, "content"))
				if content == "" {
					break
				}
				switch name {
				case "og:title":
					meta.Title = content
				case "og:description":
					meta.Description = content
				case "description":
					plainDesc = content
				case "og:image":
					meta.Image = content
				case "og:type":
					meta.OGType = content
				}
			case "link":
				if getAttr(n, "rel") == "canonical" && meta.Canonical == "" {
					meta.Canonical = getAttr(n, "href")
				}
			case "body":
				// Metadata lives in head; stop before the content.
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = plainTitle
	}
	if meta.Description == "" {
		meta.Description = plainDesc
	}
	return meta
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}
