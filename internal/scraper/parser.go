package scraper

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Document is what the scraper extracts from an HTML page.
type Document struct {
	// Title is the text of the first <title> element.
	Title string

	// Links are the absolute http(s) URLs referenced by <a> and <area>
	// elements, in document order and without duplicates.
	Links []string
}

// ParseHTML parses content and resolves its links against base.
// A <base href> element, when present, replaces base for resolution.
//
// Design decision: We parse with golang.org/x/net/html instead of regular
// expressions because:
//  1. Malformed markup is common and the tokenizer recovers from it
//  2. Attribute quoting and entities are decoded for us
func ParseHTML(base *url.URL, content io.Reader) (*Document, error) {
	root, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	doc := &Document{Links: make([]string, 0)}
	seen := make(map[string]struct{})
	resolveBase := base
	titleSet := false

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if !titleSet && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
					doc.Title = strings.Join(strings.Fields(n.FirstChild.Data), " ")
					titleSet = true
				}
			case "base":
				if href := getAttr(n, "href"); href != "" && resolveBase != nil {
					if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
						resolveBase = resolveBase.ResolveReference(u)
					}
				}
			case "a", "area":
				if getAttr(n, "rel") == "nofollow" {
					break
				}
				if link := resolveLink(resolveBase, getAttr(n, "href")); link != "" {
					if _, dup := seen[link]; !dup {
						seen[link] = struct{}{}
						doc.Links = append(doc.Links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return doc, nil
}

// resolveLink turns href into an absolute http(s) URL without fragment.
// Script, mail, telephone and data references resolve to "".
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
