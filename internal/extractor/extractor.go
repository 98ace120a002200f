// Package extractor pulls crawl-relevant fields and outbound links out of
// an HTML document.
package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/spider-crawler/crawler/internal/robots"
	"github.com/spider-crawler/crawler/internal/urlutil"
)

// maxTextLength bounds the stored page text, matching the sink's record
// contract.
const maxTextLength = 4000

// Page is the set of fields the crawl stores and writes out for one page.
type Page struct {
	Title       string
	Description string
	Text        string
	NumLinks    int
	Links       []string
	MetaRobots  string
}

// Extract parses htmlContent relative to pageURL, returning the stored
// fields, the normalized outbound links, and the raw meta-robots content
// (empty if absent).
func Extract(pageURL string, htmlContent []byte) (Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, err
	}

	doc, err := html.Parse(bytes.NewReader(htmlContent))
	if err != nil {
		return Page{}, err
	}

	var page Page
	var textBuf bytes.Buffer
	var rawLinks []string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if page.Title == "" {
					page.Title = strings.TrimSpace(getTextContent(n))
				}
			case "meta":
				parseMeta(n, &page)
			case "a":
				if href := getAttr(n, "href"); href != "" {
					rawLinks = append(rawLinks, href)
				}
			case "script", "style":
				return
			}
		}
		if n.Type == html.TextNode {
			t := strings.TrimSpace(n.Data)
			if t != "" {
				textBuf.WriteString(t)
				textBuf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	page.Text = truncate(strings.TrimSpace(textBuf.String()), maxTextLength)

	seen := make(map[string]bool, len(rawLinks))
	for _, href := range rawLinks {
		normalized, ok := urlutil.NormalizeLink(base.String(), href)
		if !ok || seen[normalized] {
			continue
		}
		seen[normalized] = true
		page.Links = append(page.Links, normalized)
	}
	if page.MetaRobots != "" && !robots.ParseMetaRobots(page.MetaRobots).IsFollowable() {
		page.Links = nil
	}
	page.NumLinks = len(page.Links)

	return page, nil
}

func parseMeta(n *html.Node, page *Page) {
	name := strings.ToLower(getAttr(n, "name"))
	content := getAttr(n, "content")
	switch name {
	case "description":
		if page.Description == "" {
			page.Description = content
		}
	case "robots":
		page.MetaRobots = content
	}
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func getTextContent(n *html.Node) string {
	var buf bytes.Buffer
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return buf.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
