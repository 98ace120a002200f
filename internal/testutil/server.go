// Package testutil provides a configurable stub HTTP server and an HTML
// fixture builder for tests.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// TestServer is a configurable stub HTTP server: per-path content, delay,
// forced error status, and redirect, plus a hit counter.
type TestServer struct {
	Server *httptest.Server

	mu        sync.RWMutex
	pages     map[string]*TestPage
	delays    map[string]time.Duration
	errors    map[string]int
	hits      map[string]int
	redirects map[string]string
}

// TestPage is the canned response for one path.
type TestPage struct {
	Content     string
	ContentType string
	StatusCode  int
	Headers     map[string]string
}

// NewTestServer starts a stub server with no registered pages.
func NewTestServer() *TestServer {
	ts := &TestServer{
		pages:     make(map[string]*TestPage),
		delays:    make(map[string]time.Duration),
		errors:    make(map[string]int),
		hits:      make(map[string]int),
		redirects: make(map[string]string),
	}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handler))
	return ts
}

func (ts *TestServer) handler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	ts.mu.Lock()
	ts.hits[path]++
	ts.mu.Unlock()

	ts.mu.RLock()
	delay := ts.delays[path]
	errorCode := ts.errors[path]
	redirect := ts.redirects[path]
	page := ts.pages[path]
	ts.mu.RUnlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	if redirect != "" {
		http.Redirect(w, r, redirect, http.StatusMovedPermanently)
		return
	}

	if errorCode > 0 {
		w.WriteHeader(errorCode)
		return
	}

	if page != nil {
		for k, v := range page.Headers {
			w.Header().Set(k, v)
		}
		if page.ContentType != "" {
			w.Header().Set("Content-Type", page.ContentType)
		} else {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		if page.StatusCode > 0 {
			w.WriteHeader(page.StatusCode)
		}
		io.WriteString(w, page.Content)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

// AddPage registers an HTML page at path, returning 200.
func (ts *TestServer) AddPage(path, content string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.pages[path] = &TestPage{Content: content, ContentType: "text/html; charset=utf-8", StatusCode: 200}
}

// AddPageWithType registers a page at path with an explicit content type.
func (ts *TestServer) AddPageWithType(path, content, contentType string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.pages[path] = &TestPage{Content: content, ContentType: contentType, StatusCode: 200}
}

// AddPageWithStatus registers a page at path with an explicit status.
func (ts *TestServer) AddPageWithStatus(path, content string, status int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.pages[path] = &TestPage{Content: content, ContentType: "text/html; charset=utf-8", StatusCode: status}
}

// SetDelay makes path sleep for delay before responding.
func (ts *TestServer) SetDelay(path string, delay time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delays[path] = delay
}

// SetError makes path always respond with statusCode and no body.
func (ts *TestServer) SetError(path string, statusCode int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.errors[path] = statusCode
}

// SetRedirect makes from respond with a 301 to to.
func (ts *TestServer) SetRedirect(from, to string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.redirects[from] = to
}

// GetHits returns the number of requests path has received.
func (ts *TestServer) GetHits(path string) int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.hits[path]
}

// URL returns the server's base URL.
func (ts *TestServer) URL() string {
	return ts.Server.URL
}

// Close shuts down the underlying httptest server.
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// BuildTestSite populates a small multi-page site (home, about, products,
// blog, contact, robots.txt, sitemap.xml) useful for crawl walk tests.
func (ts *TestServer) BuildTestSite() {
	ts.AddPage("/", `<!DOCTYPE html>
<html><head><title>Test Site Home</title>
<meta name="description" content="This is the test site home page">
<link rel="canonical" href="`+ts.URL()+`/"></head>
<body><h1>Welcome to Test Site</h1>
<nav><a href="/about">About</a><a href="/products">Products</a>
<a href="/blog">Blog</a><a href="/contact">Contact</a></nav>
</body></html>`)

	ts.AddPage("/about", `<!DOCTYPE html>
<html><head><title>About Us</title>
<meta name="description" content="About our company"></head>
<body><h1>About Us</h1><p>We are a test company.</p><a href="/">Home</a></body></html>`)

	ts.AddPage("/products", `<!DOCTYPE html>
<html><head><title>Our Products</title></head>
<body><h1>Products</h1><ul>
<li><a href="/products/1">Product 1</a></li>
<li><a href="/products/2">Product 2</a></li>
<li><a href="/products/3">Product 3</a></li>
</ul></body></html>`)

	for i := 1; i <= 3; i++ {
		ts.AddPage(fmt.Sprintf("/products/%d", i), fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Product %d</title></head>
<body><h1>Product %d</h1><p>Description of product %d</p>
<img src="/images/product%d.jpg" alt="Product %d image">
<a href="/products">Back to Products</a></body></html>`, i, i, i, i, i))
	}

	ts.AddPage("/blog", `<!DOCTYPE html>
<html><head><title>Blog</title></head>
<body><h1>Blog</h1>
<article><h2><a href="/blog/post-1">First Post</a></h2></article>
<article><h2><a href="/blog/post-2">Second Post</a></h2></article>
</body></html>`)

	ts.AddPage("/contact", `<!DOCTYPE html>
<html><head><title>Contact Us</title></head>
<body><h1>Contact</h1><p>Email: test@example.com</p></body></html>`)

	ts.AddPageWithType("/robots.txt", `User-agent: *
Disallow: /private/
Sitemap: `+ts.URL()+`/sitemap.xml`, "text/plain")

	ts.AddPageWithType("/sitemap.xml", `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>`+ts.URL()+`/</loc></url>
<url><loc>`+ts.URL()+`/about</loc></url>
<url><loc>`+ts.URL()+`/products</loc></url>
<url><loc>`+ts.URL()+`/contact</loc></url>
</urlset>`, "application/xml")
}

// HTMLBuilder assembles small HTML fixtures fluently for extractor tests.
type HTMLBuilder struct {
	title       string
	metaDesc    string
	canonical   string
	h1          string
	h2s         []string
	links       []builderLink
	images      []builderImage
	scripts     []string
	styles      []string
	bodyContent string
}

type builderLink struct {
	Href, Text, Rel string
}

type builderImage struct {
	Src, Alt string
}

// NewHTMLBuilder starts an empty HTML fixture.
func NewHTMLBuilder() *HTMLBuilder {
	return &HTMLBuilder{}
}

func (b *HTMLBuilder) Title(title string) *HTMLBuilder { b.title = title; return b }

func (b *HTMLBuilder) MetaDescription(desc string) *HTMLBuilder { b.metaDesc = desc; return b }

func (b *HTMLBuilder) Canonical(url string) *HTMLBuilder { b.canonical = url; return b }

func (b *HTMLBuilder) H1(text string) *HTMLBuilder { b.h1 = text; return b }

func (b *HTMLBuilder) H2(text string) *HTMLBuilder { b.h2s = append(b.h2s, text); return b }

func (b *HTMLBuilder) Link(href, text string) *HTMLBuilder {
	b.links = append(b.links, builderLink{Href: href, Text: text})
	return b
}

func (b *HTMLBuilder) LinkWithRel(href, text, rel string) *HTMLBuilder {
	b.links = append(b.links, builderLink{Href: href, Text: text, Rel: rel})
	return b
}

func (b *HTMLBuilder) Img(src, alt string) *HTMLBuilder {
	b.images = append(b.images, builderImage{Src: src, Alt: alt})
	return b
}

func (b *HTMLBuilder) Script(src string) *HTMLBuilder { b.scripts = append(b.scripts, src); return b }

func (b *HTMLBuilder) Style(href string) *HTMLBuilder { b.styles = append(b.styles, href); return b }

func (b *HTMLBuilder) Body(content string) *HTMLBuilder { b.bodyContent = content; return b }

// Build renders the accumulated fixture as an HTML document string.
func (b *HTMLBuilder) Build() string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")

	if b.title != "" {
		sb.WriteString(fmt.Sprintf("  <title>%s</title>\n", b.title))
	}
	if b.metaDesc != "" {
		sb.WriteString(fmt.Sprintf("  <meta name=\"description\" content=\"%s\">\n", b.metaDesc))
	}
	if b.canonical != "" {
		sb.WriteString(fmt.Sprintf("  <link rel=\"canonical\" href=\"%s\">\n", b.canonical))
	}
	for _, style := range b.styles {
		sb.WriteString(fmt.Sprintf("  <link rel=\"stylesheet\" href=\"%s\">\n", style))
	}

	sb.WriteString("</head>\n<body>\n")

	if b.h1 != "" {
		sb.WriteString(fmt.Sprintf("  <h1>%s</h1>\n", b.h1))
	}
	for _, h2 := range b.h2s {
		sb.WriteString(fmt.Sprintf("  <h2>%s</h2>\n", h2))
	}
	if b.bodyContent != "" {
		sb.WriteString(b.bodyContent)
		sb.WriteString("\n")
	}
	for _, link := range b.links {
		if link.Rel != "" {
			sb.WriteString(fmt.Sprintf("  <a href=\"%s\" rel=\"%s\">%s</a>\n", link.Href, link.Rel, link.Text))
		} else {
			sb.WriteString(fmt.Sprintf("  <a href=\"%s\">%s</a>\n", link.Href, link.Text))
		}
	}
	for _, img := range b.images {
		sb.WriteString(fmt.Sprintf("  <img src=\"%s\" alt=\"%s\">\n", img.Src, img.Alt))
	}
	for _, script := range b.scripts {
		sb.WriteString(fmt.Sprintf("  <script src=\"%s\"></script>\n", script))
	}

	sb.WriteString("</body>\n</html>")
	return sb.String()
}
