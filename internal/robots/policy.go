package robots

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/spider-crawler/crawler/internal/fetcher"
)

// fetchFunc retrieves robots.txt body bytes and an HTTP status for origin.
// Backed by a *fetcher.Fetcher in production (see fetchViaFetcher),
// stubbed in tests.
type fetchFunc func(ctx context.Context, robotsURL string) (status int, body string)

// Policy caches one parsed RobotsTxt per origin (scheme://host) and answers
// CanFetch without re-fetching robots.txt on every request to that origin.
type Policy struct {
	mu      sync.Mutex
	cache   map[string]*RobotsTxt
	fetch   fetchFunc
	fetcher *fetcher.Fetcher
}

// NewPolicy builds a Policy that fetches robots.txt through f.
func NewPolicy(f *fetcher.Fetcher) *Policy {
	p := &Policy{cache: make(map[string]*RobotsTxt), fetcher: f}
	p.fetch = p.fetchViaFetcher
	return p
}

func (p *Policy) fetchViaFetcher(ctx context.Context, robotsURL string) (int, string) {
	resp := p.fetcher.Fetch(ctx, robotsURL)
	if resp.Error != nil {
		return 0, ""
	}
	return resp.StatusCode, string(resp.Body)
}

// CanFetch reports whether userAgent may fetch rawURL under the origin's
// cached robots.txt. A fetch failure or an HTTP status >= 400 is treated
// as "no robots.txt restrictions" for the remainder of the run, matching
// the common crawler convention of failing open rather than refusing to
// crawl a site that simply has no robots.txt.
func (p *Policy) CanFetch(ctx context.Context, userAgent, rawURL string) bool {
	origin, path, err := splitOriginAndPath(rawURL)
	if err != nil {
		return true
	}

	rt := p.policyFor(ctx, origin)
	return rt.IsAllowed(userAgent, path)
}

func (p *Policy) policyFor(ctx context.Context, origin string) *RobotsTxt {
	p.mu.Lock()
	if rt, ok := p.cache[origin]; ok {
		p.mu.Unlock()
		return rt
	}
	p.mu.Unlock()

	status, body := p.fetch(ctx, origin+"/robots.txt")

	var rt *RobotsTxt
	if status >= 200 && status < 400 {
		rt = Parse(body)
	} else {
		rt = NewRobotsTxt()
	}

	p.mu.Lock()
	if existing, ok := p.cache[origin]; ok {
		p.mu.Unlock()
		return existing
	}
	p.cache[origin] = rt
	p.mu.Unlock()
	return rt
}

func splitOriginAndPath(rawURL string) (origin, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("robots: parse %s: %w", rawURL, err)
	}
	return u.Scheme + "://" + u.Host, ExtractPathFromURL(rawURL), nil
}
