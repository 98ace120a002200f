// Package engine implements the crawl orchestration loop: a pool of
// workers draining a shared frontier, gated by the visited set, robots
// policy, and rate limiter, and writing results to the sink and store.
package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/spider-crawler/crawler/internal/bloom"
	"github.com/spider-crawler/crawler/internal/config"
	"github.com/spider-crawler/crawler/internal/extractor"
	"github.com/spider-crawler/crawler/internal/fetcher"
	"github.com/spider-crawler/crawler/internal/frontier"
	"github.com/spider-crawler/crawler/internal/metrics"
	"github.com/spider-crawler/crawler/internal/ratelimit"
	"github.com/spider-crawler/crawler/internal/robots"
	"github.com/spider-crawler/crawler/internal/sink"
	"github.com/spider-crawler/crawler/internal/store"
	"github.com/spider-crawler/crawler/internal/urlutil"
)

const ironLockBatchSize = 1000

// Engine owns every collaborator needed to run one crawl from seeds to
// completion.
type Engine struct {
	cfg *config.Config
	log zerolog.Logger

	fetcher *fetcher.Fetcher
	robots  *robots.Policy
	rate    *ratelimit.HostLimiter
	sink    *sink.JSONLSink
	metrics *metrics.Metrics
	store   *store.Store // nil when running without persistence

	frontier *frontier.Frontier

	visitedMu sync.Mutex
	bloomF    *bloom.Filter  // non-nil only in with-store mode
	memSeen   map[string]bool // used only in without-store mode

	pageCount int64
}

// New assembles an Engine from its config and collaborators. s may be nil
// to run without persistence or resume support.
func New(cfg *config.Config, f *fetcher.Fetcher, rp *robots.Policy, rl *ratelimit.HostLimiter, sk *sink.JSONLSink, m *metrics.Metrics, s *store.Store, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		fetcher:  f,
		robots:   rp,
		rate:     rl,
		sink:     sk,
		metrics:  m,
		store:    s,
		frontier: frontier.New(cfg.MaxPages * 4),
		memSeen:  make(map[string]bool),
	}
}

// Init determines whether this run is fresh or resuming, then seeds the
// frontier (and, on resume, the Bloom filter) accordingly.
func (e *Engine) Init(ctx context.Context) error {
	resuming := e.store != nil && e.cfg.Resume

	if !resuming {
		e.seedFresh()
		return nil
	}
	return e.seedResume(ctx)
}

func (e *Engine) seedFresh() {
	for _, u := range urlutil.NormalizeStarts(e.cfg.Seeds) {
		e.frontier.Push(frontier.Entry{URL: u, Depth: 0})
		if e.store != nil {
			_, _ = e.store.MarkEnqueued(u, 0)
		}
	}
}

func (e *Engine) seedResume(ctx context.Context) error {
	n := e.cfg.MaxPages
	if n < 1 {
		n = 1
	}
	e.bloomF = bloom.New(uint64(n), config.DefaultBloomFalsePositiveRate)

	err := e.store.IterPagesURLs(ctx, ironLockBatchSize, func(batch []string) error {
		e.visitedMu.Lock()
		e.bloomF.AddBatch(batch)
		e.visitedMu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	rows, err := e.store.LoadFrontier()
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		e.frontier = frontier.New(len(rows) + e.cfg.MaxPages*4)
		for _, r := range rows {
			e.frontier.Push(frontier.Entry{URL: r.URL, Depth: r.Depth})
		}
		return nil
	}

	e.seedFresh()
	return nil
}

// Run drains the frontier with cfg.Concurrency workers until the page cap
// is reached or the frontier is exhausted, then returns.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.worker(ctx)
		}()
	}
	wg.Wait()
}

func (e *Engine) worker(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if atomic.LoadInt64(&e.pageCount) >= int64(e.cfg.MaxPages) {
			return
		}

		entry, ok := e.frontier.Pop()
		if !ok {
			return
		}

		if atomic.LoadInt64(&e.pageCount) >= int64(e.cfg.MaxPages) {
			return
		}

		if !e.cfg.IgnoreRobots && !e.robots.CanFetch(ctx, e.cfg.UserAgent, entry.URL) {
			e.dequeueQuiet(entry.URL)
			continue
		}

		if !e.shouldVisit(entry.URL) {
			continue
		}

		host, err := urlutil.ExtractHost(entry.URL)
		if err == nil {
			e.rate.WaitTurn(host)
		}

		resp := e.fetcher.Fetch(ctx, entry.URL)
		if resp.Error != nil {
			if ctx.Err() != nil {
				return
			}
			e.metrics.RecordFetch(false, 0, float64(resp.ResponseTime.Milliseconds()))
			e.dequeueQuiet(entry.URL)
			continue
		}

		xRobots := robots.ParseXRobotsTag(resp.Headers.Values("X-Robots-Tag")).GetDirectives(e.cfg.UserAgent)
		if xRobots != nil && !xRobots.IsIndexable() {
			e.dequeueQuiet(entry.URL)
			continue
		}

		rec := sink.Record{URL: entry.URL, Status: resp.StatusCode, ContentType: resp.ContentType}

		if strings.Contains(resp.ContentType, "text/html") && len(resp.Body) > 0 {
			page, err := extractor.Extract(entry.URL, resp.Body)
			if err == nil {
				rec.Title = page.Title
				rec.Description = page.Description
				rec.Text = page.Text
				rec.NumLinks = page.NumLinks
				if xRobots == nil || xRobots.IsFollowable() {
					e.enqueueLinks(page.Links, entry.Depth)
					if e.store != nil && len(page.Links) > 0 {
						_ = e.store.AddLinks(entry.URL, page.Links)
					}
				}
			}
		}

		if err := e.sink.Write(rec); err != nil {
			e.log.Error().Err(err).Str("url", entry.URL).Msg("sink write failed; worker exiting")
			return
		}
		e.metrics.RecordFetch(true, len(resp.Body), float64(resp.ResponseTime.Milliseconds()))

		if e.store != nil {
			_ = e.store.SavePage(store.PageRecord{
				URL: entry.URL, Status: rec.Status, ContentType: rec.ContentType,
				Title: rec.Title, Description: rec.Description, Text: rec.Text, Depth: entry.Depth,
			})
		}

		n := atomic.AddInt64(&e.pageCount, 1)
		if n%10 == 0 {
			e.log.Info().Int64("pages", n).Msg("crawl progress")
		}
	}
}

func (e *Engine) dequeueQuiet(url string) {
	if e.store != nil {
		_ = e.store.Dequeue(url)
	}
}

// shouldVisit is the visited-gate: it admits a URL at most once across
// the crawl's lifetime, using the Bloom filter as a fast negative and the
// store as the authoritative resolver for the rare false positive.
func (e *Engine) shouldVisit(url string) bool {
	if !urlutil.IsAllowedDomain(url, e.cfg.AllowedDomains) {
		return false
	}

	if e.store == nil {
		e.visitedMu.Lock()
		defer e.visitedMu.Unlock()
		if e.memSeen[url] {
			return false
		}
		e.memSeen[url] = true
		return true
	}

	e.visitedMu.Lock()
	if e.bloomF == nil {
		n := e.cfg.MaxPages
		if n < 1 {
			n = 1
		}
		e.bloomF = bloom.New(uint64(n), config.DefaultBloomFalsePositiveRate)
	}
	if !e.bloomF.Contains(url) {
		e.bloomF.Add(url)
		e.visitedMu.Unlock()
		return true
	}
	e.visitedMu.Unlock()

	has, err := e.store.HasPage(url)
	if err == nil && has {
		return false
	}

	e.visitedMu.Lock()
	e.bloomF.Add(url)
	e.visitedMu.Unlock()
	return true
}

// enqueueLinks pushes newly discovered links at currentDepth+1, provided
// depth and domain scope allow it and (in with-store mode) the link has
// not already been queued or crawled.
func (e *Engine) enqueueLinks(links []string, currentDepth int) {
	nextDepth := currentDepth + 1
	if nextDepth > e.cfg.MaxDepth {
		return
	}

	for _, link := range links {
		if !urlutil.IsAllowedDomain(link, e.cfg.AllowedDomains) {
			continue
		}

		if e.store == nil {
			e.frontier.Push(frontier.Entry{URL: link, Depth: nextDepth})
			continue
		}

		seen, err := e.store.SeenURL(link)
		if err != nil || seen {
			continue
		}
		inserted, err := e.store.MarkEnqueued(link, nextDepth)
		if err != nil || !inserted {
			continue
		}
		e.frontier.Push(frontier.Entry{URL: link, Depth: nextDepth})
	}
}
