// Package fetcher issues HTTP requests with connection pooling, manual
// redirect-chain tracking, and retry classification for network errors.
package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spider-crawler/crawler/internal/config"
)

// maxRetries is the number of additional attempts made after the first,
// for responses with a retryable status (429/5xx) or a retryable network
// error. Mirrors the original client's Retry(total=2, ...).
const maxRetries = 2

// retryBackoffBase is the base delay between retries; attempt n sleeps
// retryBackoffBase * 2^n, matching urllib3's backoff_factor progression.
const retryBackoffBase = 300 * time.Millisecond

// Fetcher issues GET requests and follows redirects itself, so the full
// chain can be recorded and the crawl's redirect policy applied per hop.
type Fetcher struct {
	client      *http.Client
	cfg         *config.Config
	maxBodySize int64
	transport   *http.Transport
}

// New builds a Fetcher whose transport keeps up to the config's MaxConns
// idle connections per host.
func New(cfg *config.Config) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	f := &Fetcher{
		cfg:         cfg,
		maxBodySize: 10 * 1024 * 1024,
		transport:   transport,
	}

	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return f
}

// Fetch retrieves rawURL, following redirects (up to the configured
// maximum) and recording every hop in the returned Response. A response
// with a retryable status (429/5xx) or a retryable transport error is
// retried up to maxRetries times with a growing backoff before being
// returned to the caller.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Response {
	var resp *Response

	for attempt := 0; ; attempt++ {
		resp = f.fetchOnce(ctx, rawURL)

		if attempt >= maxRetries {
			return resp
		}
		if resp.Error != nil {
			if !resp.Retryable {
				return resp
			}
		} else if !isRetryableStatus(resp.StatusCode) {
			return resp
		}

		select {
		case <-ctx.Done():
			return resp
		case <-time.After(retryBackoffBase * time.Duration(int64(1)<<uint(attempt))):
		}
	}
}

// fetchOnce performs a single fetch attempt, following redirects up to the
// configured maximum and recording every hop in the returned Response.
func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) *Response {
	start := time.Now()
	resp := &Response{RequestURL: rawURL}

	currentURL := rawURL
	var ttfbRecorded bool

	for i := 0; i <= f.cfg.MaxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			resp.Error = fmt.Errorf("fetcher: build request: %w", err)
			return resp
		}
		f.setRequestHeaders(req)

		reqStart := time.Now()
		httpResp, err := f.client.Do(req)
		if err != nil {
			resp.Error = f.categorizeError(err)
			resp.Retryable = f.isRetryableError(err)
			resp.FinalURL = currentURL
			return resp
		}

		if !ttfbRecorded {
			resp.TTFB = time.Since(reqStart)
			ttfbRecorded = true
		}

		if httpResp.StatusCode >= 300 && httpResp.StatusCode < 400 {
			location := httpResp.Header.Get("Location")
			httpResp.Body.Close()

			resp.RedirectChain = append(resp.RedirectChain, RedirectHop{
				URL:        currentURL,
				StatusCode: httpResp.StatusCode,
				Location:   location,
			})

			if location == "" {
				resp.FinalURL = currentURL
				resp.StatusCode = httpResp.StatusCode
				return resp
			}

			next, err := resolveRedirectURL(currentURL, location)
			if err != nil {
				resp.Error = fmt.Errorf("fetcher: invalid redirect location: %w", err)
				resp.FinalURL = currentURL
				resp.StatusCode = httpResp.StatusCode
				return resp
			}
			currentURL = next
			continue
		}

		resp.FinalURL = currentURL
		resp.StatusCode = httpResp.StatusCode
		resp.Status = httpResp.Status
		resp.Headers = httpResp.Header
		resp.ContentType = extractContentType(httpResp.Header.Get("Content-Type"))
		resp.ContentLength = httpResp.ContentLength
		resp.Retryable = isRetryableStatus(httpResp.StatusCode)

		body, bodySize, err := f.readBody(httpResp)
		httpResp.Body.Close()
		if err != nil {
			resp.Error = fmt.Errorf("fetcher: read body: %w", err)
			resp.Retryable = true
		} else {
			resp.Body = body
			resp.BodySize = bodySize
		}

		resp.ResponseTime = time.Since(start)
		return resp
	}

	resp.Error = fmt.Errorf("fetcher: max redirects (%d) exceeded", f.cfg.MaxRedirects)
	resp.FinalURL = currentURL
	return resp
}

func (f *Fetcher) setRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, int64, error) {
	var reader io.Reader = resp.Body

	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, 0, err
	}
	return body, int64(len(body)), nil
}

// categorizeError labels common network failures so callers and logs can
// distinguish timeouts, DNS failures, and connection failures.
func (f *Fetcher) categorizeError(err error) error {
	if err == nil {
		return nil
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("dns error: %w", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("connection failed: %w", err)
	}
	return err
}

// isRetryableStatus reports whether status is one the original client's
// status_forcelist retries: 429 or any 5xx.
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func (f *Fetcher) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "no such host", "eof", "broken pipe"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Close releases pooled idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

func resolveRedirectURL(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(loc).String(), nil
}

func extractContentType(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}
