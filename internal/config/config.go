// Package config defines crawl configuration options.
package config

import (
	"fmt"
	"time"

	"github.com/spider-crawler/crawler/internal/crawlerr"
	"github.com/spider-crawler/crawler/internal/urlutil"
)

const (
	// DefaultUserAgent is sent when the operator does not override it.
	DefaultUserAgent = "spider-crawler/2.0 (+https://github.com/spider-crawler/crawler)"

	// DefaultBloomFalsePositiveRate is the target false-positive rate used
	// to size the visited-set accelerator when a store is configured.
	DefaultBloomFalsePositiveRate = 0.001
)

// Config holds all configuration for a single crawl run.
type Config struct {
	// Seeds are the start URLs.
	Seeds []string

	// AllowedDomains scopes the crawl; empty means "hosts of Seeds".
	AllowedDomains []string

	MaxPages     int
	MaxDepth     int
	Concurrency  int
	MaxConns     int
	MaxRedirects int

	Delay   time.Duration
	Timeout time.Duration

	UserAgent string

	OutputPath string

	IgnoreRobots bool

	SQLitePath string
	Resume     bool

	MetricsInterval time.Duration
	MetricsAddr     string

	LogLevel  string
	LogFormat string
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		MaxPages:        200,
		MaxDepth:        2,
		Concurrency:     8,
		MaxConns:        16,
		MaxRedirects:    5,
		Delay:           500 * time.Millisecond,
		Timeout:         15 * time.Second,
		UserAgent:       DefaultUserAgent,
		OutputPath:      "crawl.jsonl",
		MetricsInterval: 10 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Validate checks the configuration for consistency, returning a
// crawlerr.Error of KindConfig wrapping the first problem found. On
// success it fills in derived defaults: the user agent and, when no
// allowed domains are given, the hosts of the seed URLs.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return crawlerr.New(crawlerr.KindConfig, "at least one --start URL is required", nil)
	}
	if c.MaxPages < 1 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--max-pages must be >= 1, got %d", c.MaxPages), nil)
	}
	if c.MaxDepth < 0 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--max-depth must be >= 0, got %d", c.MaxDepth), nil)
	}
	if c.Concurrency < 1 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--concurrency must be >= 1, got %d", c.Concurrency), nil)
	}
	if c.MaxConns < 1 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--max-connections must be >= 1, got %d", c.MaxConns), nil)
	}
	if c.Delay < 0 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--delay must be >= 0, got %s", c.Delay), nil)
	}
	if c.Timeout < time.Second {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--timeout must be >= 1s, got %s", c.Timeout), nil)
	}
	if c.MetricsInterval < 0 {
		return crawlerr.New(crawlerr.KindConfig, fmt.Sprintf("--metrics-interval must be >= 0, got %s", c.MetricsInterval), nil)
	}
	if c.Resume && c.SQLitePath == "" {
		return crawlerr.New(crawlerr.KindConfig, "--resume requires --sqlite", nil)
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if len(c.AllowedDomains) == 0 {
		for _, seed := range urlutil.NormalizeStarts(c.Seeds) {
			if host, err := urlutil.ExtractHost(seed); err == nil && host != "" {
				c.AllowedDomains = append(c.AllowedDomains, host)
			}
		}
	}
	return nil
}

// Clone returns a deep-enough copy for safe concurrent reads; Config is
// treated as immutable after Validate succeeds.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Seeds = append([]string(nil), c.Seeds...)
	clone.AllowedDomains = append([]string(nil), c.AllowedDomains...)
	return &clone
}
