// Command crawler runs a polite, resumable, domain-scoped web crawl from
// the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/spider-crawler/crawler/internal/config"
	"github.com/spider-crawler/crawler/internal/crawlerr"
	"github.com/spider-crawler/crawler/internal/engine"
	"github.com/spider-crawler/crawler/internal/fetcher"
	"github.com/spider-crawler/crawler/internal/logging"
	"github.com/spider-crawler/crawler/internal/metrics"
	"github.com/spider-crawler/crawler/internal/ratelimit"
	"github.com/spider-crawler/crawler/internal/robots"
	"github.com/spider-crawler/crawler/internal/sink"
	"github.com/spider-crawler/crawler/internal/store"
)

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

func main() {
	cfg := config.Default()

	var starts, domains stringList
	flag.Var(&starts, "start", "seed URL (repeatable)")
	flag.Var(&domains, "allowed-domain", "domain to restrict the crawl to (repeatable)")
	maxPages := flag.Int("max-pages", cfg.MaxPages, "maximum number of pages to crawl")
	maxDepth := flag.Int("max-depth", cfg.MaxDepth, "maximum link depth from a start URL")
	concurrency := flag.Int("concurrency", cfg.Concurrency, "number of concurrent workers")
	maxConns := flag.Int("max-connections", cfg.MaxConns, "global request-rate ceiling across all hosts (requests per second)")
	delay := flag.Float64("delay", cfg.Delay.Seconds(), "minimum delay in seconds between requests to the same host")
	timeout := flag.Float64("timeout", cfg.Timeout.Seconds(), "per-request timeout in seconds")
	userAgent := flag.String("user-agent", cfg.UserAgent, "User-Agent header sent with every request")
	output := flag.String("out", cfg.OutputPath, "JSONL output path")
	ignoreRobots := flag.Bool("ignore-robots", false, "disable robots.txt enforcement")
	sqlitePath := flag.String("sqlite", "", "path to a SQLite database for resumable state")
	resume := flag.Bool("resume", false, "resume a previous crawl using --sqlite state")
	metricsInterval := flag.Float64("metrics-interval", cfg.MetricsInterval.Seconds(), "seconds between progress log lines (0 disables)")
	metricsAddr := flag.String("metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	logFormat := flag.String("log-format", cfg.LogFormat, "log format: text or json")
	flag.Parse()

	cfg.Seeds = starts
	cfg.AllowedDomains = domains
	cfg.MaxPages = *maxPages
	cfg.MaxDepth = *maxDepth
	cfg.Concurrency = *concurrency
	cfg.MaxConns = *maxConns
	cfg.Delay = time.Duration(*delay * float64(time.Second))
	cfg.Timeout = time.Duration(*timeout * float64(time.Second))
	cfg.UserAgent = *userAgent
	cfg.OutputPath = *output
	cfg.IgnoreRobots = *ignoreRobots
	cfg.SQLitePath = *sqlitePath
	cfg.Resume = *resume
	cfg.MetricsInterval = time.Duration(*metricsInterval * float64(time.Second))
	cfg.MetricsAddr = *metricsAddr
	cfg.LogLevel = *logLevel
	cfg.LogFormat = *logFormat

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("crawl failed")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	f := fetcher.New(cfg)
	defer f.Close()

	rp := robots.NewPolicy(f)
	rl := ratelimit.New(cfg.Delay, cfg.MaxConns)

	appendOut := cfg.Resume
	if _, err := os.Stat(cfg.OutputPath); err == nil {
		appendOut = true
		if cfg.SQLitePath != "" {
			cfg.Resume = true
		}
	}
	sk, err := sink.Open(cfg.OutputPath, appendOut)
	if err != nil {
		return fmt.Errorf("open sink: %w", err)
	}
	defer sk.Close()

	var st *store.Store
	if cfg.SQLitePath != "" {
		st, err = store.Open(cfg.SQLitePath)
		if err != nil {
			return crawlerr.New(crawlerr.KindStore, "open store", err)
		}
		defer st.Close()
	}

	m := metrics.New()
	if cfg.MetricsInterval > 0 {
		logger := metrics.NewStatsLogger(m, cfg.MetricsInterval, log)
		logger.Start()
		defer logger.Stop()
	}
	if cfg.MetricsAddr != "" {
		exporter := metrics.NewPrometheusExporter(m, cfg.MetricsAddr, log)
		exporter.Start(ctx)
	}

	eng := engine.New(cfg, f, rp, rl, sk, m, st, log)
	if err := eng.Init(ctx); err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	start := time.Now()
	eng.Run(ctx)
	log.Info().Dur("elapsed", time.Since(start)).Msg("crawl complete")
	return nil
}
