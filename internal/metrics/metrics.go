// Package metrics accumulates crawl counters and periodically logs a
// snapshot. An optional Prometheus exporter can additionally publish the
// same counters for pull-based scraping.
package metrics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Totals is a point-in-time copy of the accumulated counters.
type Totals struct {
	Pages      int64
	Bytes      int64
	Errors     int64
	FetchMsSum float64
}

// Metrics accumulates fetch outcomes under a single lock.
type Metrics struct {
	mu     sync.Mutex
	totals Totals
	start  time.Time
}

// New creates a Metrics with its start timestamp set to now.
func New() *Metrics {
	return &Metrics{start: time.Now()}
}

// RecordFetch updates the totals for one completed fetch attempt.
func (m *Metrics) RecordFetch(ok bool, bytesRead int, fetchMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Pages++
	if bytesRead > 0 {
		m.totals.Bytes += int64(bytesRead)
	}
	if !ok {
		m.totals.Errors++
	}
	m.totals.FetchMsSum += fetchMs
}

// Snapshot returns a consistent copy of the totals plus elapsed seconds
// since Metrics was created.
func (m *Metrics) Snapshot() (Totals, float64) {
	m.mu.Lock()
	t := m.totals
	m.mu.Unlock()

	elapsed := time.Since(m.start).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-6
	}
	return t, elapsed
}

// StatsLogger periodically snapshots Metrics and emits a log line. It runs
// on its own goroutine and stops on Stop.
type StatsLogger struct {
	metrics  *Metrics
	interval time.Duration
	log      zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewStatsLogger builds a logger that wakes every interval (minimum 500ms).
func NewStatsLogger(m *Metrics, interval time.Duration, log zerolog.Logger) *StatsLogger {
	if interval < 500*time.Millisecond {
		interval = 500 * time.Millisecond
	}
	return &StatsLogger{
		metrics:  m,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the periodic logging goroutine.
func (s *StatsLogger) Start() {
	go s.run()
}

func (s *StatsLogger) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			totals, elapsed := s.metrics.Snapshot()
			pps := float64(totals.Pages) / elapsed
			avgMs := 0.0
			if totals.Pages > 0 {
				avgMs = totals.FetchMsSum / float64(totals.Pages)
			}
			s.log.Info().
				Int64("pages", totals.Pages).
				Int64("errors", totals.Errors).
				Float64("mb", float64(totals.Bytes)/(1024*1024)).
				Float64("avg_fetch_ms", avgMs).
				Float64("pages_per_sec", pps).
				Msg("crawl progress")
		}
	}
}

// Stop signals the logger goroutine to exit and waits for it to finish.
func (s *StatsLogger) Stop() {
	close(s.stop)
	<-s.done
}
