package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// PrometheusExporter publishes crawl counters for pull-based scraping. It
// is purely additive: disabling it never changes engine behavior.
type PrometheusExporter struct {
	metrics *Metrics
	addr    string
	log     zerolog.Logger

	pagesTotal    prometheus.Counter
	bytesTotal    prometheus.Counter
	errorsTotal   prometheus.Counter
	pagesPerSec   prometheus.Gauge
	avgFetchSecs  prometheus.Gauge

	server *http.Server

	lastPages, lastBytes, lastErrors int64
}

// NewPrometheusExporter registers the crawler's metric families against a
// fresh registry and prepares (but does not start) an HTTP server at addr.
func NewPrometheusExporter(m *Metrics, addr string, log zerolog.Logger) *PrometheusExporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	e := &PrometheusExporter{
		metrics: m,
		addr:    addr,
		log:     log,
		pagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_pages_total", Help: "Total number of pages crawled.",
		}),
		bytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_bytes_total", Help: "Total number of bytes downloaded.",
		}),
		errorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawler_errors_total", Help: "Total number of crawl errors.",
		}),
		pagesPerSec: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_pages_per_second", Help: "Current crawl rate in pages per second.",
		}),
		avgFetchSecs: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_avg_fetch_duration_seconds", Help: "Average fetch duration in seconds.",
		}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	e.server = &http.Server{Addr: addr, Handler: mux}

	return e
}

// Start launches the HTTP server and a background refresh loop. Both stop
// when ctx is canceled.
func (e *PrometheusExporter) Start(ctx context.Context) {
	go func() {
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.log.Error().Err(err).Str("addr", e.addr).Msg("prometheus exporter stopped")
		}
	}()

	go e.refreshLoop(ctx)
}

func (e *PrometheusExporter) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = e.server.Shutdown(shutdownCtx)
			return
		case <-ticker.C:
			e.refresh()
		}
	}
}

func (e *PrometheusExporter) refresh() {
	totals, elapsed := e.metrics.Snapshot()

	if d := totals.Pages - e.lastPages; d > 0 {
		e.pagesTotal.Add(float64(d))
	}
	if d := totals.Bytes - e.lastBytes; d > 0 {
		e.bytesTotal.Add(float64(d))
	}
	if d := totals.Errors - e.lastErrors; d > 0 {
		e.errorsTotal.Add(float64(d))
	}
	if elapsed > 0 {
		e.pagesPerSec.Set(float64(totals.Pages) / elapsed)
	}
	if totals.Pages > 0 {
		e.avgFetchSecs.Set((totals.FetchMsSum / float64(totals.Pages)) / 1000.0)
	}

	e.lastPages, e.lastBytes, e.lastErrors = totals.Pages, totals.Bytes, totals.Errors
}
