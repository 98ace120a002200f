package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spider-crawler/crawler/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Timeout = 2 * time.Second
	return cfg
}

func TestFetchReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>hi</html>"))
	}))
	defer srv.Close()

	f := New(testConfig())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, resp.Error)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, "<html>hi</html>", string(resp.Body))
}

func TestFetchFollowsRedirectAndRecordsChain(t *testing.T) {
	var targetURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, targetURL, http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	targetURL = srv.URL + "/final"

	f := New(testConfig())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/start")
	require.NoError(t, resp.Error)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "landed", string(resp.Body))
	require.Len(t, resp.RedirectChain, 1)
	assert.Equal(t, 302, resp.RedirectChain[0].StatusCode)
}

func TestFetchRetriesOnServiceUnavailable(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(testConfig())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/flaky")
	require.NoError(t, resp.Error)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, int64(3), atomic.LoadInt64(&hits))
}

func TestFetchGivesUpAfterMaxRetriesOn429(t *testing.T) {
	var hits int64
	mux := http.NewServeMux()
	mux.HandleFunc("/limited", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := New(testConfig())
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/limited")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int64(maxRetries+1), atomic.LoadInt64(&hits))
}

func TestFetchStopsAfterMaxRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.String(), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxRedirects = 2
	f := New(cfg)
	defer f.Close()

	resp := f.Fetch(context.Background(), srv.URL+"/loop")
	require.Error(t, resp.Error)
}
