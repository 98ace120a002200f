// Package sink writes crawl output as newline-delimited JSON.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Record is one JSONL line describing a crawled page.
type Record struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
	NumLinks    int    `json:"num_links"`
}

// JSONLSink appends one JSON object per line to a file, flushing after
// every write so a killed process leaves a file truncated only at a line
// boundary, never a partially-written line.
type JSONLSink struct {
	mu sync.Mutex
	f  *os.File
	enc *json.Encoder
}

// Open creates (or appends to, if append is true) the file at path,
// creating parent directories as needed.
func Open(path string, append bool) (*JSONLSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sink: mkdir %s: %w", dir, err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	if append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sink: open %s: %w", path, err)
	}

	return &JSONLSink{f: f, enc: json.NewEncoder(f)}, nil
}

// Write appends rec as one JSON line and flushes it to disk.
func (s *JSONLSink) Write(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("sink: write %s: %w", rec.URL, err)
	}
	return s.f.Sync()
}

// Close flushes and closes the underlying file. It is safe to call more
// than once.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
