// Package store provides the crawler's durable persistence: the frontier,
// crawled pages, and the link graph, backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// PageRecord is the durable outcome of a fetch, matching the JSONL record
// shape plus the depth at which it was discovered.
type PageRecord struct {
	URL         string
	Status      int
	ContentType string
	Title       string
	Description string
	Text        string
	Depth       int
	CrawledAt   time.Time
}

// FrontierRow is a persisted pending-visit entry.
type FrontierRow struct {
	URL   string
	Depth int
}

// Store is a SQLite-backed persistence layer. All statements are
// serialized through a single exclusive lock: SQLite permits only one
// writer, and serializing here avoids surprising the driver with
// concurrent access from multiple worker goroutines.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open connects to the SQLite database at path, configuring
// write-ahead logging so readers are not blocked by writers, and
// initializes the schema if it does not already exist.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	// SQLite supports exactly one writer; a single pooled connection
	// keeps the database/sql pool from handing out concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// MarkEnqueued inserts url into the frontier at depth if it is not
// already present. It returns true iff a row was inserted.
func (s *Store) MarkEnqueued(url string, depth int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`INSERT OR IGNORE INTO frontier(url, depth) VALUES (?, ?)`, url, depth)
	if err != nil {
		return false, fmt.Errorf("store: mark_enqueued %s: %w", url, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: mark_enqueued rows affected %s: %w", url, err)
	}
	return n > 0, nil
}

// Dequeue removes url from the frontier.
func (s *Store) Dequeue(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM frontier WHERE url = ?`, url); err != nil {
		return fmt.Errorf("store: dequeue %s: %w", url, err)
	}
	return nil
}

// SeenURL reports whether url exists in pages or frontier.
func (s *Store) SeenURL(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pages WHERE url = ? LIMIT 1`, url).Scan(&exists)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("store: seen_url pages %s: %w", url, err)
	}

	err = s.db.QueryRow(`SELECT 1 FROM frontier WHERE url = ? LIMIT 1`, url).Scan(&exists)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("store: seen_url frontier %s: %w", url, err)
	}
	return false, nil
}

// HasPage reports whether url has a saved page record.
func (s *Store) HasPage(url string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRow(`SELECT 1 FROM pages WHERE url = ? LIMIT 1`, url).Scan(&exists)
	if err == nil {
		return true, nil
	}
	if err == sql.ErrNoRows {
		return false, nil
	}
	return false, fmt.Errorf("store: has_page %s: %w", url, err)
}

// LoadFrontier returns all persisted frontier rows ordered by ascending
// depth, for restoring the in-memory queue on resume.
func (s *Store) LoadFrontier() ([]FrontierRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT url, depth FROM frontier ORDER BY depth ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: load_frontier: %w", err)
	}
	defer rows.Close()

	var out []FrontierRow
	for rows.Next() {
		var r FrontierRow
		if err := rows.Scan(&r.URL, &r.Depth); err != nil {
			return nil, fmt.Errorf("store: load_frontier scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// IterPagesURLs streams page URLs to fn in batches of batchSize, bounding
// peak memory when preloading the Bloom filter on resume.
func (s *Store) IterPagesURLs(ctx context.Context, batchSize int, fn func(batch []string) error) error {
	if batchSize < 1 {
		batchSize = 1000
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM pages`)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store: iter_pages_urls: %w", err)
	}
	defer rows.Close()

	batch := make([]string, 0, batchSize)
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return fmt.Errorf("store: iter_pages_urls scan: %w", err)
		}
		batch = append(batch, url)
		if len(batch) >= batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

// SavePage upserts a page row, then removes it from the frontier, as a
// single observable transition under one lock acquisition.
func (s *Store) SavePage(rec PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: save_page begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO pages(url, status, content_type, title, description, text, depth)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			status = excluded.status,
			content_type = excluded.content_type,
			title = excluded.title,
			description = excluded.description,
			text = excluded.text,
			depth = excluded.depth,
			crawled_at = CURRENT_TIMESTAMP`,
		rec.URL, rec.Status, rec.ContentType, rec.Title, rec.Description, rec.Text, rec.Depth)
	if err != nil {
		return fmt.Errorf("store: save_page upsert %s: %w", rec.URL, err)
	}

	if _, err := tx.Exec(`DELETE FROM frontier WHERE url = ?`, rec.URL); err != nil {
		return fmt.Errorf("store: save_page dequeue %s: %w", rec.URL, err)
	}

	return tx.Commit()
}

// AddLinks bulk inserts (fromURL, toURL) edges, ignoring duplicates.
func (s *Store) AddLinks(fromURL string, toURLs []string) error {
	if len(toURLs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: add_links begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links(from_url, to_url) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: add_links prepare: %w", err)
	}
	defer stmt.Close()

	for _, to := range toURLs {
		if _, err := stmt.Exec(fromURL, to); err != nil {
			return fmt.Errorf("store: add_links %s -> %s: %w", fromURL, to, err)
		}
	}

	return tx.Commit()
}
