package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "crawl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkEnqueuedDedupesAndLoadFrontier(t *testing.T) {
	s := openTestStore(t)

	inserted, err := s.MarkEnqueued("https://a.com", 0)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.MarkEnqueued("https://a.com", 0)
	require.NoError(t, err)
	assert.False(t, inserted)

	rows, err := s.LoadFrontier()
	require.NoError(t, err)
	assert.Equal(t, []FrontierRow{{URL: "https://a.com", Depth: 0}}, rows)
}

func TestSavePageDequeuesAndMarksSeen(t *testing.T) {
	s := openTestStore(t)

	_, err := s.MarkEnqueued("https://a.com", 0)
	require.NoError(t, err)

	err = s.SavePage(PageRecord{URL: "https://a.com", Status: 200, ContentType: "text/html", Depth: 0})
	require.NoError(t, err)

	seen, err := s.SeenURL("https://a.com")
	require.NoError(t, err)
	assert.True(t, seen)

	has, err := s.HasPage("https://a.com")
	require.NoError(t, err)
	assert.True(t, has)

	rows, err := s.LoadFrontier()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDequeueRemovesEntryWithoutSavingPage(t *testing.T) {
	s := openTestStore(t)

	_, err := s.MarkEnqueued("https://a.com", 0)
	require.NoError(t, err)

	require.NoError(t, s.Dequeue("https://a.com"))

	rows, err := s.LoadFrontier()
	require.NoError(t, err)
	assert.Empty(t, rows)

	has, err := s.HasPage("https://a.com")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAddLinksIgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)

	err := s.AddLinks("https://a.com", []string{"https://b.com", "https://c.com", "https://b.com"})
	require.NoError(t, err)
	// a second call with an overlapping edge should not error (UNIQUE constraint is swallowed)
	err = s.AddLinks("https://a.com", []string{"https://b.com"})
	require.NoError(t, err)
}

func TestIterPagesURLsStreamsInBatches(t *testing.T) {
	s := openTestStore(t)

	const total = 25
	for i := 0; i < total; i++ {
		url := "https://example.com/page/" + string(rune('a'+i%26))
		require.NoError(t, s.SavePage(PageRecord{URL: url, Status: 200, Depth: 0}))
	}

	var batches [][]string
	err := s.IterPagesURLs(context.Background(), 10, func(batch []string) error {
		cp := append([]string(nil), batch...)
		batches = append(batches, cp)
		return nil
	})
	require.NoError(t, err)

	var count int
	for _, b := range batches {
		count += len(b)
		assert.LessOrEqual(t, len(b), 10)
	}
	assert.Equal(t, total, count)
}
