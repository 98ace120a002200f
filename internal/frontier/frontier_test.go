package frontier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPushPopOrder(t *testing.T) {
	f := New(4)
	f.Push(Entry{URL: "https://example.com/a", Depth: 0})
	f.Push(Entry{URL: "https://example.com/b", Depth: 1})

	e1, ok := f.Pop()
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/a", e1.URL)

	e2, ok := f.Pop()
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/b", e2.URL)
}

func TestPopTimesOutWhenEmpty(t *testing.T) {
	f := New(1)
	start := time.Now()
	_, ok := f.Pop()
	elapsed := time.Since(start)

	assert.False(t, ok)
	assert.GreaterOrEqual(t, elapsed, PopTimeout)
}

func TestLenReflectsBufferedEntries(t *testing.T) {
	f := New(4)
	assert.Equal(t, 0, f.Len())
	f.Push(Entry{URL: "https://example.com/a"})
	assert.Equal(t, 1, f.Len())
	f.Pop()
	assert.Equal(t, 0, f.Len())
}
