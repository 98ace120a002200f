package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimalParams(t *testing.T) {
	m, k := OptimalParams(1000, 0.01)
	assert.Greater(t, m, uint32(1000))
	assert.GreaterOrEqual(t, k, uint32(1))
	assert.Less(t, k, uint32(32))
}

func TestAddAndContainsNoFalseNegatives(t *testing.T) {
	f := New(1000, 1e-6)

	items := make([]string, 50)
	for i := range items {
		items[i] = fmt.Sprintf("url://example/%d", i)
	}
	for _, x := range items {
		f.Add(x)
	}
	for _, x := range items {
		require.True(t, f.Contains(x), "added key must test as present")
	}

	notAdded := make([]string, 10)
	for i := range notAdded {
		notAdded[i] = fmt.Sprintf("url://other/%d", i)
	}
	falsePositives := 0
	for _, x := range notAdded {
		if f.Contains(x) {
			falsePositives++
		}
	}
	assert.Equal(t, 0, falsePositives, "false-positive rate of 1e-6 should not trigger in 10 trials")
}

func TestAddBatchAndContainsBatch(t *testing.T) {
	f := New(1000, 1e-3)

	added := make([]string, 400)
	other := make([]string, 400)
	for i := range added {
		added[i] = fmt.Sprintf("item:%d", i)
		other[i] = fmt.Sprintf("other:%d", i)
	}

	f.AddBatch(added)
	resAdded := f.ContainsBatch(added)
	resOther := f.ContainsBatch(other)

	for _, ok := range resAdded {
		require.True(t, ok)
	}

	falsePositives := 0
	for _, ok := range resOther {
		if ok {
			falsePositives++
		}
	}
	// p=1e-3 over 400 trials expects ~0.4 positives; generous bound avoids flakiness.
	assert.LessOrEqual(t, falsePositives, 10)
}

func TestStats(t *testing.T) {
	f := New(1000, 1e-3)
	keys := make([]string, 50)
	for i := range keys {
		keys[i] = fmt.Sprintf("x%d", i)
	}
	f.AddBatch(keys)

	stats := f.Stats()
	assert.EqualValues(t, 50, stats.ItemsAdded)
	assert.Equal(t, f.m, stats.SizeBits)
	assert.Equal(t, f.k, stats.NumHashes)
	assert.GreaterOrEqual(t, stats.FillRatio, 0.0)
	assert.LessOrEqual(t, stats.FillRatio, 1.0)
	assert.GreaterOrEqual(t, stats.SetBits, uint64(1))
}

func TestNewUsesOptimalParams(t *testing.T) {
	n, p := uint64(1234), 0.02
	expM, expK := OptimalParams(n, p)
	f := New(n, p)
	assert.Equal(t, expM, f.m)
	assert.Equal(t, expK, f.k)
}
