package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets WaitTurn's sleep duration be asserted without a real sleep.
type fakeClock struct {
	t time.Time
}

func TestWaitTurnSpacesRequests(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var sleeps []time.Duration

	hl := New(500*time.Millisecond, 0)
	hl.now = func() time.Time { return clock.t }
	hl.sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
		clock.t = clock.t.Add(d)
	}

	hl.WaitTurn("a.com")
	assert.Empty(t, sleeps, "first call must not sleep")

	hl.WaitTurn("a.com")
	assert.Len(t, sleeps, 1)
	assert.GreaterOrEqual(t, sleeps[0], 490*time.Millisecond)
	assert.LessOrEqual(t, sleeps[0], 500*time.Millisecond)
}

func TestWaitTurnZeroDelayIsNoOp(t *testing.T) {
	hl := New(0, 0)
	slept := false
	hl.sleep = func(time.Duration) { slept = true }

	hl.WaitTurn("a.com")
	hl.WaitTurn("a.com")
	assert.False(t, slept)
}

func TestWaitTurnDistinctHostsDoNotInterfere(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var sleeps []time.Duration

	hl := New(500*time.Millisecond, 0)
	hl.now = func() time.Time { return clock.t }
	hl.sleep = func(d time.Duration) {
		sleeps = append(sleeps, d)
		clock.t = clock.t.Add(d)
	}

	hl.WaitTurn("a.com")
	hl.WaitTurn("b.com")
	assert.Empty(t, sleeps, "distinct hosts should not block each other")
}
