// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// CONSUME TESTS
// =============================================================================

func TestLimiter_RejectsAfterPoints(t *testing.T) {
	cases := []struct {
		points   int
		duration time.Duration
	}{
		{1, time.Second},
		{3, 10 * time.Second},
		{10, 60 * time.Second},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("p=%d,d=%s", tc.points, tc.duration), func(t *testing.T) {
			clock := newFakeClock()
			l := New(tc.points, tc.duration, WithClock(clock.Now))

			for i := 0; i < tc.points; i++ {
				require.NoError(t, l.Consume("10.0.0.1"), "call %d", i+1)
			}
			assert.ErrorIs(t, l.Consume("10.0.0.1"), ErrRejected)

			clock.Advance(tc.duration - time.Nanosecond)
			assert.ErrorIs(t, l.Consume("10.0.0.1"), ErrRejected, "window still open")

			clock.Advance(time.Nanosecond)
			assert.NoError(t, l.Consume("10.0.0.1"), "window elapsed")
		})
	}
}

func TestLimiter_IndependentIdentities(t *testing.T) {
	l := New(1, time.Minute, WithClock(newFakeClock().Now))

	require.NoError(t, l.Consume("a"))
	require.NoError(t, l.Consume("b"))
	assert.ErrorIs(t, l.Consume("a"), ErrRejected)
	assert.ErrorIs(t, l.Consume("b"), ErrRejected)
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_WindowStartsAtFirstConsumption(t *testing.T) {
	clock := newFakeClock()
	l := New(2, 10*time.Second, WithClock(clock.Now))

	require.NoError(t, l.Consume("ip"))
	clock.Advance(9 * time.Second)
	require.NoError(t, l.Consume("ip"))
	assert.ErrorIs(t, l.Consume("ip"), ErrRejected)

	// The window opened at t=0, not at the second call.
	clock.Advance(time.Second)
	assert.NoError(t, l.Consume("ip"))
}

func TestLimiter_Defaults(t *testing.T) {
	l := New(0, 0)
	points, duration := l.Limits()
	assert.Equal(t, DefaultPoints, points)
	assert.Equal(t, DefaultDuration, duration)
}

// =============================================================================
// INTROSPECTION TESTS
// =============================================================================

func TestLimiter_RemainingAndResetIn(t *testing.T) {
	clock := newFakeClock()
	l := New(3, time.Minute, WithClock(clock.Now))

	assert.Equal(t, 3, l.Remaining("x"))
	assert.Zero(t, l.ResetIn("x"))

	require.NoError(t, l.Consume("x"))
	clock.Advance(20 * time.Second)
	assert.Equal(t, 2, l.Remaining("x"))
	assert.Equal(t, 40*time.Second, l.ResetIn("x"))

	for i := 0; i < 5; i++ {
		_ = l.Consume("x")
	}
	assert.Equal(t, 0, l.Remaining("x"))
}

func TestLimiter_SetLimits(t *testing.T) {
	clock := newFakeClock()
	l := New(1, time.Minute, WithClock(clock.Now))

	require.NoError(t, l.Consume("x"))
	assert.ErrorIs(t, l.Consume("x"), ErrRejected)

	l.SetLimits(5, time.Minute)
	assert.NoError(t, l.Consume("x"))
}

// =============================================================================
// SWEEP TESTS
// =============================================================================

func TestLimiter_Sweep(t *testing.T) {
	clock := newFakeClock()
	l := New(5, time.Minute, WithClock(clock.Now))

	require.NoError(t, l.Consume("old"))
	clock.Advance(30 * time.Second)
	require.NoError(t, l.Consume("new"))
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 4, l.Remaining("new"))
}

func TestLimiter_RunStopsOnCancel(t *testing.T) {
	l := New(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, time.Millisecond)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLimiter_ConcurrentConsume(t *testing.T) {
	l := New(50, time.Minute)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Consume("shared") == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, accepted)
}
