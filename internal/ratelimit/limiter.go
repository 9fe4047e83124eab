// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit provides the per-identity admission limiter used by the
// chat relay.
//
// Each identity gets a fixed window that opens on its first consumption and
// holds at most Points permits. Once Duration has elapsed since the window
// opened, the next consumption starts a fresh window. State is in-memory and
// process-wide; nothing is shared between instances.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

const (
	// DefaultPoints is the number of requests permitted per window.
	DefaultPoints = 10

	// DefaultDuration is the window length.
	DefaultDuration = 60 * time.Second
)

// ErrRejected is returned by Consume when the identity has used up its window.
var ErrRejected = errors.New("rate limit exceeded")

// window tracks consumption for a single identity.
type window struct {
	start time.Time
	count int
}

// Limiter is a fixed-window counter keyed by client identity.
type Limiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	points   int
	duration time.Duration
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the limiter's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter permitting points requests per duration.
// Non-positive values fall back to the defaults.
func New(points int, duration time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
	l.setLimits(points, duration)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Consume charges one point to identity. It returns ErrRejected when the
// post-increment count exceeds the window capacity.
func (l *Limiter) Consume(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identity]
	if !ok || l.expiredLocked(w, now) {
		w = &window{start: now}
		l.windows[identity] = w
	}

	w.count++
	if w.count > l.points {
		return ErrRejected
	}
	return nil
}

// Remaining returns how many points identity may still consume in its
// current window.
func (l *Limiter) Remaining(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || l.expiredLocked(w, l.now()) {
		return l.points
	}
	if remaining := l.points - w.count; remaining > 0 {
		return remaining
	}
	return 0
}

// ResetIn returns the time until identity's window resets, or zero when no
// window is open.
func (l *Limiter) ResetIn(identity string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identity]
	if !ok || l.expiredLocked(w, now) {
		return 0
	}
	return w.start.Add(l.duration).Sub(now)
}

// Limits returns the configured capacity and window length.
func (l *Limiter) Limits() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.points, l.duration
}

// SetLimits changes capacity and window length. Open windows keep their
// start time and are judged against the new values.
func (l *Limiter) SetLimits(points int, duration time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLimits(points, duration)
}

func (l *Limiter) setLimits(points int, duration time.Duration) {
	if points <= 0 {
		points = DefaultPoints
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	l.points = points
	l.duration = duration
}

// Len returns the number of tracked identities.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Sweep drops identities whose window has elapsed and returns how many were
// removed. It never changes an admission decision.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for identity, w := range l.windows {
		if l.expiredLocked(w, now) {
			delete(l.windows, identity)
			removed++
		}
	}
	return removed
}

// Run sweeps expired identities every interval until ctx is done.
// A non-positive interval uses the window length.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, interval = l.Limits()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Sweep()
		}
	}
}

func (l *Limiter) expiredLocked(w *window, now time.Time) bool {
	return now.Sub(w.start) >= l.duration
}
