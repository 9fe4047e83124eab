// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/jeranaias/lynx-chat/internal/model"
)

// DefaultDemoInterval is the pause between demo lines.
const DefaultDemoInterval = 300 * time.Millisecond

// DemoLines is the fixed sequence replayed when no credential is configured.
var DemoLines = []string{
	"Hi! Streaming demo…",
	"This is a fallback because no API key is set.",
	"You can still demo the UI behavior.",
}

// Demo replays DemoLines with a fixed pause between consecutive lines.
type Demo struct {
	interval atomic.Int64
}

// NewDemo creates a demo streamer. A non-positive interval uses
// DefaultDemoInterval.
func NewDemo(interval time.Duration) *Demo {
	d := &Demo{}
	d.SetInterval(interval)
	return d
}

// SetInterval changes the pacing for streams opened afterwards.
func (d *Demo) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDemoInterval
	}
	d.interval.Store(int64(interval))
}

// Interval returns the current pacing.
func (d *Demo) Interval() time.Duration {
	return time.Duration(d.interval.Load())
}

// Configured always reports true; the demo needs nothing external.
func (d *Demo) Configured() bool {
	return true
}

// Open returns a stream over DemoLines. The messages are ignored.
func (d *Demo) Open(ctx context.Context, _ []model.Message) (*Stream, error) {
	return NewStream(ctx, &demoSource{lines: DemoLines, interval: d.Interval()}), nil
}

type demoSource struct {
	lines    []string
	interval time.Duration
	next     int
}

func (s *demoSource) Recv(ctx context.Context) (string, error) {
	if s.next >= len(s.lines) {
		return "", io.EOF
	}
	if s.next > 0 {
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	line := s.lines[s.next]
	s.next++
	return line, nil
}

func (s *demoSource) Close() error {
	return nil
}
