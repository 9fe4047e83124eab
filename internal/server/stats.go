// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"sync/atomic"
	"time"

	"github.com/jeranaias/lynx-chat/internal/backend"
)

// ============================================================================
// SERVER STATS
// ============================================================================

// Stats counts relay outcomes. All methods are safe for concurrent use.
type Stats struct {
	requests         atomic.Int64
	methodNotAllowed atomic.Int64
	rateLimited      atomic.Int64
	invalid          atomic.Int64
	fallback         atomic.Int64
	live             atomic.Int64
	completed        atomic.Int64
	cancelled        atomic.Int64
	failed           atomic.Int64
	fragments        atomic.Int64
	startTime        time.Time
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TotalRequests    int64     `json:"total_requests"`
	MethodNotAllowed int64     `json:"method_not_allowed"`
	RateLimited      int64     `json:"rate_limited"`
	InvalidRequests  int64     `json:"invalid_requests"`
	FallbackStreams  int64     `json:"fallback_streams"`
	LiveStreams      int64     `json:"live_streams"`
	Completed        int64     `json:"completed"`
	Cancelled        int64     `json:"cancelled"`
	Failed           int64     `json:"failed"`
	Fragments        int64     `json:"fragments"`
	StartTime        time.Time `json:"start_time"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

// RecordRequest counts a chat request before admission.
func (s *Stats) RecordRequest() { s.requests.Add(1) }

// RecordMethodNotAllowed counts a non-POST chat request.
func (s *Stats) RecordMethodNotAllowed() { s.methodNotAllowed.Add(1) }

// RecordRateLimited counts a rejected admission.
func (s *Stats) RecordRateLimited() { s.rateLimited.Add(1) }

// RecordInvalid counts a malformed body.
func (s *Stats) RecordInvalid() { s.invalid.Add(1) }

// RecordStream counts a stream start in the given mode.
func (s *Stats) RecordStream(fallback bool) {
	if fallback {
		s.fallback.Add(1)
		return
	}
	s.live.Add(1)
}

// RecordFragment counts one written fragment.
func (s *Stats) RecordFragment() { s.fragments.Add(1) }

// RecordOutcome counts how a stream ended.
func (s *Stats) RecordOutcome(outcome backend.Outcome) {
	switch outcome {
	case backend.OutcomeExhausted:
		s.completed.Add(1)
	case backend.OutcomeCancelled:
		s.cancelled.Add(1)
	case backend.OutcomeFailed:
		s.failed.Add(1)
	}
}

// Uptime returns the server uptime duration.
func (s *Stats) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalRequests:    s.requests.Load(),
		MethodNotAllowed: s.methodNotAllowed.Load(),
		RateLimited:      s.rateLimited.Load(),
		InvalidRequests:  s.invalid.Load(),
		FallbackStreams:  s.fallback.Load(),
		LiveStreams:      s.live.Load(),
		Completed:        s.completed.Load(),
		Cancelled:        s.cancelled.Load(),
		Failed:           s.failed.Load(),
		Fragments:        s.fragments.Load(),
		StartTime:        s.startTime,
		UptimeSeconds:    int64(s.Uptime().Seconds()),
	}
}
