// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"io"
)

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome tags how a Stream ended.
type Outcome int

const (
	// OutcomePending means the stream has not ended yet.
	OutcomePending Outcome = iota
	// OutcomeExhausted means the backend signalled completion.
	OutcomeExhausted
	// OutcomeCancelled means the caller's context ended the stream early.
	OutcomeCancelled
	// OutcomeFailed means the backend reported an error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// =============================================================================
// STREAM
// =============================================================================

// Source produces raw text items for a Stream. Recv returns io.EOF once the
// backend has finished. Items may be empty.
type Source interface {
	Recv(ctx context.Context) (string, error)
	Close() error
}

// Stream is a finite, single-use sequence of non-empty text fragments.
//
//	for s.Next() {
//	    write(s.Text())
//	}
//	switch s.Outcome() { ... }
//
// Stream is not safe for concurrent use.
type Stream struct {
	ctx     context.Context
	src     Source
	text    string
	err     error
	outcome Outcome
}

// NewStream wraps src. The stream observes ctx before every read.
func NewStream(ctx context.Context, src Source) *Stream {
	return &Stream{ctx: ctx, src: src}
}

// Next advances to the next non-empty fragment. It returns false once the
// stream has ended; Outcome then reports why.
func (s *Stream) Next() bool {
	if s.outcome != OutcomePending {
		return false
	}

	for {
		if s.ctx.Err() != nil {
			s.finish(OutcomeCancelled, nil)
			return false
		}

		text, err := s.src.Recv(s.ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.finish(OutcomeExhausted, nil)
			case s.ctx.Err() != nil || errors.Is(err, context.Canceled):
				s.finish(OutcomeCancelled, nil)
			default:
				s.finish(OutcomeFailed, &Error{Type: ErrTypeStream, Message: "backend stream failed", Cause: err})
			}
			return false
		}

		if text == "" {
			continue
		}
		s.text = text
		return true
	}
}

// Text returns the current fragment.
func (s *Stream) Text() string {
	return s.text
}

// Err returns the failure when Outcome is OutcomeFailed, nil otherwise.
func (s *Stream) Err() error {
	return s.err
}

// Outcome reports how the stream ended.
func (s *Stream) Outcome() Outcome {
	return s.outcome
}

// Close releases the source. A stream closed before it ended counts as
// cancelled.
func (s *Stream) Close() error {
	if s.outcome != OutcomePending {
		return nil
	}
	s.outcome = OutcomeCancelled
	s.text = ""
	return s.src.Close()
}

func (s *Stream) finish(outcome Outcome, err error) {
	s.outcome = outcome
	s.err = err
	s.text = ""
	_ = s.src.Close()
}
