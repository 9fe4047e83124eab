// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/stream"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the session's request state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// HTTPError records a non-success relay status. The body is still read.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// State is a snapshot of the session.
type State struct {
	Messages []model.Message
	Status   Status
	Err      error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds session options.
type Config struct {
	// Endpoint is the relay base URL (default: http://localhost:8787).
	Endpoint string

	// Greeting seeds the conversation; empty starts it empty.
	Greeting string

	// HTTPClient performs requests (default: a client without timeout).
	HTTPClient *http.Client
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint: "http://localhost:8787",
		Greeting: model.DefaultGreeting,
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns a conversation and at most one outstanding request. Only the
// session mutates the conversation; callers observe it through State and
// Subscribe.
type Session struct {
	chatURL string
	client  *http.Client

	mu     sync.Mutex
	conv   *model.Conversation
	status Status
	err    error
	gen    uint64
	cancel context.CancelFunc
	active *model.Message
	done   chan struct{}

	notifyMu  sync.Mutex
	listeners map[int]func(State)
	nextID    int
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultConfig().Endpoint
	}
	chatURL, err := url.JoinPath(cfg.Endpoint, "api", "chat")
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", cfg.Endpoint, err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Session{
		chatURL:   chatURL,
		client:    client,
		conv:      model.NewConversation(cfg.Greeting),
		status:    StatusIdle,
		listeners: make(map[int]func(State)),
	}, nil
}

// Send submits text as a new user turn and streams the reply into a fresh
// assistant message. Blank text is ignored. Any outstanding request is
// cancelled first and its remaining fragments are discarded.
func (s *Session) Send(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}

	history := s.conv.Snapshot()
	user := s.conv.AddUserMessage(text)
	active := s.conv.AddAssistantMessage()
	payload := append(history, *user)

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.cancel = cancel
	s.active = active
	s.done = done
	s.status = StatusStreaming
	s.err = nil
	s.mu.Unlock()

	s.notify()
	go s.run(ctx, gen, active, payload, done)
}

// Cancel aborts the outstanding request. With nothing in flight it does
// nothing.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.cancel = nil
	s.gen++
	s.active = nil
	s.status = StatusIdle
	s.err = nil
	s.mu.Unlock()

	s.notify()
}

// Wait blocks until the most recent Send has finished.
func (s *Session) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		Messages: s.conv.Snapshot(),
		Status:   s.status,
		Err:      s.err,
	}
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned function removes it. fn must not call Send or Cancel.
func (s *Session) Subscribe(fn func(State)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.listeners, id)
	}
}

// notify delivers the current state to listeners, in order.
func (s *Session) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if len(s.listeners) == 0 {
		return
	}
	state := s.State()
	for _, fn := range s.listeners {
		fn(state)
	}
}

// =============================================================================
// STREAMING
// =============================================================================

type chatRequest struct {
	Messages []model.Message `json:"messages"`
}

func (s *Session) run(ctx context.Context, gen uint64, active *model.Message, payload []model.Message, done chan struct{}) {
	defer close(done)
	err := s.stream(ctx, gen, active, payload)
	s.finish(ctx, gen, err)
}

func (s *Session) stream(ctx context.Context, gen uint64, active *model.Message, payload []model.Message) error {
	body, err := json.Marshal(chatRequest{Messages: payload})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.chatURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}

	fr := stream.NewFrameReader(resp.Body)
	defer fr.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.recordError(gen, &HTTPError{StatusCode: resp.StatusCode})
	}

	for fr.Next() {
		if !s.apply(gen, active, fr.Frame()) {
			return context.Canceled
		}
	}
	return fr.Err()
}

// apply appends frame to the active message if gen is still current.
func (s *Session) apply(gen uint64, active *model.Message, frame string) bool {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return false
	}
	active.AppendToken(frame)
	s.mu.Unlock()

	s.notify()
	return true
}

func (s *Session) recordError(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.mu.Unlock()

	s.notify()
}

// finish settles the status for a completed request. Superseded requests
// leave state untouched.
func (s *Session) finish(ctx context.Context, gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	// Classify before releasing the context; cancel makes ctx.Err non-nil.
	cancelled := errors.Is(err, context.Canceled) || ctx.Err() != nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.active = nil

	switch {
	case err == nil:
		s.status = StatusIdle
	case cancelled:
		s.status = StatusIdle
		s.err = nil
	default:
		s.status = StatusError
		s.err = err
	}
	s.mu.Unlock()

	s.notify()
}
