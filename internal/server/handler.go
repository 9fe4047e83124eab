// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/lynx-chat/internal/backend"
	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/ratelimit"
)

// Error codes returned as {"error": code}.
const (
	CodeMethodNotAllowed = "method_not_allowed"
	CodeRateLimited      = "rate_limited"
	CodeInvalidRequest   = "invalid_request"
	CodePayloadTooLarge  = "payload_too_large"
)

// DiagnosticMessage is written in place of further fragments when the
// backend fails mid-stream.
const DiagnosticMessage = "An error occurred while streaming."

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Messages []model.Message `json:"messages" binding:"required,min=1"`
}

// validateMessages checks every message role.
func validateMessages(messages []model.Message) error {
	for i, msg := range messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("message %d: %w", i, err)
		}
	}
	return nil
}

// ============================================================================
// HANDLERS
// ============================================================================

// handleChat admits the request, validates the body and relays the stream.
// Admission runs before body validation, so invalid bodies still cost a
// point.
func (s *Server) handleChat(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		s.stats.RecordMethodNotAllowed()
		c.Header("Allow", http.MethodPost)
		writeError(c, http.StatusMethodNotAllowed, CodeMethodNotAllowed)
		return
	}
	s.stats.RecordRequest()

	identity := ClientIdentity(c.Request)
	c.Set(identityKey, identity)

	limiter := s.Limiter()
	err := limiter.Consume(identity)
	setRateLimitHeaders(c, limiter, identity)
	if err != nil {
		s.stats.RecordRateLimited()
		s.logger.Info().Str("identity", identity).Msg("CHAT_RATE_LIMITED")
		writeError(c, http.StatusTooManyRequests, CodeRateLimited)
		return
	}

	if limit := s.cfg.Server.MaxBodyBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.stats.RecordInvalid()
			writeError(c, http.StatusRequestEntityTooLarge, CodePayloadTooLarge)
			return
		}
		s.rejectInvalid(c, identity, err)
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		s.rejectInvalid(c, identity, err)
		return
	}

	s.relay(c, identity, req.Messages)
}

// setRateLimitHeaders reports the identity's window after consumption.
// X-RateLimit-Reset is in whole seconds, rounded up.
func setRateLimitHeaders(c *gin.Context, limiter *ratelimit.Limiter, identity string) {
	points, _ := limiter.Limits()
	resetIn := limiter.ResetIn(identity)
	c.Header("X-RateLimit-Limit", strconv.Itoa(points))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(identity)))
	c.Header("X-RateLimit-Reset", strconv.Itoa(int((resetIn+time.Second-1)/time.Second)))
}

func (s *Server) rejectInvalid(c *gin.Context, identity string, err error) {
	s.stats.RecordInvalid()
	s.logger.Debug().Err(err).Str("identity", identity).Msg("CHAT_INVALID")
	writeError(c, http.StatusBadRequest, CodeInvalidRequest)
}

// relay streams fragments from the live backend, or the fallback when no
// credential is configured, one line per fragment.
func (s *Server) relay(c *gin.Context, identity string, messages []model.Message) {
	ctx := c.Request.Context()
	live, fallback := s.streamers()

	streamer, status, mode := live, http.StatusOK, "live"
	if !live.Configured() {
		streamer, status, mode = fallback, http.StatusServiceUnavailable, "fallback"
	}

	stream, err := streamer.Open(ctx, messages)
	if mode == "live" && backend.IsConfigError(err) {
		// Credential went missing after the Configured check.
		s.logger.Warn().Err(err).Str("identity", identity).Msg("STREAM_FALLBACK")
		streamer, status, mode = fallback, http.StatusServiceUnavailable, "fallback"
		stream, err = streamer.Open(ctx, messages)
	}
	s.stats.RecordStream(mode == "fallback")

	h := c.Writer.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Accel-Buffering", "no")
	c.Status(status)

	logger := s.logger.With().Str("identity", identity).Str("mode", mode).Logger()

	if err != nil {
		if ctx.Err() != nil {
			s.stats.RecordOutcome(backend.OutcomeCancelled)
			logger.Info().Msg("STREAM_CANCELLED")
			return
		}
		s.stats.RecordOutcome(backend.OutcomeFailed)
		logger.Error().Err(err).Msg("STREAM_OPEN_FAILED")
		s.writeDiagnostic(c)
		return
	}
	defer stream.Close()

	fragments := 0
	for stream.Next() {
		if _, err := c.Writer.WriteString(stream.Text() + "\n"); err != nil {
			// The client is gone; stop reading from the backend.
			stream.Close()
			break
		}
		c.Writer.Flush()
		s.stats.RecordFragment()
		fragments++
	}

	outcome := stream.Outcome()
	s.stats.RecordOutcome(outcome)

	switch outcome {
	case backend.OutcomeExhausted:
		if !c.Writer.Written() {
			c.Writer.WriteHeaderNow()
		}
		logger.Info().Int("fragments", fragments).Msg("STREAM_COMPLETE")
	case backend.OutcomeCancelled:
		logger.Info().Int("fragments", fragments).Msg("STREAM_CANCELLED")
	case backend.OutcomeFailed:
		logger.Error().Err(stream.Err()).Int("fragments", fragments).Msg("STREAM_FAILED")
		s.writeDiagnostic(c)
	}
}

// writeDiagnostic ends the body with DiagnosticMessage. The status becomes
// 500 only if nothing has been sent yet.
func (s *Server) writeDiagnostic(c *gin.Context) {
	if !c.Writer.Written() {
		c.Status(http.StatusInternalServerError)
	}
	if _, err := c.Writer.WriteString(DiagnosticMessage); err == nil {
		c.Writer.Flush()
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	StatsSnapshot
	Version string `json:"version"`
	Mode    string `json:"mode"`
	Model   string `json:"model"`
	Points  int    `json:"rate_limit_points"`
	Window  int    `json:"rate_limit_duration_secs"`
	Tracked int    `json:"tracked_identities"`
}

// handleStats reports relay counters.
func (s *Server) handleStats(c *gin.Context) {
	live, _ := s.streamers()
	limiter := s.Limiter()
	points, window := limiter.Limits()

	mode := "live"
	if !live.Configured() {
		mode = "fallback"
	}
	modelName := s.cfg.Backend.Model
	if named, ok := live.(interface{ Model() string }); ok {
		modelName = named.Model()
	}

	c.JSON(http.StatusOK, StatsResponse{
		StatsSnapshot: s.stats.Snapshot(),
		Version:       Version,
		Mode:          mode,
		Model:         modelName,
		Points:        points,
		Window:        int(window.Seconds()),
		Tracked:       limiter.Len(),
	})
}

// writeError writes a JSON error response.
func writeError(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code})
}
