// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/jeranaias/lynx-chat/internal/model"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// =============================================================================
// GEMINI CONFIGURATION
// =============================================================================

// GeminiConfig holds configuration for the Gemini streamer.
type GeminiConfig struct {
	// APIKey is the credential; empty leaves the streamer unconfigured.
	APIKey string

	// Model is the backend model identifier (default: gemini-1.5-flash).
	Model string

	// RequestsPerSecond caps outbound stream opens. Zero means unlimited.
	RequestsPerSecond float64

	// Burst is the number of opens allowed at once (default: 1).
	Burst int
}

// responseIterator is the subset of genai.GenerateContentResponseIterator
// the streamer reads from.
type responseIterator interface {
	Next() (*genai.GenerateContentResponse, error)
}

// =============================================================================
// GEMINI STREAMER
// =============================================================================

// Gemini streams completions from Google's generative API.
//
// The client is created on the first Open and reused afterwards. Gemini is
// safe for concurrent use.
type Gemini struct {
	config  GeminiConfig
	limiter *rate.Limiter

	mu     sync.Mutex
	client *genai.Client

	// generate starts a streaming call; replaced in tests.
	generate func(ctx context.Context, prompt string) (responseIterator, error)
}

// NewGemini creates a Gemini streamer. Zero config values take defaults.
func NewGemini(config GeminiConfig) *Gemini {
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	g := &Gemini{
		config:  config,
		limiter: rate.NewLimiter(limit, config.Burst),
	}
	g.generate = g.generateContent
	return g
}

// Configured reports whether an API key is set.
func (g *Gemini) Configured() bool {
	return g.config.APIKey != ""
}

// Model returns the configured model identifier.
func (g *Gemini) Model() string {
	return g.config.Model
}

// Open starts a streaming generation for the last user prompt in messages.
// Only that single prompt is sent; earlier turns are not forwarded.
func (g *Gemini) Open(ctx context.Context, messages []model.Message) (*Stream, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	if err := g.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Type: ErrTypeOpen, Message: "outbound rate limit", Cause: err}
	}

	prompt := model.LastUserPrompt(messages)
	log.Debug().
		Str("model", g.config.Model).
		Int("prompt_len", len(prompt)).
		Msg("GEMINI_OPEN")

	it, err := g.generate(ctx, prompt)
	if err != nil {
		return nil, &Error{Type: ErrTypeOpen, Message: "failed to start generation", Cause: err}
	}
	return NewStream(ctx, &geminiSource{it: it}), nil
}

// Close releases the underlying client, if one was created.
func (g *Gemini) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client == nil {
		return nil
	}
	err := g.client.Close()
	g.client = nil
	return err
}

func (g *Gemini) generateContent(ctx context.Context, prompt string) (responseIterator, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return nil, err
	}
	gm := client.GenerativeModel(g.config.Model)
	return gm.GenerateContentStream(ctx, genai.Text(prompt)), nil
}

func (g *Gemini) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	// The client outlives any single request.
	client, err := genai.NewClient(context.WithoutCancel(ctx), option.WithAPIKey(g.config.APIKey))
	if err != nil {
		return nil, err
	}
	g.client = client
	return client, nil
}

// =============================================================================
// RESPONSE SOURCE
// =============================================================================

// geminiSource adapts a response iterator to Source. The iterator already
// carries the request context.
type geminiSource struct {
	it responseIterator
}

func (s *geminiSource) Recv(ctx context.Context) (string, error) {
	resp, err := s.it.Next()
	if errors.Is(err, iterator.Done) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	return responseText(resp), nil
}

func (s *geminiSource) Close() error {
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
