// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend opens streaming generation calls and exposes them as a
// sequence of text fragments.
//
// Two implementations exist: Gemini talks to Google's generative API, Demo
// replays a fixed set of lines and is used when no credential is
// configured.
package backend

import (
	"context"

	"github.com/jeranaias/lynx-chat/internal/model"
)

// Streamer opens a fresh backend stream per call.
type Streamer interface {
	// Configured reports whether Open can reach a backend.
	Configured() bool

	// Open starts generation for messages. Cancelling ctx ends the returned
	// stream with OutcomeCancelled.
	Open(ctx context.Context, messages []model.Message) (*Stream, error)
}
