// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the chat relay HTTP server.
//
// The relay admits a request through a per-identity limiter, validates the
// conversation, and streams the backend's reply as newline-delimited
// plain text, flushing after every fragment. Without a backend credential
// it serves a paced demo stream with status 503.
//
// # Endpoints
//
//   - POST /api/chat   - Stream a reply (200 live, 503 fallback, 500 on early failure)
//   - GET  /api/health - {"ok": true}
//   - GET  /api/stats  - Relay counters
//
// # Error Bodies
//
// Admission failures answer JSON {"error": code} with one of
// method_not_allowed (405), rate_limited (429), invalid_request (400) or
// payload_too_large (413). A backend failure after bytes were sent appends
// the line "An error occurred while streaming." instead.
//
// # Usage
//
//	srv := server.New(cfg)
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal().Err(err).Msg("server failed")
//	}
package server
