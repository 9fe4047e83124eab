// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the lynx command line.
//
// # Commands
//
//   - serve: run the chat relay (POST /api/chat, GET /api/health, GET /api/stats)
//   - ask: send one question to a relay and stream the reply
//   - chat: interactive line-mode chat with input history
//   - tui: full-screen chat (default when no command is given)
//   - version: print build information
//
// Every command loads .env files, the optional --config file and
// environment overrides before it runs, then installs the global logger.
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
