// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for the
// lynx chat relay and its clients.
//
// Supports TOML, YAML and JSON configuration files, .env files, environment
// variable overrides, validation and hot reload.
//
// # Configuration Precedence
//
// Configuration is resolved from (highest first):
//   - Environment variables (GEMINI_*, RATE_LIMIT_*, PORT, LYNX_*)
//   - .env files (./.env, then ../.env); never override the real environment
//   - The file passed with --config
//   - Built-in defaults
//
// # Usage
//
//	_ = config.LoadDotEnv(config.DefaultEnvFiles...)
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//
// Reload rate limits on change:
//
//	go config.Watch(ctx, path, srv.ApplyConfig)
package config
