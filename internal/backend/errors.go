// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import "errors"

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorType categorizes backend errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeConfig
	ErrTypeOpen
	ErrTypeStream
)

// String returns a short name for the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeConfig:
		return "config"
	case ErrTypeOpen:
		return "open"
	case ErrTypeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Error represents a failure talking to the generation backend.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrNotConfigured is returned by Open when no credential is set. It is
// raised before any network call.
var ErrNotConfigured = &Error{Type: ErrTypeConfig, Message: "backend credential not configured"}

// IsConfigError reports whether err is a configuration error.
func IsConfigError(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Type == ErrTypeConfig
}
