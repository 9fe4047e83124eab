// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
)

// DefaultPrompt is forwarded when a conversation has no usable user turn.
const DefaultPrompt = "Hello!"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one the relay accepts.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn of a conversation. Only Role and Content travel
// on the wire.
type Message struct {
	ID        string    `json:"-"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message that is filled in
// as fragments arrive.
func NewAssistantMessage() *Message {
	return NewMessage(RoleAssistant, "")
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a streamed fragment to the message content.
func (m *Message) AppendToken(token string) {
	m.Content += token
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0
}

// IsBlank returns true if the content is empty or whitespace only.
func (m *Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Validate checks the message can be forwarded to the backend.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid role %q", m.Role)
	}
	return nil
}

// Preview returns the content truncated to maxWidth terminal columns.
func (m *Message) Preview(maxWidth int) string {
	content := strings.ReplaceAll(m.Content, "\n", " ")
	return runewidth.Truncate(content, maxWidth, "...")
}

// =============================================================================
// PROMPT EXTRACTION
// =============================================================================

// LastUserPrompt returns the content of the most recent user message with
// non-blank content, or DefaultPrompt when there is none.
//
// Earlier turns are not forwarded; only this single prompt reaches the
// backend.
func LastUserPrompt(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == RoleUser && !msg.IsBlank() {
			return msg.Content
		}
	}
	return DefaultPrompt
}
