// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultGreeting seeds every new client conversation.
const DefaultGreeting = "Hi! Ask me anything."

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered, append-only log of messages. Insertion order
// is the only ordering key.
//
// Conversation is not safe for concurrent use; the owning session serializes
// access.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
	Messages  []*Message
}

// NewConversation creates a conversation seeded with an assistant greeting.
// An empty greeting starts the conversation empty.
func NewConversation(greeting string) *Conversation {
	now := time.Now()
	c := &Conversation{
		ID:        "conv_" + uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0, 8),
	}
	if greeting != "" {
		c.AddMessage(NewMessage(RoleAssistant, greeting))
	}
	return c
}

// AddMessage appends a message to the conversation.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
}

// AddUserMessage adds a user message and returns it.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage adds an empty assistant placeholder and returns it.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// Snapshot returns value copies of every message in order.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.Messages))
	for i, msg := range c.Messages {
		out[i] = *msg
	}
	return out
}
