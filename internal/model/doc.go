// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the domain types shared by the relay server and the
// chat clients.
//
// # Key Types
//
//   - Conversation: Ordered log of messages held by a client session
//   - Message: Single message with role and content
//   - Role: Message role enumeration (user, assistant)
//
// # Usage
//
// Create a new conversation and extract the prompt the backend receives:
//
//	conv := model.NewConversation(model.DefaultGreeting)
//	conv.AddUserMessage("What is a goroutine?")
//	prompt := model.LastUserPrompt(conv.Snapshot())
package model
