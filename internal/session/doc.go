// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client side of a chat.
//
// A Session owns the conversation and at most one outstanding relay
// request. Send appends the user turn and an empty assistant message, then
// fills that same message in place as frames arrive. A newer Send or a
// Cancel invalidates the previous request; fragments it still produces are
// dropped.
//
// # Status
//
//   - idle: nothing in flight (after completion or cancellation)
//   - streaming: a request is in flight
//   - error: the last request failed for a reason other than cancellation
//
// A non-2xx relay status is recorded as an HTTPError while the body is still
// read, so fallback text is displayed.
//
// # Usage
//
//	sess, err := session.New(session.DefaultConfig())
//	unsubscribe := sess.Subscribe(func(st session.State) { render(st) })
//	defer unsubscribe()
//	sess.Send("Hello")
//	sess.Wait()
package session
