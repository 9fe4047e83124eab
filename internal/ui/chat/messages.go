// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lynx-chat/internal/session"
)

// StateMsg carries a session snapshot into the update loop.
type StateMsg struct {
	State session.State
}

// Subscribe forwards every session change to send, typically
// (*tea.Program).Send. The returned function stops forwarding.
func Subscribe(sess *session.Session, send func(tea.Msg)) func() {
	return sess.Subscribe(func(st session.State) {
		send(StateMsg{State: st})
	})
}
