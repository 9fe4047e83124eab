// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea chat view for the terminal client.

The Model renders a session's conversation and forwards user input to it.
It never mutates the conversation itself: session changes arrive as
StateMsg values, delivered by the bridge returned from Subscribe.

# Keys

	enter     send the input line
	esc       cancel the outstanding reply
	ctrl+c    cancel the outstanding reply, or quit when idle
	ctrl+d    quit
	pgup/pgdn scroll the transcript

# Usage

	m := chat.New(styles.NewTheme(), sess, endpoint)
	p := tea.NewProgram(m, tea.WithAltScreen())
	defer chat.Subscribe(sess, p.Send)()
	_, err := p.Run()
*/
package chat
