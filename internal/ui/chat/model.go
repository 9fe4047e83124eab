// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/lynx-chat/internal/session"
	"github.com/jeranaias/lynx-chat/internal/ui/styles"
)

// Conversation is the part of a session the view drives.
type Conversation interface {
	Send(text string)
	Cancel()
	State() session.State
}

// Model is the chat view.
type Model struct {
	theme    *styles.Theme
	conv     Conversation
	endpoint string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	state    session.State
	ready    bool
	quitting bool
}

// New creates a chat view over conv.
func New(theme *styles.Theme, conv Conversation, endpoint string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask me anything..."
	ti.CharLimit = 4096
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		theme:    theme,
		conv:     conv,
		endpoint: endpoint,
		viewport: vp,
		input:    ti,
		spinner:  sp,
		state:    conv.State(),
	}
	m.refresh()
	return m
}

// Init starts the cursor blink and spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// State returns the last snapshot the view rendered.
func (m Model) State() session.State {
	return m.state
}

// Quitting reports whether the view asked the program to exit.
func (m Model) Quitting() bool {
	return m.quitting
}

func (m Model) streaming() bool {
	return m.state.Status == session.StatusStreaming
}

// refresh re-renders the transcript into the viewport.
func (m *Model) refresh() {
	m.viewport.SetContent(renderMessages(m.theme, m.state.Messages, m.streaming()))
	m.viewport.GotoBottom()
}
