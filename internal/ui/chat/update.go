// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 3
)

// Update handles Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateMsg:
		m.state = msg.State
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleResize(msg tea.WindowSizeMsg) Model {
	m.theme.SetSize(msg.Width, msg.Height)

	height := msg.Height - headerHeight - statusHeight - inputHeight
	if height < 1 {
		height = 1
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = height
	m.input.Width = msg.Width - 6
	m.ready = true
	m.refresh()
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.streaming() {
			return m, m.cancelCmd()
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlD:
		m.quitting = true
		return m, tea.Quit

	case tea.KeyEsc:
		return m, m.cancelCmd()

	case tea.KeyEnter:
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.sendCmd(text)

	case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Session calls run as commands, off the update loop: the session delivers
// its notifications through Program.Send, which waits for this loop.

func (m Model) sendCmd(text string) tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		conv.Send(text)
		return nil
	}
}

func (m Model) cancelCmd() tea.Cmd {
	conv := m.conv
	return func() tea.Msg {
		conv.Cancel()
		return nil
	}
}
