// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/session"
	"github.com/jeranaias/lynx-chat/internal/ui/styles"
)

// View renders the chat.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.theme.InputContainer.Width(m.theme.Width-2).Render(m.input.View()),
	)
}

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("lynx")
	info := m.theme.HeaderInfo.Render(" " + m.endpoint)
	return m.theme.Header.Width(m.theme.Width).Render(title + info)
}

func (m Model) renderStatus() string {
	var status string
	switch m.state.Status {
	case session.StatusStreaming:
		status = m.spinner.View() + " " + m.theme.StatusBusy.Render("streaming") +
			m.theme.Hint.Render("  esc to cancel")
	case session.StatusError:
		status = m.theme.StatusError.Render("error")
	default:
		status = m.theme.StatusIdle.Render("ready")
	}
	if m.state.Err != nil {
		status += "  " + m.theme.StatusError.Render(m.state.Err.Error())
	}
	return m.theme.StatusBar.Render(status)
}

// renderMessages renders the transcript. An empty assistant message is shown
// as a pending placeholder while a reply is streaming.
func renderMessages(theme *styles.Theme, messages []model.Message, streaming bool) string {
	width := theme.ContentWidth()

	var b strings.Builder
	for i, msg := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}

		content := msg.Content
		if msg.Role == model.RoleAssistant {
			content = renderContent(content)
		}
		label := theme.AssistantLabel.Render(msg.Role.DisplayName())
		bubble := theme.AssistantBubble
		if msg.Role == model.RoleUser {
			label = theme.UserLabel.Render(msg.Role.DisplayName())
			bubble = theme.UserBubble
		}
		if msg.IsEmpty() && msg.Role == model.RoleAssistant && streaming && i == len(messages)-1 {
			content = theme.Hint.Render("...")
		}

		b.WriteString(label)
		b.WriteString("\n")
		b.WriteString(bubble.Width(width).Render(content))
	}
	return b.String()
}
