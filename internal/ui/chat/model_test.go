// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/session"
	"github.com/jeranaias/lynx-chat/internal/ui/styles"
)

type fakeConversation struct {
	state   session.State
	sent    []string
	cancels int
}

func (f *fakeConversation) Send(text string) { f.sent = append(f.sent, text) }
func (f *fakeConversation) Cancel()          { f.cancels++ }
func (f *fakeConversation) State() session.State {
	return f.state
}

func newTestModel(t *testing.T, st session.State) (Model, *fakeConversation) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
	t.Cleanup(func() { lipgloss.SetColorProfile(termenv.ColorProfile()) })

	conv := &fakeConversation{state: st}
	m := New(styles.NewTheme(), conv, "http://localhost:8787")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return updated.(Model), conv
}

func greeting() []model.Message {
	return []model.Message{{Role: model.RoleAssistant, Content: model.DefaultGreeting}}
}

func TestNew_TakesInitialState(t *testing.T) {
	m, _ := newTestModel(t, session.State{Messages: greeting(), Status: session.StatusIdle})
	assert.Len(t, m.State().Messages, 1)
	assert.Contains(t, m.View(), model.DefaultGreeting)
	assert.Contains(t, m.View(), "ready")
}

func TestView_LoadingBeforeResize(t *testing.T) {
	m := New(styles.NewTheme(), &fakeConversation{}, "x")
	assert.Equal(t, "Loading...", m.View())
}

func TestUpdate_EnterSendsAndClearsInput(t *testing.T) {
	m, conv := newTestModel(t, session.State{Status: session.StatusIdle})

	for _, r := range "hello" {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	require.NotNil(t, cmd)
	assert.Empty(t, conv.sent, "sending happens in the command")
	assert.Nil(t, cmd())
	assert.Equal(t, []string{"hello"}, conv.sent)
	assert.Empty(t, m.input.Value())
}

func TestUpdate_EnterIgnoresBlank(t *testing.T) {
	m, conv := newTestModel(t, session.State{Status: session.StatusIdle})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	m = next.(Model)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, conv.sent)
}

func TestUpdate_CtrlC(t *testing.T) {
	t.Run("cancels while streaming", func(t *testing.T) {
		m, conv := newTestModel(t, session.State{Status: session.StatusStreaming})
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		cmd()

		assert.Equal(t, 1, conv.cancels)
		assert.False(t, next.(Model).Quitting())
	})

	t.Run("quits when idle", func(t *testing.T) {
		m, conv := newTestModel(t, session.State{Status: session.StatusIdle})
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

		assert.Zero(t, conv.cancels)
		require.NotNil(t, cmd)
		assert.Equal(t, tea.Quit(), cmd())
		assert.True(t, next.(Model).Quitting())
		assert.Empty(t, next.View())
	})
}

func TestUpdate_EscCancels(t *testing.T) {
	m, conv := newTestModel(t, session.State{Status: session.StatusStreaming})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, conv.cancels)
}

func TestUpdate_StateMsgRenders(t *testing.T) {
	m, _ := newTestModel(t, session.State{Messages: greeting(), Status: session.StatusIdle})

	messages := append(greeting(),
		model.Message{Role: model.RoleUser, Content: "hi"},
		model.Message{Role: model.RoleAssistant, Content: "Hello"},
	)
	next, _ := m.Update(StateMsg{State: session.State{Messages: messages, Status: session.StatusStreaming}})
	m = next.(Model)

	view := m.View()
	assert.Contains(t, view, "hi")
	assert.Contains(t, view, "Hello")
	assert.Contains(t, view, "streaming")
}

func TestUpdate_ErrorShown(t *testing.T) {
	m, _ := newTestModel(t, session.State{Status: session.StatusIdle})

	next, _ := m.Update(StateMsg{State: session.State{
		Status: session.StatusError,
		Err:    errors.New("connection refused"),
	}})
	view := next.(Model).View()

	assert.Contains(t, view, "error")
	assert.Contains(t, view, "connection refused")
}

func TestRenderMessages_PendingPlaceholder(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	defer lipgloss.SetColorProfile(termenv.ColorProfile())

	theme := styles.NewTheme()
	messages := []model.Message{
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant},
	}

	assert.Contains(t, renderMessages(theme, messages, true), "...")
	assert.NotContains(t, renderMessages(theme, messages, false), "...")
}
