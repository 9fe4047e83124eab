// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/session"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownRenderer     *glamour.TermRenderer
	markdownRendererOnce sync.Once
)

// renderMarkdown renders content for the terminal, returning it unchanged
// when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	markdownRendererOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}

	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// STREAMING OUTPUT
// =============================================================================

// deltaPrinter writes the growth of the newest assistant message. Session
// snapshots carry the whole conversation; only new text is printed.
type deltaPrinter struct {
	w       io.Writer
	id      string
	printed int
}

func newDeltaPrinter(w io.Writer) *deltaPrinter {
	return &deltaPrinter{w: w}
}

func (p *deltaPrinter) update(st session.State) {
	if len(st.Messages) == 0 {
		return
	}
	last := st.Messages[len(st.Messages)-1]
	if last.Role != model.RoleAssistant {
		return
	}
	if last.ID != p.id {
		p.id = last.ID
		p.printed = 0
	}
	if len(last.Content) > p.printed {
		_, _ = io.WriteString(p.w, last.Content[p.printed:])
		p.printed = len(last.Content)
	}
}

// lastReply returns the content of the newest assistant message.
func lastReply(st session.State) string {
	if len(st.Messages) == 0 {
		return ""
	}
	last := st.Messages[len(st.Messages)-1]
	if last.Role != model.RoleAssistant {
		return ""
	}
	return last.Content
}
