// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestContentWidth(t *testing.T) {
	theme := NewTheme()

	tests := []struct {
		width int
		want  int
	}{
		{80, 76},
		{120, 116},
		{10, 20},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		assert.Equal(t, tt.want, theme.ContentWidth(), "width %d", tt.width)
	}
}

func TestRenderHelpers_PlainProfile(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	defer lipgloss.SetColorProfile(termenv.ColorProfile())

	assert.Equal(t, "boom", RenderError("boom"))
	assert.Equal(t, "careful", RenderWarning("careful"))
	assert.Equal(t, "quiet", RenderMuted("quiet"))
}

func TestNewTheme_Defaults(t *testing.T) {
	theme := NewTheme()
	assert.Equal(t, 80, theme.Width)
	assert.Equal(t, 24, theme.Height)
}
