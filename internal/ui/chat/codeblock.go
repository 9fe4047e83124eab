// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/lynx-chat/internal/ui/styles"
)

// =============================================================================
// FENCED CODE BLOCKS
// =============================================================================

// renderContent highlights fenced code blocks in text. An unclosed fence,
// as seen mid-stream, is highlighted up to the end of the text. With an
// ASCII color profile the fences are only stripped.
func renderContent(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	highlight := lipgloss.ColorProfile() != termenv.Ascii

	var (
		out      []string
		code     []string
		language string
		inFence  bool
	)
	flush := func() {
		block := strings.Join(code, "\n")
		if highlight {
			block = highlightCode(block, language)
		}
		out = append(out, codeHeader(language), block)
		code = nil
		language = ""
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, "```") {
			if inFence {
				flush()
				inFence = false
			} else {
				language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
				inFence = true
			}
			continue
		}
		if inFence {
			code = append(code, line)
		} else {
			out = append(out, line)
		}
	}
	if inFence {
		flush()
	}

	return strings.Join(out, "\n")
}

func codeHeader(language string) string {
	if language == "" {
		language = "code"
	}
	return lipgloss.NewStyle().Foreground(styles.TextMuted).Render("[" + language + "]")
}

// highlightCode applies terminal syntax highlighting, returning code
// unchanged when tokenizing or formatting fails.
func highlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return strings.TrimRight(buf.String(), "\n")
}
