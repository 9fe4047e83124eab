// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the palette and Lip Gloss styles for the terminal
chat client.

All colors are AdaptiveColor values so they follow the terminal's light or
dark background.

# Theme

NewTheme builds the styles used by the chat view:

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	header := theme.Header.Render(theme.HeaderTitle.Render("lynx"))
*/
package styles
