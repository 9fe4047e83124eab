// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lynx-chat/internal/ui/chat"
	"github.com/jeranaias/lynx-chat/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}
}

func (a *app) runTUI(ctx context.Context) error {
	sess, err := a.newSession()
	if err != nil {
		return err
	}
	defer sess.Cancel()

	m := chat.New(styles.NewTheme(), sess, a.cfg.Client.Endpoint)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := chat.Subscribe(sess, p.Send)
	defer unsubscribe()

	_, err = p.Run()
	return err
}
