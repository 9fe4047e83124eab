// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/lynx-chat/internal/session"
)

type askOptions struct {
	markdown bool
}

func newAskCommand(a *app) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and stream the reply",
		Example: `  lynx ask "What is a goroutine?"
  lynx ask --markdown "Explain channels with an example"
  lynx --endpoint http://relay:8787 ask hello`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MinimumNArgs(1)(cmd, args); err != nil {
				return &UsageError{Err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			if strings.TrimSpace(question) == "" {
				return &UsageError{Err: fmt.Errorf("question must not be blank")}
			}
			render := opts.markdown && IsStdoutTTY()
			return a.runAsk(cmd.Context(), question, render, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().BoolVarP(&opts.markdown, "markdown", "m", false, "render the finished reply as markdown (terminal only)")
	return cmd
}

// runAsk sends question and writes the reply to out. Without render the
// reply is streamed as it arrives. Interrupt cancels the request.
func (a *app) runAsk(ctx context.Context, question string, render bool, out, errOut io.Writer) error {
	sess, err := a.newSession()
	if err != nil {
		return err
	}

	if !render {
		unsubscribe := sess.Subscribe(newDeltaPrinter(out).update)
		defer unsubscribe()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Cancel()
		case <-done:
		}
	}()

	sess.Send(question)
	sess.Wait()

	st := sess.State()
	if render {
		fmt.Fprint(out, renderMarkdown(lastReply(st)))
	} else {
		fmt.Fprintln(out)
	}

	return reportOutcome(st, errOut)
}

// reportOutcome turns a finished session state into an error or a warning.
func reportOutcome(st session.State, errOut io.Writer) error {
	switch {
	case st.Status == session.StatusError:
		return st.Err
	case st.Err != nil:
		fmt.Fprintln(errOut, WarningStyle.Render("relay answered "+st.Err.Error()))
	}
	return nil
}
