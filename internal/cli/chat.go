// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lynx-chat/internal/session"
	"github.com/jeranaias/lynx-chat/internal/util"
)

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive line-mode chat",
		Long: `Start an interactive chat with input history.

Interactive commands:
  /help, /h      Show available commands
  /history       Show the conversation so far
  /status        Show session status
  /quit, /q      Exit chat
  Ctrl+C         Cancel the current reply
  Ctrl+D         Exit chat`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runChat(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads history from historyFile.
func NewChatCLI(historyFile string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history, readable by the owner only.
func (c *ChatCLI) SaveHistory() {
	var buf bytes.Buffer
	if _, err := c.line.WriteHistory(&buf); err != nil {
		return
	}
	if err := util.WriteFileAtomic(c.historyFile, buf.Bytes(), 0o600, 0o700); err != nil {
		log.Debug().Err(err).Str("path", c.historyFile).Msg("HISTORY_SAVE_FAILED")
	}
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

func historyPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "lynx", "chat_history")
}

// =============================================================================
// REPL
// =============================================================================

// chatLoop is the REPL state independent of the terminal.
type chatLoop struct {
	sess     *session.Session
	out      io.Writer
	endpoint string
	started  time.Time
	turns    int
}

func (a *app) runChat(ctx context.Context, out io.Writer) error {
	sess, err := a.newSession()
	if err != nil {
		return err
	}

	input := NewChatCLI(historyPath())
	defer input.Close()

	// The prompt aborts on Ctrl+C itself; while a reply streams the terminal
	// is cooked and the signal arrives here.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			sess.Cancel()
		}
	}()

	loop := &chatLoop{
		sess:     sess,
		out:      out,
		endpoint: a.cfg.Client.Endpoint,
		started:  time.Now(),
	}
	return loop.run(ctx, input.ReadInput)
}

// run reads lines until the reader fails or the user quits.
func (l *chatLoop) run(ctx context.Context, readLine func(prompt string) (string, error)) error {
	unsubscribe := l.sess.Subscribe(newDeltaPrinter(l.out).update)
	defer unsubscribe()

	l.printWelcome()

	for {
		if ctx.Err() != nil {
			l.printExitSummary()
			return nil
		}

		line, err := readLine(PromptStyle.Render("lynx> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(l.out)
			l.printExitSummary()
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if !l.handleSlashCommand(line) {
				l.printExitSummary()
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			l.printExitSummary()
			return nil
		}

		l.send(line)
	}
}

func (l *chatLoop) send(line string) {
	l.turns++
	l.sess.Send(line)
	l.sess.Wait()
	fmt.Fprintln(l.out)

	st := l.sess.State()
	switch {
	case st.Status == session.StatusError:
		fmt.Fprintf(l.out, "%s %v\n", ErrorStyle.Render("[Error]"), st.Err)
	case st.Err != nil:
		fmt.Fprintln(l.out, WarningStyle.Render("[relay answered "+st.Err.Error()+"]"))
	}
}

// handleSlashCommand runs a slash command and reports whether to continue.
func (l *chatLoop) handleSlashCommand(line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/q", "/exit":
		return false
	case "/help", "/h":
		l.printHelp()
	case "/history":
		l.printHistory()
	case "/status", "/s":
		l.printStatus()
	default:
		fmt.Fprintf(l.out, "%s unknown command %s (try /help)\n", WarningStyle.Render("[?]"), fields[0])
	}
	return true
}

func (l *chatLoop) printWelcome() {
	fmt.Fprintln(l.out, TitleStyle.Render("lynx chat"))
	fmt.Fprintln(l.out, DimStyle.Render("relay "+l.endpoint+"  |  /help for commands, Ctrl+D to exit"))
	st := l.sess.State()
	if reply := lastReply(st); reply != "" {
		fmt.Fprintln(l.out)
		fmt.Fprintln(l.out, reply)
	}
	fmt.Fprintln(l.out)
}

func (l *chatLoop) printHelp() {
	fmt.Fprintln(l.out, TitleStyle.Render("Commands"))
	fmt.Fprintln(l.out, RenderField("/help", "show this help"))
	fmt.Fprintln(l.out, RenderField("/history", "show the conversation"))
	fmt.Fprintln(l.out, RenderField("/status", "show session status"))
	fmt.Fprintln(l.out, RenderField("/quit", "exit chat"))
	fmt.Fprintln(l.out, RenderField("Ctrl+C", "cancel the current reply"))
}

func (l *chatLoop) printHistory() {
	st := l.sess.State()
	width := GetTerminalWidth() - 16
	for _, msg := range st.Messages {
		fmt.Fprintln(l.out, RenderField(msg.Role.DisplayName(), msg.Preview(width)))
	}
}

func (l *chatLoop) printStatus() {
	st := l.sess.State()
	fmt.Fprintln(l.out, RenderField("Relay", l.endpoint))
	fmt.Fprintln(l.out, RenderField("Status", string(st.Status)))
	fmt.Fprintln(l.out, RenderField("Messages", fmt.Sprintf("%d", len(st.Messages))))
	fmt.Fprintln(l.out, RenderField("Session", formatDuration(time.Since(l.started))))
	if st.Err != nil {
		fmt.Fprintln(l.out, RenderField("Last error", st.Err.Error()))
	}
}

func (l *chatLoop) printExitSummary() {
	fmt.Fprintln(l.out, RenderSeparator(40))
	fmt.Fprintf(l.out, "%s %d turns in %s\n", DimStyle.Render("Session:"), l.turns, formatDuration(time.Since(l.started)))
}

// formatDuration formats a duration as a short human readable string.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
