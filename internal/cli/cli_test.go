// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/lynx-chat/internal/backend"
	"github.com/jeranaias/lynx-chat/internal/config"
	"github.com/jeranaias/lynx-chat/internal/model"
	"github.com/jeranaias/lynx-chat/internal/server"
	"github.com/jeranaias/lynx-chat/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// TEST RELAY
// =============================================================================

type scriptSource struct {
	items []string
}

func (s *scriptSource) Recv(ctx context.Context) (string, error) {
	if len(s.items) == 0 {
		return "", io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *scriptSource) Close() error { return nil }

type scriptStreamer struct {
	items []string
}

func (s *scriptStreamer) Configured() bool { return true }

func (s *scriptStreamer) Open(ctx context.Context, _ []model.Message) (*backend.Stream, error) {
	return backend.NewStream(ctx, &scriptSource{items: append([]string(nil), s.items...)}), nil
}

// newRelay starts a relay. A nil live streamer leaves the demo fallback.
func newRelay(t *testing.T, live backend.Streamer) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Fallback.IntervalMs = 1

	srv := server.New(cfg).WithLogger(zerolog.Nop())
	if live != nil {
		srv.WithStreamer(live)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// =============================================================================
// ROOT AND VERSION
// =============================================================================

func TestVersionCommand(t *testing.T) {
	code, out, _ := runCLI(t, "version")

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "lynx "+Version)
	assert.Contains(t, out, "commit: "+GitCommit)
}

func TestRoot_UnknownFlagIsUsageError(t *testing.T) {
	code, _, errOut := runCLI(t, "version", "--bogus")

	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "bogus")
}

func TestRoot_MissingConfigFile(t *testing.T) {
	code, _, errOut := runCLI(t, "--config", "does-not-exist.toml", "ask", "hi")

	assert.Equal(t, ExitConfigError, code)
	assert.Contains(t, errOut, "configuration")
}

func TestRoot_InvalidLogFormatFlag(t *testing.T) {
	code, _, _ := runCLI(t, "--log-format", "xml", "ask", "hi")
	assert.Equal(t, ExitConfigError, code)
}

func TestRoot_SubcommandsRegistered(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "ask", "chat", "tui", "version"} {
		assert.Contains(t, names, want)
	}
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_StreamsReply(t *testing.T) {
	ts := newRelay(t, &scriptStreamer{items: []string{"Hel", "lo", ""}})

	code, out, errOut := runCLI(t, "--endpoint", ts.URL, "ask", "say", "hello")

	assert.Equal(t, ExitSuccess, code, errOut)
	assert.Equal(t, "Hello\n", out)
}

func TestAsk_FallbackWarns(t *testing.T) {
	ts := newRelay(t, nil)

	code, out, errOut := runCLI(t, "--endpoint", ts.URL, "ask", "hi")

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, strings.Join(backend.DemoLines, "")+"\n", out)
	assert.Contains(t, errOut, "relay answered HTTP 503")
}

func TestAsk_UnreachableRelay(t *testing.T) {
	ts := httptest.NewServer(nil)
	endpoint := ts.URL
	ts.Close()

	code, _, _ := runCLI(t, "--endpoint", endpoint, "ask", "hi")
	assert.Equal(t, ExitNetworkError, code)
}

func TestSetup_LogsMaskedConfigAtDebug(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-key-value")
	ts := httptest.NewServer(nil)
	endpoint := ts.URL
	ts.Close()

	_, _, errOut := runCLI(t, "--log-level", "debug", "--log-format", "json", "--endpoint", endpoint, "ask", "hi")
	assert.Contains(t, errOut, "CONFIG_LOADED")
	assert.Contains(t, errOut, "****")
	assert.NotContains(t, errOut, "secret-key-value")
}

func TestAsk_RequiresQuestion(t *testing.T) {
	code, _, _ := runCLI(t, "ask")
	assert.Equal(t, ExitUsageError, code)
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// scriptedInput replays lines, then io.EOF.
func scriptedInput(lines ...string) func(string) (string, error) {
	return func(string) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}
}

func newTestLoop(t *testing.T, endpoint string) (*chatLoop, *bytes.Buffer) {
	t.Helper()
	sess, err := session.New(session.Config{Endpoint: endpoint, Greeting: model.DefaultGreeting})
	require.NoError(t, err)

	var out bytes.Buffer
	return &chatLoop{sess: sess, out: &out, endpoint: endpoint, started: time.Now()}, &out
}

func TestChatLoop_Conversation(t *testing.T) {
	ts := newRelay(t, &scriptStreamer{items: []string{"Hel", "lo"}})
	loop, out := newTestLoop(t, ts.URL)

	err := loop.run(context.Background(), scriptedInput("", "hi", "/history", "/status", "/nope", "/quit", "never"))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, model.DefaultGreeting)
	assert.Contains(t, text, "Hello\n")
	assert.Contains(t, text, "You")
	assert.Contains(t, text, "idle")
	assert.Contains(t, text, "unknown command /nope")
	assert.Contains(t, text, "1 turns")
	assert.Equal(t, 1, loop.turns)
	assert.Len(t, loop.sess.State().Messages, 3)
}

func TestChatLoop_EOFExits(t *testing.T) {
	loop, out := newTestLoop(t, "http://127.0.0.1:1")

	require.NoError(t, loop.run(context.Background(), scriptedInput()))
	assert.Contains(t, out.String(), "0 turns")
}

func TestChatLoop_ReaderErrorReturned(t *testing.T) {
	loop, _ := newTestLoop(t, "http://127.0.0.1:1")
	boom := errors.New("terminal gone")

	err := loop.run(context.Background(), func(string) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestChatLoop_ReportsFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	endpoint := ts.URL
	ts.Close()

	loop, out := newTestLoop(t, endpoint)
	require.NoError(t, loop.run(context.Background(), scriptedInput("hi", "exit")))

	assert.Contains(t, out.String(), "[Error]")
}

// =============================================================================
// HELPERS
// =============================================================================

func TestDeltaPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newDeltaPrinter(&out)

	user := model.Message{ID: "u1", Role: model.RoleUser, Content: "hi"}
	reply := func(id, content string) session.State {
		return session.State{Messages: []model.Message{user, {ID: id, Role: model.RoleAssistant, Content: content}}}
	}

	p.update(session.State{})
	p.update(session.State{Messages: []model.Message{user}})
	p.update(reply("a1", ""))
	p.update(reply("a1", "Hel"))
	p.update(reply("a1", "Hello"))
	p.update(reply("a1", "Hello"))
	p.update(reply("a2", "Bye"))

	assert.Equal(t, "HelloBye", out.String())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("x"), ExitGeneralError},
		{"usage", &UsageError{Err: errors.New("bad flag")}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("bad file")}, ExitConfigError},
		{"validation", fmt.Errorf("wrapped: %w", config.ValidateErrors{{Field: "f", Message: "m"}}), ExitConfigError},
		{"network", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("refused")}, ExitNetworkError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", formatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m 5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", formatDuration(61*time.Minute))
}

func TestReportOutcome(t *testing.T) {
	var errOut bytes.Buffer

	assert.NoError(t, reportOutcome(session.State{Status: session.StatusIdle}, &errOut))
	assert.Empty(t, errOut.String())

	assert.NoError(t, reportOutcome(session.State{Status: session.StatusIdle, Err: &session.HTTPError{StatusCode: 503}}, &errOut))
	assert.Contains(t, errOut.String(), "HTTP 503")

	failure := errors.New("refused")
	assert.Equal(t, failure, reportOutcome(session.State{Status: session.StatusError, Err: failure}, &errOut))
}
