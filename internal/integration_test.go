// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package internal holds end-to-end tests that run the relay on a real
// listener and talk to it through client sessions.
package internal

import (
	"context"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
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
// TEST UTILITIES
// =============================================================================

type echoSource struct {
	items []string
}

func (s *echoSource) Recv(ctx context.Context) (string, error) {
	if len(s.items) == 0 {
		return "", io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

func (s *echoSource) Close() error { return nil }

// echoStreamer replies with "echo:" and the prompt, split in two fragments.
type echoStreamer struct{}

func (echoStreamer) Configured() bool { return true }

func (echoStreamer) Open(ctx context.Context, messages []model.Message) (*backend.Stream, error) {
	prompt := model.LastUserPrompt(messages)
	return backend.NewStream(ctx, &echoSource{items: []string{"echo:", prompt}}), nil
}

// startRelay serves cfg on a loopback listener until the test ends.
func startRelay(t *testing.T, cfg *config.Config, live backend.Streamer) (*server.Server, string) {
	t.Helper()

	srv := server.New(cfg).WithLogger(zerolog.Nop())
	if live != nil {
		srv.WithStreamer(live)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("relay did not shut down")
		}
	})

	endpoint := "http://" + ln.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Get(endpoint + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	return srv, endpoint
}

func newSession(t *testing.T, endpoint string) *session.Session {
	t.Helper()
	s, err := session.New(session.Config{Endpoint: endpoint, Greeting: model.DefaultGreeting})
	require.NoError(t, err)
	return s
}

func reply(st session.State) string {
	return st.Messages[len(st.Messages)-1].Content
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestEndToEnd_LiveStream(t *testing.T) {
	cfg := config.Default()
	_, endpoint := startRelay(t, cfg, echoStreamer{})

	sess := newSession(t, endpoint)
	sess.Send("ping")
	sess.Wait()

	st := sess.State()
	assert.Equal(t, session.StatusIdle, st.Status)
	assert.NoError(t, st.Err)
	assert.Equal(t, "echo:ping", reply(st))

	sess.Send("again")
	sess.Wait()
	st = sess.State()
	assert.Len(t, st.Messages, 5)
	assert.Equal(t, "echo:again", reply(st))
}

func TestEndToEnd_FallbackWithoutKey(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.APIKey = ""
	cfg.Fallback.IntervalMs = 5
	_, endpoint := startRelay(t, cfg, nil)

	sess := newSession(t, endpoint)
	start := time.Now()
	sess.Send("hi")
	sess.Wait()

	st := sess.State()
	require.Error(t, st.Err)
	assert.Equal(t, "HTTP 503", st.Err.Error())
	assert.Equal(t, session.StatusIdle, st.Status)
	assert.Equal(t, strings.Join(backend.DemoLines, ""), reply(st))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "two pauses between three lines")
}

func TestEndToEnd_RateLimitSharedByIdentity(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Points = 2
	srv, endpoint := startRelay(t, cfg, echoStreamer{})

	for i := 0; i < 2; i++ {
		sess := newSession(t, endpoint)
		sess.Send("ok")
		sess.Wait()
		assert.NoError(t, sess.State().Err)
	}

	sess := newSession(t, endpoint)
	sess.Send("over")
	sess.Wait()

	var httpErr *session.HTTPError
	require.ErrorAs(t, sess.State().Err, &httpErr)
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
	assert.EqualValues(t, 1, srv.Stats().Snapshot().RateLimited)
}

func TestEndToEnd_ConfigReloadUpdatesLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lynx.toml")
	write := func(points int) {
		body := "[rate_limit]\npoints = " + strconv.Itoa(points) + "\nduration_secs = 60\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	}
	write(1)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	srv, _ := startRelay(t, cfg, echoStreamer{})

	points, _ := srv.Limiter().Limits()
	require.Equal(t, 1, points)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = config.Watch(ctx, path, srv.ApplyConfig) }()

	// Give the watcher time to register before the write.
	time.Sleep(100 * time.Millisecond)
	write(7)

	assert.Eventually(t, func() bool {
		points, _ := srv.Limiter().Limits()
		return points == 7
	}, 3*time.Second, 20*time.Millisecond)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrency_ManySessions(t *testing.T) {
	cfg := config.Default()
	cfg.RateLimit.Points = 1000
	_, endpoint := startRelay(t, cfg, echoStreamer{})

	const sessions = 20
	var wg sync.WaitGroup
	results := make([]string, sessions)

	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := session.New(session.Config{Endpoint: endpoint})
			if !assert.NoError(t, err) {
				return
			}
			sess.Send("n" + strconv.Itoa(i))
			sess.Wait()
			results[i] = reply(sess.State())
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, "echo:n"+strconv.Itoa(i), got)
	}
}
