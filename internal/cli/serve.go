// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lynx-chat/internal/config"
	"github.com/jeranaias/lynx-chat/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var (
		port  int
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay",
		Long: `Run the chat relay on the configured port (default 8787).

The relay streams Gemini replies when GEMINI_API_KEY is set and replays a
short demo with status 503 otherwise.`,
		Example: `  lynx serve
  lynx serve --port 9000
  lynx serve --config lynx.toml --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
				if err := a.cfg.Validate(); err != nil {
					return &ConfigError{Err: err}
				}
			}
			return a.runServe(cmd.Context(), watch)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", config.DefaultPort, "port to listen on")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload rate limits and demo pacing when the config file changes")
	return cmd
}

func (a *app) runServe(ctx context.Context, watch bool) error {
	gin.SetMode(gin.ReleaseMode)
	server.Version = Version

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(a.cfg)

	if watch {
		if a.opts.configPath == "" {
			log.Warn().Msg("CONFIG_WATCH_SKIPPED: no --config file given")
		} else {
			go func() {
				err := config.Watch(ctx, a.opts.configPath, func(cfg *config.Config) {
					srv.ApplyConfig(cfg)
				})
				if err != nil {
					log.Error().Err(err).Str("path", a.opts.configPath).Msg("CONFIG_WATCH_ERROR")
				}
			}()
		}
	}

	return srv.Run(ctx)
}
