// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jeranaias/lynx-chat/internal/config"
	"github.com/jeranaias/lynx-chat/internal/logging"
	"github.com/jeranaias/lynx-chat/internal/session"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	endpoint   string
	noColor    bool
}

// app carries state shared by the subcommands once setup has run.
type app struct {
	opts globalOptions
	cfg  *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "lynx",
		Short: "Streaming chat relay and terminal client",
		Long: `lynx relays chat conversations to Gemini and streams the reply back
as newline-delimited text. Without an API key it replays a short demo.

Run "lynx serve" for the relay, then "lynx", "lynx chat" or "lynx ask"
to talk to it.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "config file (.toml, .yaml or .json)")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&a.opts.logFormat, "log-format", "", "log format (console or json)")
	flags.StringVar(&a.opts.endpoint, "endpoint", "", "relay base URL for client commands")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "disable colored output")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	root.AddCommand(
		newServeCommand(a),
		newAskCommand(a),
		newChatCommand(a),
		newTUICommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// setup loads configuration and installs the logger. Flags override the
// file and environment.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	if a.opts.noColor || !ColorsEnabled() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	if err := config.LoadDotEnv(config.DefaultEnvFiles...); err != nil {
		return &ConfigError{Err: err}
	}
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return &ConfigError{Err: err}
	}

	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}
	if a.opts.logFormat != "" {
		cfg.Log.Format = a.opts.logFormat
	}
	if a.opts.endpoint != "" {
		cfg.Client.Endpoint = a.opts.endpoint
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cmd.ErrOrStderr(),
	})
	log.Debug().RawJSON("config", []byte(cfg.String())).Msg("CONFIG_LOADED")
	a.cfg = cfg
	return nil
}

// newSession creates a client session against the configured relay.
func (a *app) newSession() (*session.Session, error) {
	sess, err := session.New(session.Config{
		Endpoint: a.cfg.Client.Endpoint,
		Greeting: a.cfg.Client.Greeting,
	})
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	return sess, nil
}
