package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/config"
	"github.com/PratikDhanave/analytics-capture/internal/httpserver"
	"github.com/PratikDhanave/analytics-capture/internal/store"
)

// NewServeCmd starts the sink: config → logger → session store → HTTP server.
func NewServeCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var (
		addr  string
		debug bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the capture sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("debug") {
				cfg.Debug = debug
			}

			l, err := logger.NewTag(cfg.LoggerConfig(), "capture-sink")
			if err != nil {
				return err
			}

			st := store.NewSessionStore(sessionOptions(cfg, l)...)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return httpserver.Run(ctx, cfg, st, l)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "trace every captured request")
	return cmd
}
