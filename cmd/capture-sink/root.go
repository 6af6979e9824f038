package main

import (
	"github.com/spf13/cobra"
	"github.com/stratastor/logger"

	"github.com/PratikDhanave/analytics-capture/internal/config"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

// NewRootCmd builds the capture-sink command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "capture-sink",
		Short:         "Capture and assert analytics events sent by browsers under test",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (CAPTURE_* env vars take precedence)")

	loadConfig := func() (config.Config, error) {
		return config.LoadFile(configPath)
	}

	rootCmd.AddCommand(NewServeCmd(loadConfig))
	rootCmd.AddCommand(NewSessionCmd())
	rootCmd.AddCommand(NewAssertCmd())

	return rootCmd
}

// sessionOptions turns the process configuration into capture session options.
func sessionOptions(cfg config.Config, l logger.Logger) []capture.Option {
	return []capture.Option{
		capture.WithDebug(cfg.Debug),
		capture.WithLogger(l),
		capture.WithDefaults(cfg.DefaultTimeout, cfg.DefaultPollInterval),
		capture.WithMaxBodySize(cfg.MaxBodySize),
		capture.WithEndpointFragments(cfg.Endpoints.Extra...),
		capture.WithHosts(cfg.Endpoints.Hosts...),
	}
}
