package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	serverrun "github.com/nigoertz/demo-cosmos-api/internal/cmd/server"
	cfgpkg "github.com/nigoertz/demo-cosmos-api/internal/config"
)

func newLogger(level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "cosmos-api",
		Short: "Pipeline trace API",
		Long:  "cosmos-api records message-pipeline traces into bounded collections and serves them over HTTP.",
	}

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start the trace API server",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			dataDir, _ := cmd.Flags().GetString("data-dir")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsync, _ := cmd.Flags().GetString("fsync")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			cfg, err = cfgpkg.FromEnv(cfg)
			if err != nil {
				return err
			}
			// Flags win over file and environment.
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			if fsync != "" {
				cfg.Fsync = fsync
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}

			logger := newLogger(cfg.LogLevel, cfg.LogFormat)
			if err := serverrun.Run(context.Background(), serverrun.Options{Config: cfg, Logger: logger}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	serverStartCmd.Flags().String("config", "", "Path to a JSON config file")
	serverStartCmd.Flags().String("data-dir", "", "Backend data directory")
	serverStartCmd.Flags().String("http", "", "HTTP listen address (default :8000)")
	serverStartCmd.Flags().String("fsync", "", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().String("log-level", "", "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", "", "Log format: text|json")
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
