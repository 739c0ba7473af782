package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"serialplotter/internal/bridge"
	"serialplotter/internal/config"
	"serialplotter/internal/healthz"
	"serialplotter/internal/logging"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept plotter UI connections and stream monitor data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	return cmd
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	reloader, err := config.NewReloadable(configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	defer reloader.Close()

	cfg := reloader.Get()
	log := logging.New("serialplotter", cfg.Logging)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reloadErr atomic.Pointer[error]
	reloader.OnError(func(err error) {
		reloadErr.Store(&err)
		log.Warn().Err(err).Msg("config reload rejected")
	})
	reloader.Watch(func(old, next *config.Config) {
		reloadErr.Store(nil)
		if next.Logging != old.Logging {
			log.Warn().Msg("logging changes apply after restart")
		}
		log.Info().
			Bool("generate", next.Plotter.Generate).
			Str("line_ending", next.Plotter.LineEnding).
			Msg("config reloaded: new sessions use updated plotter settings")
	})

	svc := bridge.New(reloader.Get, log)
	svc.Health().Register("config", func(context.Context) error {
		if err := reloadErr.Load(); err != nil {
			return healthz.Degraded(*err)
		}
		return nil
	})
	if err := svc.ListenAndServe(ctx); err != nil {
		log.Error().Err(err).Msg("listener failed")
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

// cliLogger is used by the one-shot client subcommands.
func cliLogger(verbose bool) zerolog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.NewWithWriter("serialplotter", config.Logging{Level: level, Format: "console"}, os.Stderr)
}
