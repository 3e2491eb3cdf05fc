package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"truck-tracker-backend/internal/config"
	"truck-tracker-backend/internal/database"
	"truck-tracker-backend/internal/logger"
	"truck-tracker-backend/internal/server"
	"truck-tracker-backend/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds what every subcommand needs once config is loaded.
type app struct {
	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "server",
		Short:         "Truck tracking API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			for _, w := range cfg.Warnings() {
				log.Warn(w)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.serve(cmd.Context())
			},
		},
		newMigrateCmd(a),
		newCreateUserCmd(a),
		newSeedDemoUsersCmd(a),
	)
	return root
}

func (a *app) serve(ctx context.Context) error {
	if err := database.Init(a.cfg, a.log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.New(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			a.log.Warn("session store close failed", zap.Error(err))
		}
	}()

	a.log.Info("starting",
		zap.String("version", server.Version),
		zap.String("database", a.cfg.DatabaseDriver),
		zap.String("session_store", a.cfg.SessionStore),
	)
	return server.Run(ctx, a.cfg, a.log, store)
}
