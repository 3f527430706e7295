package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/ourslists/internal/backup"
	"github.com/dukerupert/ourslists/internal/config"
	"github.com/dukerupert/ourslists/internal/database"
	"github.com/dukerupert/ourslists/internal/docstore"
	"github.com/dukerupert/ourslists/internal/logging"
	"github.com/dukerupert/ourslists/internal/push"
	"github.com/dukerupert/ourslists/internal/server"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, WebSocket hub and notification scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

			srv, closeFn, err := newServer(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting ourslists", "version", Version, "backend", cfg.Backend, "addr", cfg.Addr())
			return srv.Run(ctx, cfg.Addr())
		},
	}
}

// newServer opens the configured stores and builds a server over them. The
// returned func closes the stores.
func newServer(cfg config.Config, logger *slog.Logger) (*server.Server, func(), error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}

	var docs *docstore.Store
	if cfg.Backend == config.BackendBadger {
		dc := docstore.DefaultConfig(cfg.BadgerPath)
		dc.Logger = logger
		docs, err = docstore.Open(dc)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("open document store: %w", err)
		}
	}

	srv := server.New(server.Options{
		DB:       db,
		Docs:     docs,
		FireHour: cfg.NotifyHour,
		Location: cfg.Location(),
		Push: push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subscriber:      cfg.PushSubscriber,
		},
		Backup: backup.Config{
			Passphrase: cfg.BackupPassphrase,
			Interval:   cfg.BackupInterval,
			Keep:       cfg.BackupKeep,
		},
		BackupDest: backupDestination(cfg),
		Logger:     logger,
	})

	return srv, func() { closeStores(db, docs, logger) }, nil
}

func closeStores(db *sql.DB, docs *docstore.Store, logger *slog.Logger) {
	if docs != nil {
		if err := docs.Close(); err != nil {
			logger.Error("close document store", "error", err)
		}
	}
	if err := db.Close(); err != nil {
		logger.Error("close database", "error", err)
	}
}

func rescheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reschedule",
		Short: "Rebuild the notification tickets of every space",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

			srv, closeFn, err := newServer(cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := srv.RescheduleAll(cmd.Context()); err != nil {
				return fmt.Errorf("reschedule: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "notifications rescheduled")
			return nil
		},
	}
}
