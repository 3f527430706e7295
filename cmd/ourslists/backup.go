package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/ourslists/internal/backup"
	"github.com/dukerupert/ourslists/internal/config"
	"github.com/dukerupert/ourslists/internal/docstore"
	"github.com/dukerupert/ourslists/internal/logging"
)

// backupDestination picks S3 when a bucket is configured, then a local
// directory. It returns nil when neither is set.
func backupDestination(cfg config.Config) backup.Destination {
	s3cfg := backup.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Prefix:    cfg.S3Prefix,
	}
	switch {
	case s3cfg.Enabled():
		return backup.NewS3Destination(s3cfg)
	case cfg.BackupDir != "":
		return backup.DirDestination{Dir: cfg.BackupDir}
	}
	return nil
}

func backupCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Take, list and restore encrypted snapshots",
	}
	cmd.AddCommand(backupRunCmd(configPath))
	cmd.AddCommand(backupListCmd(configPath))
	cmd.AddCommand(backupRestoreCmd(configPath))
	return cmd
}

func backupRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Take a snapshot now",
		Args:  cobra.NoArgs,
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

			snap, err := srv.Backups().RunNow(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", snap.Name, snap.Size)
			return nil
		},
	}
}

func backupListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			dest := backupDestination(cfg)
			if dest == nil {
				return backup.ErrNotConfigured
			}
			snaps, err := backup.List(cmd.Context(), dest)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCREATED\tSIZE\tDOCS")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\n", s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), s.Size, s.HasDocs)
			}
			return tw.Flush()
		},
	}
}

func backupRestoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore NAME",
		Short: "Replace the database with a snapshot",
		Long: `Restore decrypts the named snapshot, checks its integrity and replaces the
SQLite database. With the badger backend the document store dump is loaded
into the configured Badger directory. Stop the server first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
			dest := backupDestination(cfg)
			if dest == nil {
				return backup.ErrNotConfigured
			}

			var loader backup.DocsLoader
			if cfg.Backend == config.BackendBadger {
				dc := docstore.DefaultConfig(cfg.BadgerPath)
				dc.Logger = logger
				docs, err := docstore.Open(dc)
				if err != nil {
					return fmt.Errorf("open document store: %w", err)
				}
				defer docs.Close()
				loader = docs
			}

			err = backup.Restore(cmd.Context(), dest, cfg.BackupPassphrase, args[0], cfg.DBPath, loader)
			if errors.Is(err, backup.ErrSnapshotNotFound) {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s into %s\n", args[0], cfg.DBPath)
			return nil
		},
	}
}
