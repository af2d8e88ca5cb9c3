package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/libs/runtime"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/storage"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *db.Pool) error {
				n, err := db.NewMigrator(pool, storage.Migrations()).Up(ctx)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				runtime.NewLogger(cfg.ServiceName, cfg.LogLevel).Info("migrations applied", "count", n)
				return nil
			})
		},
	})
	return cmd
}

func withPool(ctx context.Context, cfg Config, fn func(context.Context, *db.Pool) error) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{MaxConns: 2})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	return fn(ctx, pool)
}
