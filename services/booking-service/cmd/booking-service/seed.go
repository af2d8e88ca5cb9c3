package main

import (
	"context"

	"github.com/md-rashed-zaman/tenantbook/libs/db"
	"github.com/md-rashed-zaman/tenantbook/libs/runtime"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load tenants, settings, services and people from a JSON fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fx, err := loadFixture(file)
			if err != nil {
				return err
			}
			return withPool(cmd.Context(), cfg, func(ctx context.Context, pool *db.Pool) error {
				if err := fx.ApplyPostgres(ctx, pool); err != nil {
					return err
				}
				runtime.NewLogger(cfg.ServiceName, cfg.LogLevel).Info("seed applied", "file", file, "tenants", len(fx.Tenants))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the fixture file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
