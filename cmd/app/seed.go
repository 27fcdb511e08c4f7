package main

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"discord-storefront/internal/domain/model"
	"discord-storefront/internal/usecase"
)

// seedCmd creates a demo server with one product of each type.
func seedCmd(flags *rootFlags) *cobra.Command {
	var (
		serverID string
		ownerID  string
		roleID   string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo server and catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.servers.UpdateSettings(ctx, usecase.ServerSettingsInput{
				ServerID:        serverID,
				CommissionRate:  lo.ToPtr(cfg.Commission.DefaultRate),
				StripeSecretKey: lo.ToPtr("sk_test_seed"),
				WebhookSecret:   lo.ToPtr("whsec_seed"),
			}); err != nil {
				return fmt.Errorf("seed server: %w", err)
			}

			inputs := []usecase.ProductInput{
				{
					Name:  lo.ToPtr("Wallpaper pack"),
					Price: lo.ToPtr(decimal.RequireFromString("2.99")),
					Type:  model.ProductTypeFile,
					File:  &model.FileAsset{URL: "https://example.com/downloads/wallpapers.zip", Name: "wallpapers.zip"},
				},
				{
					Name:  lo.ToPtr("Game key"),
					Price: lo.ToPtr(decimal.RequireFromString("14.99")),
					Type:  model.ProductTypeSerialPool,
					Stock: lo.ToPtr(int64(0)),
				},
				{
					Name:  lo.ToPtr("VIP (30 days)"),
					Price: lo.ToPtr(decimal.RequireFromString("4.99")),
					Type:  model.ProductTypeRole,
					Role:  &model.RolePolicy{RoleID: roleID, Duration: 30 * 24 * time.Hour, GracePeriod: 24 * time.Hour},
				},
			}
			for _, in := range inputs {
				in.ServerID = serverID
				in.OwnerID = ownerID
				p, err := a.catalog.CreateProduct(ctx, in)
				if err != nil {
					return fmt.Errorf("seed %s: %w", *in.Name, err)
				}
				if p.Type == model.ProductTypeSerialPool {
					if _, err := a.catalog.AddSerials(ctx, p.ID, ownerID, []string{"DEMO-0001", "DEMO-0002", "DEMO-0003"}); err != nil {
						return fmt.Errorf("seed serials: %w", err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s %s\n", p.Type, p.ID, p.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverID, "server", "demo-guild", "Discord server (guild) id")
	cmd.Flags().StringVar(&ownerID, "owner", "demo-owner", "Discord user id owning the products")
	cmd.Flags().StringVar(&roleID, "role", "demo-role", "Discord role id sold by the ROLE product")
	return cmd
}
