package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"discord-storefront/internal/domain"
)

func deliverCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <order-id>",
		Short: "Run delivery for one completed order (manual retry)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			o, err := a.delivery.Deliver(ctx, args[0])
			if errors.Is(err, domain.ErrPartialDelivery) {
				fmt.Fprintf(cmd.OutOrStdout(), "order %s: resource handed out but the buyer was not reached: %v\n", args[0], err)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "order %s delivered at %s\n", o.ID, o.DeliveredAt)
			return nil
		},
	}
}
