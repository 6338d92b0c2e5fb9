package main

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func newProvisionCmd(a *app) *cobra.Command {
	var recreate bool
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the destination tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.close()
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			tables := a.tables()
			if err := store.Provision(cmd.Context(), tables, recreate); err != nil {
				return err
			}
			// Recreated tables are empty; cached snapshots of them are stale.
			if recreate {
				if cache := a.openCache(cmd.Context()); cache != nil {
					if err := cache.Invalidate(cmd.Context()); err != nil {
						return fmt.Errorf("%w: %w", apperrors.ErrSetup, err)
					}
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "provisioned %v\n", tables)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recreate, "recreate", false, "drop existing tables first")
	return cmd
}
