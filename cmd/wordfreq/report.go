package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/resultcache"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		kindName     string
		categoryName string
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the latest stored result of one kind",
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := frequency.ParseKind(kindName)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
			}
			var category frequency.Category
			if categoryName != "" {
				if category, err = frequency.ParseCategory(categoryName); err != nil {
					return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
				}
			}
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			table := a.cfg.Store.Tables.ForKind(string(kind))
			loadFromStore := func(ctx context.Context) (resultcache.Snapshot, error) {
				entries, err := store.Load(ctx, table)
				if err != nil {
					return resultcache.Snapshot{}, err
				}
				return resultcache.Snapshot{
					Kind:        kind,
					Table:       table,
					GeneratedAt: time.Now().UTC(),
					Entries:     entries,
				}, nil
			}

			var snap resultcache.Snapshot
			if cache := a.openCache(ctx); cache != nil {
				snap, _, err = cache.GetOrLoad(ctx, kind, loadFromStore)
			} else {
				snap, err = loadFromStore(ctx)
			}
			if err != nil {
				return err
			}

			entries := snap.Filter(category)
			if asJSON {
				snap.Entries = entries
				if snap.Entries == nil {
					snap.Entries = []frequency.CategorizedEntry{}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tTERM\tCATEGORY\tFREQUENCY")
			for _, e := range entries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Rank, e.Term, e.Category, e.Frequency)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&kindName, "kind", string(frequency.KindWord), "entity kind (word, letter)")
	cmd.Flags().StringVar(&categoryName, "category", "", "only this category (popular, common, rare)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the snapshot as JSON")
	return cmd
}
