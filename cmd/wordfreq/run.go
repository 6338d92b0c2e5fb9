package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency"
	"github.com/Adithya-Monish-Kumar-K/wordfreq/internal/frequency/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		kinds     []string
		replace   bool
		provision bool
	)
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run the pipeline once over a corpus",
		Long: `Reads the corpus, ranks and categorizes terms for every kind and
stores the result. Paths override corpus.paths; with the s3 source they are
object keys.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			if len(kinds) > 0 {
				a.cfg.Pipeline.Kinds = kinds
			}
			requested, err := pipeline.ParseKinds(a.cfg.Pipeline.Kinds)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrInvalidConfig, err)
			}
			runner, store, err := a.newRunner(ctx)
			if err != nil {
				return err
			}
			if provision {
				if err := store.Provision(ctx, a.tables(), false); err != nil {
					return err
				}
			}
			if err := a.checker.Preflight(ctx); err != nil {
				return err
			}
			src, err := corpus.FromConfig(ctx, a.cfg.Corpus, args)
			if err != nil {
				return fmt.Errorf("%w: %w", apperrors.ErrSource, err)
			}

			report, runErr := runner.Run(ctx, pipeline.Request{
				Source:  src,
				Kinds:   requested,
				Replace: replace || a.cfg.Store.ReplaceExisting,
			})
			printSummary(cmd, report)
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kinds", nil, "entity kinds to run (word, letter)")
	cmd.Flags().BoolVar(&replace, "replace", false, "clear destination tables in the same transaction")
	cmd.Flags().BoolVar(&provision, "provision", false, "create destination tables if missing")
	return cmd
}

func printSummary(cmd *cobra.Command, report pipeline.Report) {
	if len(report.Results) == 0 {
		return
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run %s\n", report.RunID)
	fmt.Fprintln(w, "KIND\tTABLE\tLINES\tTERMS\tDISTINCT\tPOPULAR\tCOMMON\tRARE\tSTATUS")
	for _, r := range report.Results {
		status := "ok"
		if r.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Kind, r.Table, r.Stats.Lines, r.Stats.Terms, r.Distinct,
			r.Categories[frequency.CategoryPopular],
			r.Categories[frequency.CategoryCommon],
			r.Categories[frequency.CategoryRare],
			status,
		)
	}
	w.Flush()
}
