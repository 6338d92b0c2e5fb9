// Command wordfreq ranks the terms of a text corpus by frequency, labels the
// popular, common and rare bands and stores them in a SQL database.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/errors"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return executeApp(ctx, newApp(stdout, stderr), args)
}

func executeApp(ctx context.Context, a *app, args []string) int {
	root := newRootCmd(a)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(a.stderr, "wordfreq: %v\n", err)
		return apperrors.ExitCode(err)
	}
	return apperrors.ExitOK
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wordfreq",
		Short:         "Rank and categorize corpus term frequencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/development.yaml", "path to config file")

	root.AddCommand(
		newRunCmd(a),
		newProvisionCmd(a),
		newServeCmd(a),
		newReportCmd(a),
	)
	return root
}
