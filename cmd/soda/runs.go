package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/soda/internal/config"
	"github.com/inodb/soda/internal/duckdb"
)

func newRunsCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	var failedOf string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List gallery runs recorded in the ledger",
		Example: `  soda runs --ledger ~/soda-ledger.duckdb
  soda runs --ledger ~/soda-ledger.duckdb --failed 2f1c...`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString(config.KeyLedger)
			if path == "" {
				return &usageError{err: fmt.Errorf("--%s is required", config.KeyLedger)}
			}
			store, err := duckdb.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			if failedOf != "" {
				rows, err := store.FailedRows(cmd.Context(), failedOf)
				if err != nil {
					return err
				}
				for _, r := range rows {
					fmt.Fprintln(stdout, r)
				}
				return nil
			}

			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			return printRuns(stdout, runs)
		},
	}
	cmd.Flags().StringVar(&failedOf, "failed", "", "print the failed input rows of this run id")
	return cmd
}

func printRuns(w io.Writer, runs []duckdb.RunSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tBUILD\tVIEWER\tRENDERED\tFAILED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
			r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Build, r.Framework,
			r.Succeeded, r.Attempted, r.Failed, r.OutputDir)
	}
	return tw.Flush()
}
