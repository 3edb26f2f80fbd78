package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/completeness-cli/internal/report"
)

var diffCmd = &cobra.Command{
	Use:   "diff <run-a> <run-b>",
	Short: "Compare per-field completeness between two runs",
	Long:  "Loads the persisted reports of two runs and prints the per-cell completeness and missing-rate deltas. Unchanged cells are omitted.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		repA, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "diff: load run %s", args[0])
		}
		repB, err := st.GetReport(ctx, args[1])
		if err != nil {
			return eris.Wrapf(err, "diff: load run %s", args[1])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Diff(repA, repB))
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)
}
