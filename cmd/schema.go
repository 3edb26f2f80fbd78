package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/completeness-cli/internal/model"
	"github.com/sells-group/completeness-cli/internal/registry"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and validate the expectation schema",
}

// -- schema validate --

var schemaValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Load the expectation schema and report problems",
	Long:  "Loads the expectation schema from the given YAML file (or the configured source when omitted). Duplicate field specs and malformed conditional predicates fail the load.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}

		reg, err := loadRegistry(cmd.Context(), path)
		if err != nil {
			return err
		}

		formatSchema(os.Stdout, reg)
		return nil
	},
}

func init() {
	schemaCmd.AddCommand(schemaValidateCmd)
	rootCmd.AddCommand(schemaCmd)
}

// formatSchema writes a tabular view of the registered schemas to w.
func formatSchema(out io.Writer, reg *registry.Registry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ENTITY_TYPE\tFIELD\tAPPLICABILITY\tCONDITION\tTYPE")
	_, _ = fmt.Fprintln(w, "-----------\t-----\t-------------\t---------\t----")

	for _, name := range reg.EntityTypes() {
		fields, err := reg.Fields(name)
		if err != nil {
			continue
		}
		for _, fs := range fields {
			hint := string(fs.TypeHint)
			if hint == "" {
				hint = "-"
			}
			cond := fs.Condition
			if fs.Applicability != model.ApplicabilityConditional {
				cond = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				name, fs.Name, fs.Applicability, cond, hint)
		}
	}
	_ = w.Flush()
}
