package main

import (
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/completeness-cli/internal/ingest"
	"github.com/sells-group/completeness-cli/internal/lineage"
	"github.com/sells-group/completeness-cli/internal/monitoring"
	"github.com/sells-group/completeness-cli/internal/report"
	"github.com/sells-group/completeness-cli/internal/runner"
)

var (
	classifyInput   string
	classifySchema  string
	classifyRunID   string
	classifyHorizon string
	classifyAlert   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run a classification over a delivery of records and lineage",
	Long:  "Ingests a delivery (directory or ftp:// drop URL of *.records.ndjson and *.lineage.ndjson files), joins records per entity, classifies every declared field, aggregates the completeness report, and persists the run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		reg, err := loadRegistry(ctx, classifySchema)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		horizon := time.Now().UTC()
		if classifyHorizon != "" {
			horizon, err = time.Parse(time.RFC3339, classifyHorizon)
			if err != nil {
				return eris.Wrapf(err, "parse horizon %q", classifyHorizon)
			}
		}

		// Lineage streams into the in-memory store for this run and is
		// mirrored into the persistent trail.
		lin := lineage.NewMemory()
		tee := teeLineage{mem: lin, st: st}

		var delivery *ingest.Delivery
		if strings.HasPrefix(classifyInput, "ftp://") {
			delivery, err = newFTPDrop().Load(ctx, classifyInput, tee)
		} else {
			delivery, err = ingest.LoadDir(ctx, classifyInput, tee)
		}
		if err != nil {
			return err
		}

		opts := runner.Options{
			RunID:       classifyRunID,
			Horizon:     horizon,
			Concurrency: cfg.Run.Concurrency,
		}
		res, err := runner.Run(ctx, reg, lin, delivery.Records, opts)
		if err != nil {
			return err
		}

		if _, err := st.CreateRun(ctx, res.RunID, res.Horizon); err != nil {
			return err
		}
		if err := st.SaveClassifications(ctx, res.RunID, res.Classifications); err != nil {
			return err
		}

		rep := report.Summarize(res)
		if err := st.CompleteRun(ctx, res.RunID, rep); err != nil {
			return err
		}

		if classifyAlert {
			alerter := monitoring.NewAlerter(cfg.Monitoring)
			alerts := alerter.Evaluate(rep)
			sent := alerter.SendAlerts(ctx, alerts)
			zap.L().Info("classify: alerts evaluated",
				zap.Int("triggered", len(alerts)),
				zap.Int("sent", sent),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyInput, "input", "", "delivery directory or ftp:// drop URL (required)")
	classifyCmd.Flags().StringVar(&classifySchema, "schema", "", "expectation YAML file (overrides config)")
	classifyCmd.Flags().StringVar(&classifyRunID, "run-id", "", "run ID (generated when empty)")
	classifyCmd.Flags().StringVar(&classifyHorizon, "horizon", "", "run horizon, RFC 3339 (default: now)")
	classifyCmd.Flags().BoolVar(&classifyAlert, "alert", false, "evaluate and send monitoring alerts")
	_ = classifyCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(classifyCmd)
}
