package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/model"
	"github.com/sipwell/nutrition-pipeline/internal/monitoring"
)

var monitorSend bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run one monitoring check cycle",
	Long:  "Collects a metrics snapshot from the run ledger, evaluates alert thresholds, and optionally sends breached alerts to the configured webhook.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		collector := monitoring.NewCollector(st)
		alerter := monitoring.NewAlerter(cfg.Monitoring)

		snap, err := collector.Collect(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "collect metrics")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return err
		}

		alerts := alerter.Evaluate(snap)
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts.")
			return nil
		}

		for _, a := range alerts {
			fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", a.Severity, a.Type, a.Message)
		}

		if monitorSend {
			sent := alerter.SendAlerts(ctx, alerts)
			zap.L().Info("alerts sent", zap.Int("sent", sent), zap.Int("total", len(alerts)))
		}

		return nil
	},
}

// -- monitor dlq --

var monitorDLQCmd = &cobra.Command{
	Use:   "dlq",
	Short: "List dead-lettered dispatch payloads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListDLQ(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "list dlq")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead-letter queue is empty.")
			return nil
		}

		formatDLQ(os.Stdout, entries)
		return nil
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorSend, "send", false, "send breached alerts to the configured webhook")
	monitorDLQCmd.Flags().Int("limit", 50, "max number of entries to display")

	monitorCmd.AddCommand(monitorDLQCmd)
	rootCmd.AddCommand(monitorCmd)
}

// formatDLQ writes a tabular list of dead-letter entries to w.
func formatDLQ(out io.Writer, entries []model.DLQEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBATCH\tATTEMPTS\tCREATED\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t--------\t-------\t-----")

	for _, e := range entries {
		errMsg := e.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateID(e.ID),
			e.BatchID,
			e.Attempts,
			e.CreatedAt.Format("2006-01-02 15:04"),
			errMsg,
		)
	}
	_ = w.Flush()
}
