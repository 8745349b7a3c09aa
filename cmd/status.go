package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sipwell/nutrition-pipeline/internal/model"
	"github.com/sipwell/nutrition-pipeline/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect pipeline batch history",
	Long:  "Commands for listing, viewing, and summarizing batch runs from the run ledger.",
}

// -- status list --

var statusListCmd = &cobra.Command{
	Use:   "list",
	Short: "List batch runs",
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

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.BatchFilter{
			Status: model.BatchStatus(status),
			Limit:  limit,
		}

		batches, err := st.ListBatches(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "status list")
		}

		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		formatBatchList(os.Stdout, batches)
		return nil
	},
}

// -- status show --

var statusShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a batch run",
	Args:  cobra.ExactArgs(1),
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

		batch, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "status show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	},
}

// -- status stats --

var statusStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate batch statistics",
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

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.BatchFilter{Limit: 10000}
		if since > 0 {
			filter.CreatedAfter = time.Now().Add(-since)
		}

		batches, err := st.ListBatches(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "status stats")
		}

		formatBatchStats(os.Stdout, computeBatchStats(batches))
		return nil
	},
}

func init() {
	statusListCmd.Flags().String("status", "", "filter by batch status (running, completed, partial)")
	statusListCmd.Flags().Int("limit", 50, "max number of batches to display")

	statusStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	statusCmd.AddCommand(statusListCmd)
	statusCmd.AddCommand(statusShowCmd)
	statusCmd.AddCommand(statusStatsCmd)
	rootCmd.AddCommand(statusCmd)
}

// batchStats holds aggregate statistics computed from a set of batch runs.
type batchStats struct {
	Total        int
	Completed    int
	Partial      int
	Running      int
	FailedBrands int
	AvgDurSecs   float64
}

// computeBatchStats computes aggregate statistics from a list of batch runs.
func computeBatchStats(batches []model.BatchRun) batchStats {
	var s batchStats
	s.Total = len(batches)

	var totalDur time.Duration
	var durCount int

	for _, b := range batches {
		switch b.Status {
		case model.BatchStatusCompleted:
			s.Completed++
		case model.BatchStatusPartial:
			s.Partial++
		case model.BatchStatusRunning:
			s.Running++
		}

		if b.Status != model.BatchStatusRunning {
			totalDur += b.UpdatedAt.Sub(b.CreatedAt)
			durCount++
		}

		if b.Result != nil {
			for _, br := range b.Result.Brands {
				if br.Status == model.BrandStageFailed {
					s.FailedBrands++
				}
			}
		}
	}

	if durCount > 0 {
		s.AvgDurSecs = totalDur.Seconds() / float64(durCount)
	}
	return s
}

// formatBatchList writes a tabular list of batch runs to w.
func formatBatchList(out io.Writer, batches []model.BatchRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBATCH\tSTATUS\tTRIGGERED_BY\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t------------\t-------\t--------")

	for _, b := range batches {
		dur := b.UpdatedAt.Sub(b.CreatedAt).Round(time.Second).String()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(b.ID),
			b.BatchID,
			b.Status,
			b.TriggeredBy,
			b.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatBatchStats writes aggregate stats to w.
func formatBatchStats(out io.Writer, s batchStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total batches:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Completed:\t%d\n", s.Completed)
	_, _ = fmt.Fprintf(w, "Partial:\t%d\n", s.Partial)
	_, _ = fmt.Fprintf(w, "Running:\t%d\n", s.Running)
	_, _ = fmt.Fprintf(w, "Failed brand stages:\t%d\n", s.FailedBrands)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
