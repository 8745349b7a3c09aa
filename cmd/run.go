package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/model"
)

var runTriggeredBy string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one full pipeline batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, runTriggeredBy)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("batch complete",
			zap.String("batch_id", result.BatchID),
			zap.String("status", string(result.Status)),
			zap.Int("brands", len(result.Brands)),
		)

		if result.Status == model.BatchStatusPartial {
			for _, b := range result.Brands {
				if b.Status == model.BrandStageFailed {
					zap.L().Warn("brand failed",
						zap.String("brand", b.Brand),
						zap.String("detail", b.Detail),
					)
				}
			}
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTriggeredBy, "triggered-by", "cli", "who or what triggered this batch")
	rootCmd.AddCommand(runCmd)
}
