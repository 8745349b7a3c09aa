package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/config"
)

var (
	cfg        *config.Config
	policyPath string
)

var rootCmd = &cobra.Command{
	Use:   "nutrition-pipeline",
	Short: "Beverage nutrition medallion pipeline",
	Long:  "Ingests brand nutrition feeds into bronze manifests, normalizes and validates them into silver snapshots, then merges, filters and dispatches the gold payload.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if policyPath != "" {
			brands, err := config.LoadPolicy(policyPath, cfg.Brands)
			if err != nil {
				return fmt.Errorf("load policy: %w", err)
			}
			cfg.Brands = brands
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "brand policy YAML overlay")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
