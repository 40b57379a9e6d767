package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eforoutan/LocalMorans/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "localmorans",
	Short: "Local Moran's I spatial autocorrelation analysis",
	Long:  "Reads a polygon shapefile, builds queen or rook contiguity weights, computes Local Moran's I with permutation inference, and writes GeoJSON and CSV results.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

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
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
