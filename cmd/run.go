package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eforoutan/LocalMorans/internal/lisa"
	"github.com/eforoutan/LocalMorans/internal/pipeline"
	"github.com/eforoutan/LocalMorans/internal/store"
	"github.com/eforoutan/LocalMorans/internal/weights"
)

var runCmd = &cobra.Command{
	Use:   "run <shapefile> <field> [queen|rook]",
	Short: "Compute Local Moran's I for a shapefile field",
	Long: `Runs the full analysis on one shapefile: builds a contiguity weights
matrix, computes Local Moran's I per areal unit with conditional permutation
inference, classifies significant clusters, and writes the results as GeoJSON
and CSV. The positional arguments match the workflow-tool contract.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := runOptions(cmd, args)
		if err != nil {
			return err
		}

		noStore, _ := cmd.Flags().GetBool("no-store")
		var st *store.SQLiteStore
		if cfg.Store.Enabled && !noStore {
			st, err = initStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()
		}

		opts.RunID = uuid.New().String()
		if st != nil {
			if _, err := st.CreateRun(ctx, opts.RunID, opts.Shapefile, opts.Field, string(opts.WeightType)); err != nil {
				return err
			}
		}

		sum, err := pipeline.Run(ctx, opts)
		if err != nil {
			if st != nil {
				if ferr := st.FailRun(ctx, opts.RunID, err.Error()); ferr != nil {
					zap.L().Warn("failed to record run failure", zap.Error(ferr))
				}
			}
			return eris.Wrap(err, "run")
		}

		if st != nil {
			if cerr := st.CompleteRun(ctx, opts.RunID, sum); cerr != nil {
				zap.L().Warn("failed to record run completion", zap.Error(cerr))
			}
		}

		fmt.Printf("Results saved as GeoJSON to %s\n", sum.GeoJSONPath)
		fmt.Printf("Results saved as CSV to %s\n", sum.CSVPath)
		return nil
	},
}

func init() {
	runCmd.Flags().String("weights", "", "weight type: queen or rook (overrides the positional argument)")
	runCmd.Flags().Int("permutations", 0, "number of conditional permutations (default from config, 999)")
	runCmd.Flags().Float64("alpha", 0, "significance cutoff for cluster classification (default 0.05)")
	runCmd.Flags().Int64("seed", 0, "permutation RNG seed for reproducible runs (0 = random)")
	runCmd.Flags().Int("workers", 0, "max concurrent units during inference (0 = NumCPU)")
	runCmd.Flags().String("geojson", "", "GeoJSON output path (default from config)")
	runCmd.Flags().String("csv", "", "CSV output path (default from config)")
	runCmd.Flags().Bool("no-store", false, "skip recording this run in the history database")
	rootCmd.AddCommand(runCmd)
}

// runOptions resolves positional arguments, flags, and config into pipeline
// options. Flags win over positionals, positionals over config.
func runOptions(cmd *cobra.Command, args []string) (pipeline.Options, error) {
	weightArg := "queen"
	if len(args) == 3 {
		weightArg = args[2]
	}
	if flagVal, _ := cmd.Flags().GetString("weights"); flagVal != "" {
		weightArg = flagVal
	}
	wt, err := weights.ParseType(weightArg)
	if err != nil {
		return pipeline.Options{}, err
	}

	lcfg := lisa.Config{
		Permutations: cfg.Analysis.Permutations,
		Alpha:        cfg.Analysis.Alpha,
		Seed:         cfg.Analysis.Seed,
		Workers:      cfg.Analysis.Workers,
	}
	if v, _ := cmd.Flags().GetInt("permutations"); v > 0 {
		lcfg.Permutations = v
	}
	if v, _ := cmd.Flags().GetFloat64("alpha"); v > 0 {
		lcfg.Alpha = v
	}
	if v, _ := cmd.Flags().GetInt64("seed"); v != 0 {
		lcfg.Seed = v
	}
	if v, _ := cmd.Flags().GetInt("workers"); v > 0 {
		lcfg.Workers = v
	}

	geojsonPath := cfg.Output.GeoJSON
	if v, _ := cmd.Flags().GetString("geojson"); v != "" {
		geojsonPath = v
	}
	csvPath := cfg.Output.CSV
	if v, _ := cmd.Flags().GetString("csv"); v != "" {
		csvPath = v
	}

	opts := pipeline.Options{
		Shapefile:   args[0],
		Field:       args[1],
		WeightType:  wt,
		Lisa:        lcfg,
		GeoJSONPath: geojsonPath,
		CSVPath:     csvPath,
	}
	return opts, opts.Validate()
}

// initStore opens and migrates the run-history database.
func initStore(ctx context.Context) (*store.SQLiteStore, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
