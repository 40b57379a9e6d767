package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/eforoutan/LocalMorans/internal/shapefile"
	"github.com/eforoutan/LocalMorans/internal/weights"
)

var weightsCmd = &cobra.Command{
	Use:   "weights <shapefile> [queen|rook]",
	Short: "Inspect the contiguity structure of a shapefile",
	Long: `Builds the spatial weights matrix without running the analysis and
prints its connectivity summary. Useful for spotting islands and sliver
polygons before a run.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		weightArg := "queen"
		if len(args) == 2 {
			weightArg = args[1]
		}
		wt, err := weights.ParseType(weightArg)
		if err != nil {
			return err
		}

		geoms, err := shapefile.ReadGeoms(args[0])
		if err != nil {
			return err
		}

		m, err := weights.Build(geoms, wt)
		if err != nil {
			return eris.Wrap(err, "weights")
		}

		formatWeightsSummary(os.Stdout, m.Summarize(), m.Islands())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(weightsCmd)
}

// formatWeightsSummary writes the connectivity summary to out.
func formatWeightsSummary(out io.Writer, s weights.Summary, islands []int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Units:\t%d\n", s.Units)
	_, _ = fmt.Fprintf(w, "Weight type:\t%s\n", s.Type)
	_, _ = fmt.Fprintf(w, "Nonzero links:\t%d\n", s.Links)
	_, _ = fmt.Fprintf(w, "Neighbors min/avg/max:\t%d / %.2f / %d\n", s.MinNeighbors, s.AvgNeighbors, s.MaxNeighbors)
	_, _ = fmt.Fprintf(w, "Islands:\t%d\n", s.Islands)
	_ = w.Flush()

	if len(islands) > 0 {
		shown := islands
		if len(shown) > 10 {
			shown = shown[:10]
		}
		_, _ = fmt.Fprintf(out, "Island record indices (first %d): %v\n", len(shown), shown)
	}
}
