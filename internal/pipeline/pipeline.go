// Package pipeline runs the full Local Moran's I analysis: read shapefile,
// build contiguity weights, estimate, classify, write outputs.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eforoutan/LocalMorans/internal/export"
	"github.com/eforoutan/LocalMorans/internal/lisa"
	"github.com/eforoutan/LocalMorans/internal/shapefile"
	"github.com/eforoutan/LocalMorans/internal/weights"
)

// Options configures one analysis run.
type Options struct {
	Shapefile  string
	Field      string
	WeightType weights.Type
	Lisa       lisa.Config

	GeoJSONPath string
	CSVPath     string

	// RunID is assigned if empty.
	RunID string
}

// Summary describes a completed run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Shapefile   string         `json:"shapefile"`
	Field       string         `json:"field"`
	WeightType  string         `json:"weight_type"`
	Units       int            `json:"units"`
	Imputed     int            `json:"imputed"`
	Islands     int            `json:"islands"`
	GlobalI     float64        `json:"global_moran_i"`
	Classes     map[string]int `json:"classes"`
	GeoJSONPath string         `json:"geojson_path"`
	CSVPath     string         `json:"csv_path"`
	DurationMs  int64          `json:"duration_ms"`
}

// Run executes the analysis pipeline.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	id := opts.RunID
	if id == "" {
		id = uuid.New().String()
	}
	log := zap.L().With(
		zap.String("run_id", id),
		zap.String("shapefile", opts.Shapefile),
		zap.String("field", opts.Field),
		zap.String("weights", string(opts.WeightType)),
	)

	ds, err := shapefile.Read(opts.Shapefile, opts.Field)
	if err != nil {
		return nil, err
	}
	log.Info("loaded shapefile",
		zap.Int("units", ds.Len()),
		zap.Int("imputed", ds.Imputed),
	)

	w, err := weights.Build(ds.Geoms, opts.WeightType)
	if err != nil {
		return nil, err
	}
	islands := w.Islands()
	if len(islands) > 0 {
		log.Warn("weights matrix has islands",
			zap.Int("islands", len(islands)),
		)
	}

	res, err := lisa.Compute(ctx, ds.Values, w, opts.Lisa)
	if err != nil {
		return nil, err
	}

	globalI, err := lisa.Global(ds.Values, w)
	if err != nil {
		return nil, err
	}
	log.Info("estimated local moran statistics",
		zap.Float64("global_moran_i", globalI),
		zap.Int("permutations", opts.Lisa.Permutations),
	)

	if err := export.WriteGeoJSON(opts.GeoJSONPath, ds, res); err != nil {
		return nil, err
	}
	if err := export.WriteCSV(opts.CSVPath, ds, res); err != nil {
		return nil, err
	}

	classes := make(map[string]int)
	for _, c := range res.Class {
		classes[c.String()]++
	}

	sum := &Summary{
		RunID:       id,
		Shapefile:   opts.Shapefile,
		Field:       ds.Field,
		WeightType:  string(opts.WeightType),
		Units:       ds.Len(),
		Imputed:     ds.Imputed,
		Islands:     len(islands),
		GlobalI:     globalI,
		Classes:     classes,
		GeoJSONPath: opts.GeoJSONPath,
		CSVPath:     opts.CSVPath,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	log.Info("analysis complete",
		zap.Int("units", sum.Units),
		zap.Int64("duration_ms", sum.DurationMs),
	)
	return sum, nil
}

// Validate checks the options before a run starts.
func (o Options) Validate() error {
	if o.Shapefile == "" {
		return eris.New("pipeline: shapefile path is required")
	}
	if o.Field == "" {
		return eris.New("pipeline: field name is required")
	}
	if o.GeoJSONPath == "" || o.CSVPath == "" {
		return eris.New("pipeline: output paths are required")
	}
	_, err := weights.ParseType(string(o.WeightType))
	return err
}
