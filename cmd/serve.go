package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eforoutan/LocalMorans/internal/lisa"
	"github.com/eforoutan/LocalMorans/internal/pipeline"
	"github.com/eforoutan/LocalMorans/internal/weights"
)

var (
	servePort   int
	serveOutDir string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a webhook server for analysis requests",
	Long: `Accepts analysis requests over HTTP and runs them asynchronously.
Each run writes its outputs into a per-run directory; run status is
available through the history database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Shapefile string `json:"shapefile"`
				Field     string `json:"field"`
				Weights   string `json:"weights"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
				return
			}
			if req.Shapefile == "" || req.Field == "" {
				http.Error(w, `{"error":"shapefile and field are required"}`, http.StatusBadRequest)
				return
			}
			if req.Weights == "" {
				req.Weights = "queen"
			}
			wt, err := weights.ParseType(req.Weights)
			if err != nil {
				http.Error(w, `{"error":"weights must be queen or rook"}`, http.StatusBadRequest)
				return
			}

			id := uuid.New().String()
			outDir := filepath.Join(serveOutDir, id[:8])
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				http.Error(w, `{"error":"cannot create output directory"}`, http.StatusInternalServerError)
				return
			}

			opts := pipeline.Options{
				Shapefile:  req.Shapefile,
				Field:      req.Field,
				WeightType: wt,
				Lisa: lisa.Config{
					Permutations: cfg.Analysis.Permutations,
					Alpha:        cfg.Analysis.Alpha,
					Seed:         cfg.Analysis.Seed,
					Workers:      cfg.Analysis.Workers,
				},
				GeoJSONPath: filepath.Join(outDir, cfg.Output.GeoJSON),
				CSVPath:     filepath.Join(outDir, cfg.Output.CSV),
				RunID:       id,
			}

			if _, err := st.CreateRun(ctx, id, opts.Shapefile, opts.Field, string(opts.WeightType)); err != nil {
				zap.L().Error("failed to record run", zap.Error(err))
				http.Error(w, `{"error":"failed to record run"}`, http.StatusInternalServerError)
				return
			}

			// Run the analysis asynchronously; poll run status via the store.
			go func() {
				sum, err := pipeline.Run(ctx, opts)
				if err != nil {
					zap.L().Error("analysis failed",
						zap.String("run_id", id),
						zap.Error(err),
					)
					if ferr := st.FailRun(ctx, id, err.Error()); ferr != nil {
						zap.L().Warn("failed to record run failure", zap.Error(ferr))
					}
					return
				}
				if cerr := st.CompleteRun(ctx, id, sum); cerr != nil {
					zap.L().Warn("failed to record run completion", zap.Error(cerr))
				}
			}()

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":  "accepted",
				"run_id":  id,
				"out_dir": outDir,
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveOutDir, "out-dir", "results", "directory for per-run output subdirectories")
	rootCmd.AddCommand(serveCmd)
}
