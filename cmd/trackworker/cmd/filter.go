package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gpxtojson/trackworker/internal/config"
	"github.com/gpxtojson/trackworker/internal/geo"
	"github.com/gpxtojson/trackworker/internal/viewport"
	"github.com/gpxtojson/trackworker/internal/worker"
)

var (
	boundsFlag   string
	zoomFlag     float64
	optimizeFlag bool
)

var filterCmd = &cobra.Command{
	Use:   "filter <cache-file>",
	Short: "Run a cache file through the worker pipeline",
	Long: `Load one cache file (plain or gzipped JSON), push it through a live
worker instance with PROCESS_TRACK_DATA and FILTER_TRACKS_BY_BOUNDS, and
report how many features each track type keeps for the given viewport.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		cfg := config.LoadConfig()

		buf, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		bounds, err := parseBounds(boundsFlag)
		if err != nil {
			return err
		}

		var sampler viewport.Sampler
		if cfg.SampleSeed != 0 {
			sampler = viewport.NewSeededSampler(cfg.SampleSeed)
		}

		w, err := worker.New(cfg, worker.NewRouter(sampler, logger), logger)
		if err != nil {
			return err
		}
		defer w.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		runErr := make(chan error, 1)
		go func() { runErr <- w.Run(ctx) }()
		<-w.Running()

		responses, err := w.Responses(ctx)
		if err != nil {
			return err
		}

		err = w.Submit(worker.Request{
			Type:          worker.RequestProcessTrackData,
			CorrelationID: "cli-process",
			Process: &worker.ProcessPayload{
				Buffer:     buf,
				Compressed: strings.HasSuffix(args[0], ".gz"),
				Optimize:   optimizeFlag,
			},
		})
		if err != nil {
			return err
		}

		processed := <-responses
		if !processed.Success {
			return fmt.Errorf("process failed: %s", processed.Error)
		}

		err = w.Submit(worker.Request{
			Type:          worker.RequestFilterTracksByBounds,
			CorrelationID: "cli-filter",
			Filter: &worker.FilterPayload{
				Dataset:   processed.Data,
				Bounds:    bounds,
				ZoomLevel: zoomFlag,
			},
		})
		if err != nil {
			return err
		}

		filtered := <-responses
		if !filtered.Success {
			return fmt.Errorf("filter failed: %s", filtered.Error)
		}

		fmt.Printf("Sample rate %.1f at zoom %.1f\n", viewport.SampleRate(zoomFlag), zoomFlag)
		for trackType, layer := range filtered.Data.Tracks {
			points, lines := 0, 0
			if layer.Points != nil {
				points = len(layer.Points.Features)
			}
			if layer.Lines != nil {
				lines = len(layer.Lines.Features)
			}
			fmt.Printf("  %-6s %6d/%6d points, %4d/%4d lines\n",
				trackType, points, layer.PointsCount, lines, layer.LinesCount)
		}

		cancel()
		return <-runErr
	},
}

// parseBounds reads "west,south,east,north". Empty means no viewport,
// which makes the filter stage an identity pass.
func parseBounds(s string) (*geo.Bounds, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bounds must be west,south,east,north, got %q", s)
	}

	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bounds component %q: %w", part, err)
		}
		vals[i] = v
	}

	return &geo.Bounds{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
}

func init() {
	filterCmd.Flags().StringVarP(&boundsFlag, "bounds", "b", "", "viewport as west,south,east,north degrees")
	filterCmd.Flags().Float64VarP(&zoomFlag, "zoom", "z", 10, "zoom level driving the point sample rate")
	filterCmd.Flags().BoolVar(&optimizeFlag, "optimize", true, "strip features to render-only fields before filtering")

	rootCmd.AddCommand(filterCmd)
}
