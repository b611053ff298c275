package cmd

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gpxtojson/trackworker/internal/config"
	"github.com/gpxtojson/trackworker/internal/preprocess"
)

var (
	gpxDir   string
	cacheDir string
	format   string
)

var preprocessCmd = &cobra.Command{
	Use:   "preprocess",
	Short: "Convert GPX directories into the track cache",
	Long: `Parse every GPX file under the track-type subdirectories (road, train,
plane, other), dedupe road points, compute the explored-area metrics and
write the cache files plus the data_config.json manifest.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		defer logger.Sync()

		cfg := config.LoadConfig()
		if gpxDir != "" {
			cfg.GPXDir = gpxDir
		}
		if cacheDir != "" {
			cfg.CacheDir = cacheDir
		}
		if format != "" {
			cfg.OutputFormat = format
		}
		if cfg.OutputFormat != preprocess.FormatJSON && cfg.OutputFormat != preprocess.FormatGzip {
			return fmt.Errorf("unknown output format %q", cfg.OutputFormat)
		}

		if cfg.EnablePprof {
			go func() {
				if err := http.ListenAndServe("localhost:"+cfg.PprofPort, nil); err != nil {
					logger.Warn("pprof server stopped", zap.Error(err))
				}
			}()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.ParseTimeout)
		defer cancel()

		start := time.Now()

		ds, err := preprocess.NewBuilder(cfg, logger).Build(ctx)
		if err != nil {
			return fmt.Errorf("build dataset: %w", err)
		}

		manifest, err := preprocess.NewWriter(cfg, logger).WriteCache(ds)
		if err != nil {
			return fmt.Errorf("write cache: %w", err)
		}

		fmt.Printf("Cache written to %s (%s, %.2f MB, %s) in %s\n",
			cfg.CacheDir, manifest.DataType, manifest.TotalSizeMB,
			manifest.Format, time.Since(start).Round(time.Millisecond))
		for trackType, layer := range ds.Tracks {
			fmt.Printf("  %-6s %6d points, %4d lines\n", trackType, layer.PointsCount, layer.LinesCount)
		}

		return nil
	},
}

func init() {
	preprocessCmd.Flags().StringVarP(&gpxDir, "gpx-dir", "p", "", "directory containing per-type GPX subdirectories")
	preprocessCmd.Flags().StringVarP(&cacheDir, "cache-dir", "o", "", "directory the cache files are written to")
	preprocessCmd.Flags().StringVarP(&format, "format", "f", "", "cache file format: json or gzip")

	rootCmd.AddCommand(preprocessCmd)
}
