package preprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gpxtojson/trackworker/internal/config"
	"github.com/gpxtojson/trackworker/internal/geo"
)

// DatasetVersion is stamped into every generated dataset so the decoder
// side can tell cache generations apart.
const DatasetVersion = "2.2"

// ExplorationMetrics summarizes how much of the earth the road tracks
// cover. It rides along in the dataset's opaque metrics field; the
// worker never interprets it.
type ExplorationMetrics struct {
	CalculationTime   string   `json:"calculation_time"`
	TotalFiles        int      `json:"total_files"`
	TotalPoints       int      `json:"total_points"`
	UniquePoints      int      `json:"unique_points"`
	GridCells         int      `json:"grid_cells"`
	GridSizeMeters    float64  `json:"grid_size_meters"`
	ExploredAreaKm2   float64  `json:"explored_area_km2"`
	EarthPercentage   float64  `json:"earth_percentage"`
	CalculationMethod string   `json:"calculation_method"`
	Files             []string `json:"files"`
}

// Builder assembles a TrackDataset from a directory tree of GPX files,
// one subdirectory per track type.
type Builder struct {
	cfg    *config.Config
	types  map[string]Style
	logger *zap.Logger
}

func NewBuilder(cfg *config.Config, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, types: DefaultTrackTypes, logger: logger}
}

// Build parses every configured track type, dedupes point layers,
// computes the exploration metrics from the road tracks and returns the
// assembled dataset. Track types whose directory is missing or empty
// still get a layer with empty collections.
func (b *Builder) Build(ctx context.Context) (*geo.TrackDataset, error) {
	ds := &geo.TrackDataset{
		Tracks:      make(map[string]*geo.TrackLayer, len(b.types)),
		GeneratedAt: time.Now().Format(time.RFC3339),
		Version:     DatasetVersion,
	}

	var allCoords []orb.Point
	var roadStats layerStats
	var roadPoints []orb.Point

	for _, trackType := range sortedTypes(b.types) {
		style := b.types[trackType]

		layer, stats, err := b.buildLayer(ctx, trackType, style)
		if err != nil {
			return nil, err
		}
		ds.Tracks[trackType] = layer

		for _, f := range layer.Points.Features {
			if p, ok := f.Geometry.(orb.Point); ok {
				allCoords = append(allCoords, p)
			}
		}
		for _, f := range layer.Lines.Features {
			if ls, ok := f.Geometry.(orb.LineString); ok {
				allCoords = append(allCoords, ls...)
			}
		}

		if trackType == "road" {
			roadStats = stats
			for _, f := range layer.Points.Features {
				if p, ok := f.Geometry.(orb.Point); ok {
					roadPoints = append(roadPoints, p)
				}
			}
		}

		b.logger.Info("track type processed",
			zap.String("track_type", trackType),
			zap.Int("files", len(stats.files)),
			zap.Int("points", layer.PointsCount),
			zap.Int("lines", layer.LinesCount))
	}

	if len(allCoords) > 0 {
		ds.Bounds = boundsOf(allCoords)
	}

	metricsJSON, err := json.Marshal(b.explorationMetrics(roadStats, roadPoints))
	if err != nil {
		return nil, fmt.Errorf("marshal metrics: %w", err)
	}
	ds.Metrics = metricsJSON

	return ds, nil
}

type layerStats struct {
	totalPoints int
	files       []string
}

// buildLayer parses one track type's GPX files in parallel and shapes
// the result into a layer. Per-file parse order is preserved so the cache
// output stays stable between runs.
func (b *Builder) buildLayer(ctx context.Context, trackType string, style Style) (*geo.TrackLayer, layerStats, error) {
	pattern := filepath.Join(b.cfg.GPXDir, trackType, "*.gpx")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, layerStats{}, fmt.Errorf("glob %s: %w", pattern, err)
	}
	sort.Strings(files)

	parsed := make([][]segment, len(files))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.ParseWorkers)

	for i, file := range files {
		i, file := i, file
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}
			segments, err := parseFile(file)
			if err != nil {
				return err
			}
			parsed[i] = segments
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, layerStats{}, err
	}

	var points []orb.Point
	var pointTimes []time.Time
	lines := geojson.NewFeatureCollection()

	for _, segments := range parsed {
		for _, seg := range segments {
			points = append(points, seg.points...)
			pointTimes = append(pointTimes, seg.times...)

			if len(seg.points) > 1 {
				line := fixDatelineCrossing(orb.LineString(seg.points))
				feat := geojson.NewFeature(line)
				feat.Properties["track_type"] = trackType
				if !seg.times[0].IsZero() {
					feat.Properties["start_time"] = seg.times[0].Format(time.RFC3339)
				}
				if last := seg.times[len(seg.times)-1]; !last.IsZero() {
					feat.Properties["end_time"] = last.Format(time.RFC3339)
				}
				lines.Append(feat)
			}
		}
	}

	stats := layerStats{totalPoints: len(points), files: baseNames(files)}

	pointFeatures := geojson.NewFeatureCollection()
	for _, i := range dedupeIndices(points, b.cfg.DedupeMinDistance) {
		feat := geojson.NewFeature(points[i])
		feat.Properties["track_type"] = trackType
		if !pointTimes[i].IsZero() {
			feat.Properties["timestamp"] = pointTimes[i].Format(time.RFC3339)
		}
		pointFeatures.Append(feat)
	}

	layer := &geo.TrackLayer{
		Color:       style.Color,
		DisplayType: style.DisplayType,
		Files:       stats.files,
		PointsCount: len(pointFeatures.Features),
		LinesCount:  len(lines.Features),
		Points:      pointFeatures,
		Lines:       lines,
	}

	return layer, stats, nil
}

func (b *Builder) explorationMetrics(stats layerStats, uniquePoints []orb.Point) ExplorationMetrics {
	cells := gridCellCount(uniquePoints, b.cfg.GridSizeMeters)
	areaM2 := float64(cells) * b.cfg.GridSizeMeters * b.cfg.GridSizeMeters

	return ExplorationMetrics{
		CalculationTime:   time.Now().Format(time.RFC3339),
		TotalFiles:        len(stats.files),
		TotalPoints:       stats.totalPoints,
		UniquePoints:      len(uniquePoints),
		GridCells:         cells,
		GridSizeMeters:    b.cfg.GridSizeMeters,
		ExploredAreaKm2:   round(areaM2/1e6, 6),
		EarthPercentage:   areaM2 / EarthSurfaceAreaM2 * 100,
		CalculationMethod: "grid_based",
		Files:             stats.files,
	}
}

func boundsOf(coords []orb.Point) *geo.Bounds {
	b := &geo.Bounds{
		West:  coords[0][0],
		East:  coords[0][0],
		South: coords[0][1],
		North: coords[0][1],
	}
	for _, p := range coords[1:] {
		b.West = math.Min(b.West, p[0])
		b.East = math.Max(b.East, p[0])
		b.South = math.Min(b.South, p[1])
		b.North = math.Max(b.North, p[1])
	}
	return b
}

func sortedTypes(types map[string]Style) []string {
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, p := range paths {
		names[i] = filepath.Base(p)
	}
	return names
}

func round(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
