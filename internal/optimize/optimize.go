// Package optimize strips track datasets down to the fields the map
// renderer actually reads, cutting payload size before hand-off.
package optimize

import (
	"github.com/paulmach/orb/geojson"

	"github.com/gpxtojson/trackworker/internal/geo"
)

// Optimize returns a new dataset whose layers keep only color, display
// type and declared counts, and whose features keep only coordinates
// plus the timing properties. The input is left untouched, so callers
// can hold on to the full dataset. Optimize assumes the dataset exposes
// a tracks map; Decode guarantees that for anything it produced.
//
// Applying Optimize to its own output yields an equal dataset.
func Optimize(ds *geo.TrackDataset) *geo.TrackDataset {
	out := ds.ShallowCopy()

	for trackType, layer := range ds.Tracks {
		reduced := &geo.TrackLayer{
			Color:       layer.Color,
			DisplayType: layer.DisplayType,
			PointsCount: layer.PointsCount,
			LinesCount:  layer.LinesCount,
		}

		if layer.Points != nil {
			reduced.Points = reduceCollection(layer.Points, "timestamp")
		}
		if layer.Lines != nil {
			reduced.Lines = reduceCollection(layer.Lines, "start_time", "end_time")
		}

		out.Tracks[trackType] = reduced
	}

	return out
}

// reduceCollection rebuilds a feature collection keeping geometry and
// only the named properties. Feature order is preserved.
func reduceCollection(fc *geojson.FeatureCollection, keep ...string) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		reduced := geojson.NewFeature(f.Geometry)
		for _, key := range keep {
			if v, ok := f.Properties[key]; ok {
				reduced.Properties[key] = v
			}
		}
		out.Append(reduced)
	}
	return out
}
