// Package viewport reduces track datasets to what a map viewport at a
// given zoom level actually needs to draw.
package viewport

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gpxtojson/trackworker/internal/geo"
)

// Filter applies viewport and zoom-based reduction to datasets. The zero
// value is not usable; construct with NewFilter.
type Filter struct {
	sampler Sampler
}

// NewFilter returns a filter drawing from sampler. A nil sampler falls
// back to a time-seeded one.
func NewFilter(sampler Sampler) *Filter {
	if sampler == nil {
		sampler = NewSampler()
	}
	return &Filter{sampler: sampler}
}

// SampleRate maps a zoom level to the probability of keeping an
// individual point feature. Zoomed far out, most points are redundant on
// screen.
func SampleRate(zoomLevel float64) float64 {
	switch {
	case zoomLevel < 4:
		return 0.1
	case zoomLevel < 6:
		return 0.3
	default:
		return 1.0
	}
}

// Apply returns a new dataset containing only features visible within
// bounds, with point layers additionally thinned by the zoom-derived
// sample rate. A nil bounds means no viewport is active and the input
// dataset is returned as-is.
//
// Point features are kept when inside bounds and when an independent
// random draw passes the sample rate. Line features are kept when any
// vertex falls inside bounds and are never sampled. Every track-type key
// of the input appears in the output, declared counts included, even
// when a filtered collection ends up empty.
func (f *Filter) Apply(ds *geo.TrackDataset, bounds *geo.Bounds, zoomLevel float64) *geo.TrackDataset {
	if bounds == nil {
		return ds
	}

	rate := SampleRate(zoomLevel)
	out := ds.ShallowCopy()

	for trackType, layer := range ds.Tracks {
		filtered := &geo.TrackLayer{
			Color:       layer.Color,
			DisplayType: layer.DisplayType,
			Files:       layer.Files,
			PointsCount: layer.PointsCount,
			LinesCount:  layer.LinesCount,
		}

		if layer.Points != nil {
			filtered.Points = f.filterPoints(layer.Points, *bounds, rate)
		}
		if layer.Lines != nil {
			filtered.Lines = filterLines(layer.Lines, *bounds)
		}

		out.Tracks[trackType] = filtered
	}

	return out
}

func (f *Filter) filterPoints(fc *geojson.FeatureCollection, bounds geo.Bounds, rate float64) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, feat := range fc.Features {
		point, ok := feat.Geometry.(orb.Point)
		if !ok {
			continue
		}
		if bounds.Contains(point) && f.sampler.Draw() < rate {
			out.Append(feat)
		}
	}
	return out
}

func filterLines(fc *geojson.FeatureCollection, bounds geo.Bounds) *geojson.FeatureCollection {
	out := geojson.NewFeatureCollection()
	for _, feat := range fc.Features {
		line, ok := feat.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		if bounds.ContainsAny(line) {
			out.Append(feat)
		}
	}
	return out
}
