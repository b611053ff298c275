// Package geo defines the track dataset model shared by every pipeline
// stage: decode, optimize, viewport filtering and the preprocessing tool.
package geo

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Display types a track layer can declare. They drive which feature
// collection the renderer reads; the pipeline never changes them.
const (
	DisplayPoints = "points"
	DisplayLines  = "lines"
)

// TrackDataset is the root record produced by the preprocessing tool and
// consumed by the worker. Metrics is pass-through and never interpreted
// here.
type TrackDataset struct {
	Metrics     json.RawMessage        `json:"metrics,omitempty"`
	Tracks      map[string]*TrackLayer `json:"tracks"`
	Bounds      *Bounds                `json:"bounds,omitempty"`
	GeneratedAt string                 `json:"generated_at,omitempty"`
	Version     string                 `json:"version,omitempty"`
}

// ShallowCopy returns a new dataset carrying the same metadata but an
// empty track map. Stages that transform layers fill the map themselves
// so the input dataset is never mutated.
func (d *TrackDataset) ShallowCopy() *TrackDataset {
	return &TrackDataset{
		Metrics:     d.Metrics,
		Tracks:      make(map[string]*TrackLayer, len(d.Tracks)),
		Bounds:      d.Bounds,
		GeneratedAt: d.GeneratedAt,
		Version:     d.Version,
	}
}

// TrackLayer holds one track-type's renderable content. PointsCount and
// LinesCount are declared upper bounds from preprocessing; filtering may
// leave fewer features without updating them.
type TrackLayer struct {
	Color       string                     `json:"color"`
	DisplayType string                     `json:"display_type"`
	Files       []string                   `json:"files,omitempty"`
	PointsCount int                        `json:"points_count"`
	LinesCount  int                        `json:"lines_count"`
	Points      *geojson.FeatureCollection `json:"points,omitempty"`
	Lines       *geojson.FeatureCollection `json:"lines,omitempty"`
}

// Bounds is an axis-aligned viewport rectangle in degrees.
type Bounds struct {
	West  float64 `json:"west"`
	East  float64 `json:"east"`
	South float64 `json:"south"`
	North float64 `json:"north"`
}

// Contains reports whether the point lies inside the rectangle,
// inclusive on all four edges. West is assumed <= east; rectangles that
// wrap the antimeridian are not recognised.
func (b Bounds) Contains(p orb.Point) bool {
	return b.West <= p[0] && p[0] <= b.East && b.South <= p[1] && p[1] <= b.North
}

// ContainsAny reports whether at least one vertex of the line lies
// inside the rectangle.
func (b Bounds) ContainsAny(ls orb.LineString) bool {
	for _, p := range ls {
		if b.Contains(p) {
			return true
		}
	}
	return false
}

// Bound converts to an orb.Bound for callers that interoperate with orb
// geometry helpers.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}
