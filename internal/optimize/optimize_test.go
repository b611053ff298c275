package optimize

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gpxtojson/trackworker/internal/geo"
)

func fatDataset() *geo.TrackDataset {
	points := geojson.NewFeatureCollection()
	p := geojson.NewFeature(orb.Point{10, 20})
	p.Properties["timestamp"] = "2024-06-01T10:00:00Z"
	p.Properties["track_type"] = "road"
	p.Properties["elevation"] = 312.5
	points.Append(p)

	bare := geojson.NewFeature(orb.Point{11, 21})
	points.Append(bare)

	lines := geojson.NewFeatureCollection()
	l := geojson.NewFeature(orb.LineString{{0, 0}, {5, 5}})
	l.Properties["start_time"] = "2024-06-01T10:00:00Z"
	l.Properties["end_time"] = "2024-06-01T11:00:00Z"
	l.Properties["track_type"] = "train"
	lines.Append(l)

	return &geo.TrackDataset{
		Metrics: json.RawMessage(`{"total_points":3}`),
		Tracks: map[string]*geo.TrackLayer{
			"road": {
				Color:       "#ef4444",
				DisplayType: geo.DisplayPoints,
				Files:       []string{"a.gpx"},
				PointsCount: 2,
				LinesCount:  0,
				Points:      points,
			},
			"train": {
				Color:       "#10b981",
				DisplayType: geo.DisplayLines,
				PointsCount: 0,
				LinesCount:  1,
				Lines:       lines,
			},
		},
		Bounds:      &geo.Bounds{West: 0, East: 11, South: 0, North: 21},
		GeneratedAt: "2024-06-01T12:00:00Z",
		Version:     "2.2",
	}
}

// TestOptimizeFieldReduction checks that point features keep at most
// coordinates plus timestamp, and line features at most coordinates plus
// start_time/end_time.
func TestOptimizeFieldReduction(t *testing.T) {
	out := Optimize(fatDataset())

	road := out.Tracks["road"]
	if road == nil || road.Points == nil {
		t.Fatal("road layer missing after optimize")
	}

	first := road.Points.Features[0]
	if got := first.Geometry.(orb.Point); got != (orb.Point{10, 20}) {
		t.Errorf("coordinates changed: %v", got)
	}
	if len(first.Properties) != 1 || first.Properties["timestamp"] != "2024-06-01T10:00:00Z" {
		t.Errorf("point properties = %v, want only timestamp", first.Properties)
	}

	second := road.Points.Features[1]
	if second.Properties == nil || len(second.Properties) != 0 {
		t.Errorf("bare point properties = %v, want empty object", second.Properties)
	}

	train := out.Tracks["train"]
	line := train.Lines.Features[0]
	if len(line.Properties) != 2 {
		t.Errorf("line properties = %v, want start_time and end_time only", line.Properties)
	}
	if line.Properties["start_time"] != "2024-06-01T10:00:00Z" || line.Properties["end_time"] != "2024-06-01T11:00:00Z" {
		t.Errorf("line timing properties wrong: %v", line.Properties)
	}

	if road.Files != nil {
		t.Errorf("files survived optimize: %v", road.Files)
	}
}

// TestOptimizeMetadataPassThrough verifies the dataset-level fields and
// layer counters survive untouched.
func TestOptimizeMetadataPassThrough(t *testing.T) {
	in := fatDataset()
	out := Optimize(in)

	if string(out.Metrics) != string(in.Metrics) {
		t.Errorf("metrics changed: %s", out.Metrics)
	}
	if out.Bounds != in.Bounds || out.GeneratedAt != in.GeneratedAt || out.Version != in.Version {
		t.Error("dataset metadata changed")
	}
	road := out.Tracks["road"]
	if road.Color != "#ef4444" || road.DisplayType != geo.DisplayPoints || road.PointsCount != 2 || road.LinesCount != 0 {
		t.Errorf("layer metadata changed: %+v", road)
	}
}

// TestOptimizeIdempotent feeds the optimizer its own output; the second
// pass must be a no-op.
func TestOptimizeIdempotent(t *testing.T) {
	once := Optimize(fatDataset())
	twice := Optimize(once)

	a, err := json.Marshal(once)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(twice)
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Errorf("optimize is not idempotent:\n once: %s\ntwice: %s", a, b)
	}
}

// TestOptimizeLeavesInputUntouched guards the copy-not-mutate contract:
// a caller may keep using the pre-optimize dataset.
func TestOptimizeLeavesInputUntouched(t *testing.T) {
	in := fatDataset()
	before, _ := json.Marshal(in)

	Optimize(in)

	after, _ := json.Marshal(in)
	if string(before) != string(after) {
		t.Error("optimize mutated its input")
	}
}

// TestOptimizeLayerKeyPreservation ensures no track type is dropped or
// invented.
func TestOptimizeLayerKeyPreservation(t *testing.T) {
	in := fatDataset()
	out := Optimize(in)

	inKeys := make(map[string]bool)
	for k := range in.Tracks {
		inKeys[k] = true
	}
	outKeys := make(map[string]bool)
	for k := range out.Tracks {
		outKeys[k] = true
	}
	if !reflect.DeepEqual(inKeys, outKeys) {
		t.Errorf("track keys changed: in %v, out %v", inKeys, outKeys)
	}
}
