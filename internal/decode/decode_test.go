package decode

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/gpxtojson/trackworker/internal/geo"
)

func sampleDataset() *geo.TrackDataset {
	points := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{10.5, 20.25})
	f.Properties["timestamp"] = "2024-06-01T10:00:00Z"
	points.Append(f)

	lines := geojson.NewFeatureCollection()
	lf := geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}, {2, 0.5}})
	lf.Properties["start_time"] = "2024-06-01T10:00:00Z"
	lf.Properties["end_time"] = "2024-06-01T11:00:00Z"
	lines.Append(lf)

	return &geo.TrackDataset{
		Metrics: json.RawMessage(`{"unique_points":1}`),
		Tracks: map[string]*geo.TrackLayer{
			"road": {
				Color:       "#ef4444",
				DisplayType: geo.DisplayPoints,
				PointsCount: 1,
				LinesCount:  1,
				Points:      points,
				Lines:       lines,
			},
		},
		Bounds:      &geo.Bounds{West: 0, East: 10.5, South: 0, North: 20.25},
		GeneratedAt: "2024-06-01T12:00:00Z",
		Version:     "2.2",
	}
}

// TestDecodeRoundTrip serializes a dataset to plain JSON and decodes it
// back; re-serializing the result must reproduce the original bytes.
func TestDecodeRoundTrip(t *testing.T) {
	original := sampleDataset()
	buf, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	ds, err := Decode(buf, false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	again, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(buf, again) {
		t.Errorf("round trip changed dataset:\n in: %s\nout: %s", buf, again)
	}
}

// TestDecodeGzipRoundTrip compresses the serialized dataset and decodes
// with compressed=true.
func TestDecodeGzipRoundTrip(t *testing.T) {
	original := sampleDataset()
	buf, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(buf); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	ds, err := Decode(compressed.Bytes(), true)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	again, err := json.Marshal(ds)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	if !bytes.Equal(buf, again) {
		t.Errorf("gzip round trip changed dataset")
	}
}

func TestDecodeErrors(t *testing.T) {
	validGzip := func() []byte {
		var b bytes.Buffer
		zw := gzip.NewWriter(&b)
		zw.Write([]byte(`{"tracks":{}}`))
		zw.Close()
		return b.Bytes()
	}()

	tests := []struct {
		name       string
		buf        []byte
		compressed bool
		wantSubstr string
	}{
		{"not gzip", []byte("plain text"), true, "gzip"},
		{"truncated gzip", validGzip[:len(validGzip)-6], true, "gzip"},
		{"invalid json", []byte("{nope"), false, "JSON"},
		{"missing tracks", []byte(`{"bounds":null}`), false, "tracks"},
		{"null tracks", []byte(`{"tracks":null}`), false, "tracks"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.buf, tc.compressed)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tc.wantSubstr) {
				t.Errorf("error %q does not mention %q", err, tc.wantSubstr)
			}
		})
	}
}

// TestDecodeEmptyTracks accepts a dataset whose tracks map is present
// but empty; missing layers are a preprocessing concern, not a decode
// failure.
func TestDecodeEmptyTracks(t *testing.T) {
	ds, err := Decode([]byte(`{"tracks":{}}`), false)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(ds.Tracks) != 0 {
		t.Errorf("expected empty tracks, got %d", len(ds.Tracks))
	}
}
