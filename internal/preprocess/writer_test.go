package preprocess

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/gpxtojson/trackworker/internal/decode"
	"github.com/gpxtojson/trackworker/internal/geo"
)

func writerDataset() *geo.TrackDataset {
	roadPoints := geojson.NewFeatureCollection()
	roadPoints.Append(geojson.NewFeature(orb.Point{10, 10}))

	trainLines := geojson.NewFeatureCollection()
	trainLines.Append(geojson.NewFeature(orb.LineString{{0, 0}, {1, 1}}))

	return &geo.TrackDataset{
		Metrics: json.RawMessage(`{"unique_points":1}`),
		Tracks: map[string]*geo.TrackLayer{
			"road":  {Color: "#ef4444", DisplayType: geo.DisplayPoints, PointsCount: 1, Points: roadPoints, Lines: geojson.NewFeatureCollection()},
			"train": {Color: "#10b981", DisplayType: geo.DisplayLines, LinesCount: 1, Points: geojson.NewFeatureCollection(), Lines: trainLines},
		},
		Bounds:      &geo.Bounds{West: 0, East: 10, South: 0, North: 10},
		GeneratedAt: "2024-06-01T12:00:00Z",
		Version:     DatasetVersion,
	}
}

func readManifest(t *testing.T, dir string) Manifest {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return m
}

// TestWriteCacheSingle: a dataset under the chunk limit lands in one
// file, and that file decodes back through the worker's decoder.
func TestWriteCacheSingle(t *testing.T) {
	cfg := testConfig(t)
	ds := writerDataset()

	manifest, err := NewWriter(cfg, zap.NewNop()).WriteCache(ds)
	if err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	if manifest.DataType != "single" || manifest.SingleFile != "tracks_data.json" {
		t.Fatalf("manifest = %+v", manifest)
	}
	if manifest.Format != FormatJSON || manifest.TotalChunks != 0 || manifest.TotalSizeMB <= 0 {
		t.Errorf("manifest = %+v", manifest)
	}

	onDisk := readManifest(t, cfg.CacheDir)
	if onDisk.DataType != "single" || onDisk.SingleFile != manifest.SingleFile {
		t.Errorf("manifest on disk = %+v", onDisk)
	}

	buf, err := os.ReadFile(filepath.Join(cfg.CacheDir, manifest.SingleFile))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decode.Decode(buf, false)
	if err != nil {
		t.Fatalf("written cache does not decode: %v", err)
	}
	if len(decoded.Tracks) != 2 {
		t.Errorf("decoded %d layers, want 2", len(decoded.Tracks))
	}
}

// TestWriteCacheGzip round-trips the compressed format through the
// decoder with compressed=true.
func TestWriteCacheGzip(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputFormat = FormatGzip

	manifest, err := NewWriter(cfg, zap.NewNop()).WriteCache(writerDataset())
	if err != nil {
		t.Fatalf("WriteCache: %v", err)
	}
	if manifest.Format != FormatGzip || manifest.SingleFile != "tracks_data.json.gz" {
		t.Fatalf("manifest = %+v", manifest)
	}

	buf, err := os.ReadFile(filepath.Join(cfg.CacheDir, manifest.SingleFile))
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := decode.Decode(buf, true)
	if err != nil {
		t.Fatalf("gzip cache does not decode: %v", err)
	}
	if decoded.Tracks["road"].PointsCount != 1 {
		t.Errorf("decoded road layer = %+v", decoded.Tracks["road"])
	}
}

// TestWriteCacheChunked: over the limit, one chunk per track type, each
// independently decodable and carrying the shared metadata.
func TestWriteCacheChunked(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxChunkBytes = 64 // force chunking

	manifest, err := NewWriter(cfg, zap.NewNop()).WriteCache(writerDataset())
	if err != nil {
		t.Fatalf("WriteCache: %v", err)
	}

	if manifest.DataType != "chunked" || manifest.SingleFile != "" {
		t.Fatalf("manifest = %+v", manifest)
	}
	if manifest.TotalChunks != 2 || len(manifest.Chunks) != 2 {
		t.Fatalf("chunks = %v", manifest.Chunks)
	}
	// Chunk order follows sorted track types.
	if manifest.Chunks[0] != "tracks_data_chunk_0_road.json" || manifest.Chunks[1] != "tracks_data_chunk_1_train.json" {
		t.Errorf("chunk names = %v", manifest.Chunks)
	}

	for _, name := range manifest.Chunks {
		buf, err := os.ReadFile(filepath.Join(cfg.CacheDir, name))
		if err != nil {
			t.Fatal(err)
		}
		chunk, err := decode.Decode(buf, false)
		if err != nil {
			t.Fatalf("chunk %s does not decode: %v", name, err)
		}
		if len(chunk.Tracks) != 1 {
			t.Errorf("chunk %s has %d layers, want 1", name, len(chunk.Tracks))
		}
		if chunk.GeneratedAt != "2024-06-01T12:00:00Z" || chunk.Bounds == nil || len(chunk.Metrics) == 0 {
			t.Errorf("chunk %s lost shared metadata", name)
		}
	}
}
