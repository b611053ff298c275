package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/gpxtojson/trackworker/internal/config"
	"github.com/gpxtojson/trackworker/internal/geo"
)

// Cache output formats.
const (
	FormatJSON = "json"
	FormatGzip = "gzip"
)

const (
	manifestName = "data_config.json"
	cacheBase    = "tracks_data"
)

// Manifest is the contract between the preprocessing output and the
// worker's caller: it says whether the dataset is one document or a set
// of chunks, and how each file is encoded. Every chunk decodes
// independently.
type Manifest struct {
	DataType    string   `json:"data_type"`
	SingleFile  string   `json:"single_file,omitempty"`
	Chunks      []string `json:"chunks,omitempty"`
	Format      string   `json:"format"`
	TotalChunks int      `json:"total_chunks,omitempty"`
	TotalSizeMB float64  `json:"total_size_mb"`
	GeneratedAt string   `json:"generated_at,omitempty"`
}

// Writer persists a dataset to the cache directory, splitting it into
// per-track-type chunks when the serialized size exceeds the configured
// limit.
type Writer struct {
	cfg    *config.Config
	logger *zap.Logger
}

func NewWriter(cfg *config.Config, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{cfg: cfg, logger: logger}
}

// WriteCache writes the dataset plus its manifest and returns the
// manifest. Size accounting uses the uncompressed JSON size, so the
// single/chunked decision does not depend on the output format.
func (w *Writer) WriteCache(ds *geo.TrackDataset) (*Manifest, error) {
	if err := os.MkdirAll(w.cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	full, err := json.Marshal(ds)
	if err != nil {
		return nil, fmt.Errorf("marshal dataset: %w", err)
	}

	manifest := &Manifest{
		Format:      w.cfg.OutputFormat,
		TotalSizeMB: float64(len(full)) / 1024 / 1024,
		GeneratedAt: ds.GeneratedAt,
	}

	if len(full) <= w.cfg.MaxChunkBytes {
		name := cacheBase + w.ext()
		if err := w.writeFile(name, full); err != nil {
			return nil, err
		}
		manifest.DataType = "single"
		manifest.SingleFile = name

		w.logger.Info("cache written as single file",
			zap.String("file", name),
			zap.Float64("size_mb", manifest.TotalSizeMB))
	} else {
		if err := w.writeChunks(ds, manifest); err != nil {
			return nil, err
		}
	}

	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	manifestPath := filepath.Join(w.cfg.CacheDir, manifestName)
	if err := os.WriteFile(manifestPath, manifestJSON, 0o644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	return manifest, nil
}

// writeChunks emits one file per track type, each a complete dataset
// restricted to that single track so the worker can decode chunks in any
// order and merge layer maps caller-side.
func (w *Writer) writeChunks(ds *geo.TrackDataset, manifest *Manifest) error {
	trackTypes := make([]string, 0, len(ds.Tracks))
	for name := range ds.Tracks {
		trackTypes = append(trackTypes, name)
	}
	sort.Strings(trackTypes)

	for i, trackType := range trackTypes {
		chunk := ds.ShallowCopy()
		chunk.Tracks[trackType] = ds.Tracks[trackType]

		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("marshal chunk %s: %w", trackType, err)
		}

		name := fmt.Sprintf("%s_chunk_%d_%s%s", cacheBase, i, trackType, w.ext())
		if err := w.writeFile(name, data); err != nil {
			return err
		}
		manifest.Chunks = append(manifest.Chunks, name)

		w.logger.Info("cache chunk written",
			zap.String("file", name),
			zap.String("track_type", trackType),
			zap.Float64("size_mb", float64(len(data))/1024/1024))
	}

	manifest.DataType = "chunked"
	manifest.TotalChunks = len(manifest.Chunks)
	return nil
}

func (w *Writer) writeFile(name string, data []byte) error {
	path := filepath.Join(w.cfg.CacheDir, name)

	if w.cfg.OutputFormat == FormatGzip {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		zw := gzip.NewWriter(f)
		if _, err := zw.Write(data); err != nil {
			f.Close()
			return fmt.Errorf("compress %s: %w", path, err)
		}
		if err := zw.Close(); err != nil {
			f.Close()
			return fmt.Errorf("flush %s: %w", path, err)
		}
		return f.Close()
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (w *Writer) ext() string {
	if w.cfg.OutputFormat == FormatGzip {
		return ".json.gz"
	}
	return ".json"
}
