// Package decode turns raw cache file buffers, plain or gzip-compressed,
// into track datasets.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/gpxtojson/trackworker/internal/geo"
)

// DecodeError reports a buffer that could not be turned into a dataset:
// a malformed or truncated gzip stream, invalid JSON, or JSON missing
// the tracks field.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode track data: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error { return e.Cause }

// Decode parses buf into a TrackDataset. When compressed is true the
// buffer is gunzipped first. Decode has no side effects; the same inputs
// always yield the same dataset.
func Decode(buf []byte, compressed bool) (*geo.TrackDataset, error) {
	raw := buf
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(buf))
		if err != nil {
			return nil, &DecodeError{Cause: fmt.Errorf("gzip header: %w", err)}
		}
		raw, err = io.ReadAll(zr)
		if err != nil {
			return nil, &DecodeError{Cause: fmt.Errorf("gzip stream: %w", err)}
		}
		if err := zr.Close(); err != nil {
			return nil, &DecodeError{Cause: fmt.Errorf("gzip checksum: %w", err)}
		}
	}

	var ds geo.TrackDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, &DecodeError{Cause: fmt.Errorf("parse JSON: %w", err)}
	}

	if ds.Tracks == nil {
		return nil, &DecodeError{Cause: fmt.Errorf("dataset has no tracks field")}
	}

	return &ds, nil
}
