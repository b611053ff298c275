package worker

import (
	"encoding/json"
	"fmt"

	"github.com/gpxtojson/trackworker/internal/geo"
)

// RequestType tags inbound messages.
type RequestType string

const (
	RequestProcessTrackData     RequestType = "PROCESS_TRACK_DATA"
	RequestFilterTracksByBounds RequestType = "FILTER_TRACKS_BY_BOUNDS"
)

// ResponseType tags outbound messages.
type ResponseType string

const (
	ResponseTrackDataProcessed ResponseType = "TRACK_DATA_PROCESSED"
	ResponseTracksFiltered     ResponseType = "TRACKS_FILTERED"
	ResponseError              ResponseType = "ERROR"
)

// ProcessPayload asks for a raw buffer to be decoded and optionally
// optimized.
type ProcessPayload struct {
	Buffer     []byte `json:"buffer"`
	Compressed bool   `json:"compressed"`
	Optimize   bool   `json:"optimize"`
}

// FilterPayload asks for an already-decoded dataset to be reduced to a
// viewport at a zoom level.
type FilterPayload struct {
	Dataset   *geo.TrackDataset `json:"dataset"`
	Bounds    *geo.Bounds       `json:"bounds"`
	ZoomLevel float64           `json:"zoomLevel"`
}

// Request is one unit of work for a worker. Exactly one of Process or
// Filter is set for a known Type; both stay nil for unknown types so the
// router can answer with a typed error instead of failing to parse.
//
// On the wire a request is the envelope {type, correlationId, payload}.
type Request struct {
	Type          RequestType
	CorrelationID string
	Process       *ProcessPayload
	Filter        *FilterPayload
}

type requestEnvelope struct {
	Type          RequestType     `json:"type"`
	CorrelationID string          `json:"correlationId"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var env requestEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	r.Type = env.Type
	r.CorrelationID = env.CorrelationID
	r.Process = nil
	r.Filter = nil

	switch env.Type {
	case RequestProcessTrackData:
		r.Process = &ProcessPayload{}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, r.Process); err != nil {
				return fmt.Errorf("process payload: %w", err)
			}
		}
	case RequestFilterTracksByBounds:
		r.Filter = &FilterPayload{}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, r.Filter); err != nil {
				return fmt.Errorf("filter payload: %w", err)
			}
		}
	}

	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	env := requestEnvelope{Type: r.Type, CorrelationID: r.CorrelationID}

	var payload any
	switch {
	case r.Process != nil:
		payload = r.Process
	case r.Filter != nil:
		payload = r.Filter
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}

// Response answers exactly one request, echoing its correlation id so
// callers can match replies delivered out of order.
type Response struct {
	Type          ResponseType      `json:"type"`
	CorrelationID string            `json:"correlationId"`
	Data          *geo.TrackDataset `json:"data,omitempty"`
	Error         string            `json:"error,omitempty"`
	Success       bool              `json:"success"`
}
