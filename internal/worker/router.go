package worker

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gpxtojson/trackworker/internal/decode"
	"github.com/gpxtojson/trackworker/internal/geo"
	"github.com/gpxtojson/trackworker/internal/metrics"
	"github.com/gpxtojson/trackworker/internal/optimize"
	"github.com/gpxtojson/trackworker/internal/viewport"
)

// Router dispatches one request through the pipeline stages and builds
// the response. It keeps no state between requests; every request is
// handled independently.
type Router struct {
	filter *viewport.Filter
	logger *zap.Logger
}

// NewRouter builds a router drawing point samples from sampler (nil for
// time-seeded).
func NewRouter(sampler viewport.Sampler, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		filter: viewport.NewFilter(sampler),
		logger: logger,
	}
}

// Handle processes a single request and always returns a response
// carrying the request's correlation id. Stage errors and panics are
// converted into an ERROR response; nothing escapes to the caller's
// goroutine.
func (r *Router) Handle(req Request) (resp Response) {
	start := time.Now()
	metrics.RequestsTotal.WithLabelValues(string(req.Type)).Inc()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("request handler panicked",
				zap.String("type", string(req.Type)),
				zap.String("correlation_id", req.CorrelationID),
				zap.Any("panic", rec))
			resp = r.failure(req.CorrelationID, fmt.Sprintf("internal error: %v", rec))
		}
		metrics.RequestDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	}()

	switch req.Type {
	case RequestProcessTrackData:
		return r.handleProcess(req)
	case RequestFilterTracksByBounds:
		return r.handleFilter(req)
	default:
		return r.failure(req.CorrelationID, fmt.Sprintf("unknown message type: %s", req.Type))
	}
}

func (r *Router) handleProcess(req Request) Response {
	if req.Process == nil {
		return r.failure(req.CorrelationID, "process request has no payload")
	}

	ds, err := decode.Decode(req.Process.Buffer, req.Process.Compressed)
	if err != nil {
		return r.failure(req.CorrelationID, err.Error())
	}
	metrics.DecodedBytesTotal.Add(float64(len(req.Process.Buffer)))

	if req.Process.Optimize {
		ds = optimize.Optimize(ds)
	}

	r.logger.Debug("track data processed",
		zap.String("correlation_id", req.CorrelationID),
		zap.Int("buffer_bytes", len(req.Process.Buffer)),
		zap.Int("track_types", len(ds.Tracks)),
		zap.Bool("optimized", req.Process.Optimize))

	return Response{
		Type:          ResponseTrackDataProcessed,
		CorrelationID: req.CorrelationID,
		Data:          ds,
		Success:       true,
	}
}

func (r *Router) handleFilter(req Request) Response {
	if req.Filter == nil {
		return r.failure(req.CorrelationID, "filter request has no payload")
	}
	if req.Filter.Dataset == nil {
		return r.failure(req.CorrelationID, "filter request has no dataset")
	}

	ds := r.filter.Apply(req.Filter.Dataset, req.Filter.Bounds, req.Filter.ZoomLevel)
	metrics.FeaturesRetained.Observe(float64(countFeatures(ds)))

	r.logger.Debug("tracks filtered",
		zap.String("correlation_id", req.CorrelationID),
		zap.Float64("zoom_level", req.Filter.ZoomLevel),
		zap.Bool("bounded", req.Filter.Bounds != nil))

	return Response{
		Type:          ResponseTracksFiltered,
		CorrelationID: req.CorrelationID,
		Data:          ds,
		Success:       true,
	}
}

func (r *Router) failure(correlationID, msg string) Response {
	metrics.RequestFailuresTotal.Inc()
	r.logger.Warn("request failed",
		zap.String("correlation_id", correlationID),
		zap.String("error", msg))
	return Response{
		Type:          ResponseError,
		CorrelationID: correlationID,
		Error:         msg,
		Success:       false,
	}
}

func countFeatures(ds *geo.TrackDataset) int {
	total := 0
	for _, layer := range ds.Tracks {
		if layer.Points != nil {
			total += len(layer.Points.Features)
		}
		if layer.Lines != nil {
			total += len(layer.Lines.Features)
		}
	}
	return total
}
