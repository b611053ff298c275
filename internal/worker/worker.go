// Package worker exposes the track pipeline across a message boundary.
// A Worker owns an in-process pub/sub pair of topics; callers publish
// typed requests and read typed responses matched by correlation id.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gpxtojson/trackworker/internal/config"
	"github.com/gpxtojson/trackworker/internal/metrics"
)

// Topics of the in-process boundary. Requests and responses share one
// GoChannel pub/sub, so no memory is shared with the caller beyond the
// messages themselves.
const (
	TopicRequests  = "trackworker.requests"
	TopicResponses = "trackworker.responses"
)

// Worker runs the pipeline behind a GoChannel message boundary. One
// worker handles requests sequentially; a caller wanting more throughput
// starts more workers, each with its own pub/sub, and keeps correlation
// ids unique across them.
type Worker struct {
	router   *Router
	pubSub   *gochannel.GoChannel
	wmRouter *message.Router
	logger   *zap.Logger
}

// New wires router behind a fresh GoChannel boundary sized from cfg.
func New(cfg *config.Config, router *Router, logger *zap.Logger) (*Worker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.ChannelBuffer),
	}, watermill.NopLogger{})

	wmRouter, err := message.NewRouter(message.RouterConfig{}, watermill.NopLogger{})
	if err != nil {
		return nil, fmt.Errorf("create message router: %w", err)
	}

	w := &Worker{
		router:   router,
		pubSub:   pubSub,
		wmRouter: wmRouter,
		logger:   logger,
	}

	wmRouter.AddHandler("track-pipeline", TopicRequests, pubSub, TopicResponses, pubSub, w.handleMessage)

	return w, nil
}

// Run processes requests until ctx is cancelled. It blocks; run it on
// its own goroutine and wait on Running before submitting.
func (w *Worker) Run(ctx context.Context) error {
	return w.wmRouter.Run(ctx)
}

// Running is closed once the worker consumes from the request topic.
func (w *Worker) Running() chan struct{} {
	return w.wmRouter.Running()
}

// Close tears the boundary down. In-flight requests are finished first;
// there is no way to abort an accepted request.
func (w *Worker) Close() error {
	if err := w.wmRouter.Close(); err != nil {
		return err
	}
	return w.pubSub.Close()
}

// Submit publishes one request. A blank correlation id is replaced with
// a fresh UUID so every response stays matchable.
func (w *Worker) Submit(req Request) error {
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	middleware.SetCorrelationID(req.CorrelationID, msg)

	metrics.InFlightRequests.Inc()
	return w.pubSub.Publish(TopicRequests, msg)
}

// Responses subscribes to the response topic. Subscribe before the first
// Submit; the GoChannel drops messages published with no subscriber.
// Responses arrive in completion order, not submission order.
func (w *Worker) Responses(ctx context.Context) (<-chan Response, error) {
	msgs, err := w.pubSub.Subscribe(ctx, TopicResponses)
	if err != nil {
		return nil, fmt.Errorf("subscribe responses: %w", err)
	}

	out := make(chan Response)
	go func() {
		defer close(out)
		for msg := range msgs {
			var resp Response
			if err := json.Unmarshal(msg.Payload, &resp); err != nil {
				w.logger.Error("undecodable response dropped", zap.Error(err))
				msg.Ack()
				continue
			}
			msg.Ack()

			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// handleMessage adapts one pub/sub message to the request router. It
// never returns an error: anything unprocessable becomes an ERROR
// response so the worker keeps serving.
func (w *Worker) handleMessage(msg *message.Message) ([]*message.Message, error) {
	defer metrics.InFlightRequests.Dec()

	var resp Response

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		resp = Response{
			Type:          ResponseError,
			CorrelationID: middleware.MessageCorrelationID(msg),
			Error:         fmt.Sprintf("malformed request: %v", err),
			Success:       false,
		}
		metrics.RequestFailuresTotal.Inc()
	} else {
		if req.CorrelationID == "" {
			req.CorrelationID = middleware.MessageCorrelationID(msg)
		}
		resp = w.router.Handle(req)
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		// Response datasets are plain data and always marshal; if one
		// somehow does not, answer with the error instead of going
		// silent.
		w.logger.Error("marshal response failed", zap.Error(err),
			zap.String("correlation_id", resp.CorrelationID))
		payload, _ = json.Marshal(Response{
			Type:          ResponseError,
			CorrelationID: resp.CorrelationID,
			Error:         fmt.Sprintf("marshal response: %v", err),
			Success:       false,
		})
	}

	out := message.NewMessage(watermill.NewUUID(), payload)
	middleware.SetCorrelationID(resp.CorrelationID, out)

	return []*message.Message{out}, nil
}
