package bus

import (
	"context"
	"encoding/json"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	rcontext "github.com/ricesearch/rice-eval/internal/pkg/context"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// DecodeResult extracts the evaluation result carried by an evaluation.completed event.
// Events read back from Kafka hold the payload as generic JSON, so it is re-encoded.
func DecodeResult(event Event) (*evaluation.Result, error) {
	if event.Type != EventEvaluationCompleted {
		return nil, errors.ValidationError("unexpected event type").WithDetail("type", event.Type)
	}
	if r, ok := event.Payload.(*evaluation.Result); ok {
		return r, nil
	}

	raw, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "encoding event payload", err)
	}
	var r evaluation.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "decoding evaluation result", err)
	}
	return &r, nil
}

// Forward subscribes to topic and hands every published result to sinks.
func Forward(ctx context.Context, b Bus, topic string, sinks ...evaluation.ReportSink) error {
	if topic == "" {
		topic = TopicEvaluationCompleted
	}
	return b.Subscribe(ctx, topic, ResultHandler(sinks...))
}

// ResultHandler decodes evaluation.completed events and writes them to sinks, in order.
// The event's correlation id becomes the run id of the sink context.
func ResultHandler(sinks ...evaluation.ReportSink) Handler {
	return func(ctx context.Context, event Event) error {
		r, err := DecodeResult(event)
		if err != nil {
			return err
		}
		if event.CorrelationID != "" {
			ctx = rcontext.WithRunID(ctx, event.CorrelationID)
		}
		for _, sink := range sinks {
			if err := sink.WriteReport(ctx, r); err != nil {
				return err
			}
		}
		return nil
	}
}
