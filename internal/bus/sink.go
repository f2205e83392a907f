package bus

import (
	"context"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/observability"
	rcontext "github.com/ricesearch/rice-eval/internal/pkg/context"
)

// Sink publishes completed evaluations to a bus.
type Sink struct {
	bus   Bus
	topic string
}

// NewSink creates a sink publishing on topic, or TopicEvaluationCompleted when empty.
func NewSink(b Bus, topic string) *Sink {
	if topic == "" {
		topic = TopicEvaluationCompleted
	}
	return &Sink{bus: b, topic: topic}
}

var _ evaluation.ReportSink = (*Sink)(nil)

// WriteReport implements evaluation.ReportSink.
func (s *Sink) WriteReport(ctx context.Context, r *evaluation.Result) error {
	event := NewEvent(EventEvaluationCompleted, Source, r)
	event.CorrelationID = rcontext.GetRunID(ctx)

	carrier := make(map[string]string)
	observability.InjectContext(ctx, carrier)
	if len(carrier) > 0 {
		event.Trace = carrier
	}
	return s.bus.Publish(ctx, s.topic, event)
}
