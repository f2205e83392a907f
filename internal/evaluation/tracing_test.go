package evaluation

import (
	"context"
	stderrors "errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ricesearch/rice-eval/internal/pkg/logger"
)

func TestEvaluator_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	queries, corpus, rel, emb := twoDocSetup(Embedding{0, 1}, Embedding{1, 0.1})
	e, err := New(queries, corpus, rel, testConfig(1), WithLogger(logger.Discard()), WithTracerProvider(tp))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := e.Run(context.Background(), emb, DefaultRunInfo()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	names := map[string]int{}
	var root sdktrace.ReadOnlySpan
	for _, s := range sr.Ended() {
		names[s.Name()]++
		if s.Name() == "evaluation.Run" {
			root = s
		}
	}
	if names["evaluation.Run"] != 1 || names["evaluation.embed"] != 2 || names["evaluation.score"] != 1 {
		t.Fatalf("spans = %v", names)
	}

	for _, s := range sr.Ended() {
		if s.Name() != "evaluation.Run" && s.Parent().SpanID() != root.SpanContext().SpanID() {
			t.Errorf("span %s is not a child of evaluation.Run", s.Name())
		}
	}
}

func TestEvaluator_SpanRecordsError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	queries, corpus, rel, _ := twoDocSetup(Embedding{0, 1}, Embedding{1, 0})
	e, err := New(queries, corpus, rel, testConfig(1), WithLogger(logger.Discard()), WithTracerProvider(tp))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	failing := EmbedderFunc(func(context.Context, []string, int) ([]Embedding, error) {
		return nil, stderrors.New("backend down")
	})
	if _, err := e.Run(context.Background(), failing, DefaultRunInfo()); err == nil {
		t.Fatal("Run() error = nil, want error")
	}

	for _, s := range sr.Ended() {
		if s.Status().Code != codes.Error {
			t.Errorf("span %s status = %v, want error", s.Name(), s.Status().Code)
		}
	}
}
