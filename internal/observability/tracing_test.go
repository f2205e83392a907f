package observability

import (
	"context"
	stderrors "errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_NoEndpoint(t *testing.T) {
	provider, shutdown, err := Setup(context.Background(), TraceConfig{ServiceName: "test"})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	if provider == nil {
		t.Fatal("Setup() returned nil provider")
	}
	if _, ok := provider.(*sdktrace.TracerProvider); ok {
		t.Error("expected the global provider without an endpoint")
	}
}

func TestRecordError(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil)
	RecordError(span, stderrors.New("boom"))
	span.End()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error || spans[0].Status().Description != "boom" {
		t.Errorf("status = %+v, want error boom", spans[0].Status())
	}
	if len(spans[0].Events()) != 1 {
		t.Errorf("got %d events, want 1 exception event", len(spans[0].Events()))
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{0, sdktrace.AlwaysSample().Description()},
		{1, sdktrace.AlwaysSample().Description()},
		{0.25, sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description()},
	}
	for _, tt := range tests {
		if got := sampler(tt.rate).Description(); got != tt.want {
			t.Errorf("sampler(%v) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestAttrs(t *testing.T) {
	got := Attrs("name", "dev", "queries", 3, "score", 0.5, "ok", true, 42, "skipped", "k", []int{1})
	want := []attribute.KeyValue{
		attribute.String("name", "dev"),
		attribute.Int("queries", 3),
		attribute.Float64("score", 0.5),
		attribute.Bool("ok", true),
		attribute.String("k", "[1]"),
	}
	if len(got) != len(want) {
		t.Fatalf("Attrs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Attrs()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInjectContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	carrier := map[string]string{}
	InjectContext(ctx, carrier)

	if carrier["traceparent"] == "" {
		t.Errorf("carrier = %v, want traceparent", carrier)
	}
}
