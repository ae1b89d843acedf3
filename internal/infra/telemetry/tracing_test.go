package telemetry

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/expense-tracker-iam/internal/infra/config"
)

func TestTracerProviderRecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := newTracerProvider(context.Background(), config.TelemetrySettings{
		ServiceName:  "iam-test",
		SamplingRate: 1,
	}, sdktrace.WithSpanProcessor(recorder), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("newTracerProvider: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "POST /api/v1/auth/login")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 ended span, got %d", len(ended))
	}
	if ended[0].Name() != "POST /api/v1/auth/login" {
		t.Fatalf("unexpected span name %q", ended[0].Name())
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracerProviderHonoursZeroSampling(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp, err := newTracerProvider(context.Background(), config.TelemetrySettings{
		ServiceName:  "iam-test",
		SamplingRate: 0,
	}, sdktrace.WithSpanProcessor(recorder), nil)
	if err != nil {
		t.Fatalf("newTracerProvider: %v", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := Tracer().Start(context.Background(), "GET /healthz")
	span.End()

	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("expected no sampled spans, got %d", got)
	}
}
