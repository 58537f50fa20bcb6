// Package observability provides OpenTelemetry tracing and metrics for
// sendhub dispatch runs.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures the telemetry provider.
type Config struct {
	Enabled        bool              `json:"enabled"`
	ServiceName    string            `json:"service_name"`
	ServiceVersion string            `json:"service_version"`
	Environment    string            `json:"environment"`
	OTLPEndpoint   string            `json:"otlp_endpoint"`
	OTLPHeaders    map[string]string `json:"otlp_headers,omitempty"`
	SampleRate     float64           `json:"sample_rate"`
}

// TelemetryProvider provides observability features for dispatch runs.
type TelemetryProvider struct {
	config        Config
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider

	// Metrics
	recipientsSent    metric.Int64Counter
	recipientsSkipped metric.Int64Counter
	recipientsFailed  metric.Int64Counter
	sendDuration      metric.Float64Histogram
}

// NewTelemetryProvider creates a new telemetry provider. When disabled it
// hands out no-op tracers and meters, so callers never need a nil check.
func NewTelemetryProvider(cfg Config) (*TelemetryProvider, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "sendhub"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 1.0
	}

	tp := &TelemetryProvider{config: cfg}

	if !cfg.Enabled {
		tp.tracer = otel.Tracer("sendhub")
		tp.meter = otel.Meter("sendhub")
		return tp, nil
	}

	if err := tp.initTracing(); err != nil {
		return nil, fmt.Errorf("init tracing: %v", err)
	}
	if err := tp.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %v", err)
	}

	return tp, nil
}

// initTracing initializes OpenTelemetry tracing
func (tp *TelemetryProvider) initTracing() error {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(tp.config.ServiceName),
			semconv.ServiceVersion(tp.config.ServiceVersion),
			semconv.DeploymentEnvironment(tp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("create resource: %v", err)
	}

	exporter, err := otlptrace.New(context.Background(),
		otlptracehttp.NewClient(
			otlptracehttp.WithEndpoint(tp.config.OTLPEndpoint),
			otlptracehttp.WithHeaders(tp.config.OTLPHeaders),
		),
	)
	if err != nil {
		return fmt.Errorf("create exporter: %v", err)
	}

	tp.traceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(tp.config.SampleRate)),
	)

	otel.SetTracerProvider(tp.traceProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tp.tracer = otel.Tracer("sendhub",
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	return nil
}

// initMetrics initializes OpenTelemetry metrics
func (tp *TelemetryProvider) initMetrics() error {
	tp.meter = otel.Meter("sendhub",
		metric.WithSchemaURL(semconv.SchemaURL),
	)

	var err error

	tp.recipientsSent, err = tp.meter.Int64Counter(
		"sendhub_recipients_sent_total",
		metric.WithDescription("Total number of recipients successfully sent to"),
	)
	if err != nil {
		return fmt.Errorf("create recipients_sent counter: %v", err)
	}

	tp.recipientsSkipped, err = tp.meter.Int64Counter(
		"sendhub_recipients_skipped_total",
		metric.WithDescription("Total number of recipients skipped for lack of data"),
	)
	if err != nil {
		return fmt.Errorf("create recipients_skipped counter: %v", err)
	}

	tp.recipientsFailed, err = tp.meter.Int64Counter(
		"sendhub_recipients_failed_total",
		metric.WithDescription("Total number of recipients whose delivery failed"),
	)
	if err != nil {
		return fmt.Errorf("create recipients_failed counter: %v", err)
	}

	tp.sendDuration, err = tp.meter.Float64Histogram(
		"sendhub_send_duration_seconds",
		metric.WithDescription("Duration of per-recipient send operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("create send_duration histogram: %v", err)
	}

	return nil
}

// TraceRun creates a span covering one whole dispatch run.
func (tp *TelemetryProvider) TraceRun(ctx context.Context, platform string, candidates int) (context.Context, trace.Span) {
	if tp.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tp.tracer.Start(ctx, "sendhub.send_to_all",
		trace.WithAttributes(
			attribute.String("sendhub.platform", platform),
			attribute.Int("sendhub.candidates.count", candidates),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// TraceSend creates a span for one recipient delivery.
func (tp *TelemetryProvider) TraceSend(ctx context.Context, platform, recipient string) (context.Context, trace.Span) {
	if tp.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tp.tracer.Start(ctx, "sendhub.send",
		trace.WithAttributes(
			attribute.String("sendhub.platform", platform),
			attribute.String("sendhub.recipient", recipient),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// RecordSent counts one successful delivery.
func (tp *TelemetryProvider) RecordSent(ctx context.Context, platform string, duration time.Duration) {
	if tp.recipientsSent != nil {
		tp.recipientsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
	}
	if tp.sendDuration != nil {
		tp.sendDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("platform", platform)))
	}
}

// RecordSkipped counts one skipped recipient.
func (tp *TelemetryProvider) RecordSkipped(ctx context.Context, platform string) {
	if tp.recipientsSkipped != nil {
		tp.recipientsSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
	}
}

// RecordFailed counts one failed delivery.
func (tp *TelemetryProvider) RecordFailed(ctx context.Context, platform string) {
	if tp.recipientsFailed != nil {
		tp.recipientsFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
	}
}

// EndSpan ends a span, recording err as its status.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// Shutdown flushes and stops the trace provider.
func (tp *TelemetryProvider) Shutdown(ctx context.Context) error {
	if tp.traceProvider != nil {
		return tp.traceProvider.Shutdown(ctx)
	}
	return nil
}
