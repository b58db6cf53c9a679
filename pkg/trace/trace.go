// Package trace bootstraps OpenTelemetry for the pipeline and provides the
// per-stage span constructors the workers call. The bootstrap is shaped by
// this pipeline's span profile: a torrent of tiny per-frame VAD spans
// (~33/s at 30ms chunks) and a trickle of segment-scoped ASR/translation
// spans, which need different sampling treatment.
package trace

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/realtime-ai/speech-translate"

// Config controls the tracing bootstrap.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Exporter selects where spans go: "stdout" for local runs, "otlp" for
	// a collector, "none" to create spans without exporting any.
	Exporter     string
	OTLPEndpoint string

	// FrameSampleRatio bounds the per-frame vad.process span volume, which
	// would otherwise bury the segment-scoped spans a trace query actually
	// starts from. Segment spans (asr.*, translate.*, queue.put) are always
	// sampled regardless of this ratio.
	FrameSampleRatio float64
}

func DefaultConfig() Config {
	return Config{
		ServiceName:      "speech-translate",
		ServiceVersion:   "0.1.0",
		Environment:      envOr("ENVIRONMENT", "development"),
		Exporter:         envOr("TRACE_EXPORTER", "stdout"),
		OTLPEndpoint:     envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		FrameSampleRatio: 0.01,
	}
}

var (
	mu       sync.RWMutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
)

// Initialize builds the tracer provider and installs it globally. Called
// once from main before the pipeline starts; the span constructors in this
// package degrade to no-ops if it never runs.
func Initialize(ctx context.Context, cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if provider != nil {
		return fmt.Errorf("trace: already initialized")
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("trace: build resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(frameSampler{
			frames: sdktrace.TraceIDRatioBased(cfg.FrameSampleRatio),
		})),
	}

	switch cfg.Exporter {
	case "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("trace: create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "otlp":
		exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		))
		if err != nil {
			return fmt.Errorf("trace: create otlp exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	case "none":
		// Provider with no exporter: span context still flows through the
		// pipeline, nothing leaves the process.
	default:
		return fmt.Errorf("trace: unsupported exporter %q", cfg.Exporter)
	}

	provider = sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = provider.Tracer(tracerName)
	return nil
}

// Shutdown flushes pending spans and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()

	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("trace: shutdown: %w", err)
	}
	provider = nil
	tracer = nil
	return nil
}

// GetTracer returns the installed tracer, or a no-op one before Initialize.
func GetTracer() trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()

	if tracer == nil {
		return otel.Tracer(tracerName)
	}
	return tracer
}

// StartSpan opens a span on the installed tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return GetTracer().Start(ctx, spanName, opts...)
}

// frameSampler ratio-samples the high-rate per-frame VAD spans and keeps
// every other span: segment-scoped spans arrive below 10/s, and each one
// carries the segment UUID attribute a trace query pivots on.
type frameSampler struct {
	frames sdktrace.Sampler
}

func (s frameSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if p.Name == "vad.process" {
		return s.frames.ShouldSample(p)
	}
	return sdktrace.AlwaysSample().ShouldSample(p)
}

func (s frameSampler) Description() string {
	return "frameSampler{vad.process=" + s.frames.Description() + "}"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
