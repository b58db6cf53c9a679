package metrics

import (
	"fmt"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// instruments bundles the exported OpenTelemetry view of the collector.
type instruments struct {
	ttft       metric.Float64Histogram
	earToVoice metric.Float64Histogram
	segments   metric.Int64Counter
	drafts     metric.Int64Counter
	finals     metric.Int64Counter
	dropped    metric.Int64Counter
	errored    metric.Int64Counter
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	ttft, err := meter.Float64Histogram("pipeline.ttft",
		metric.WithDescription("Time from speech onset to first draft emission"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	earToVoice, err := meter.Float64Histogram("pipeline.ear_to_voice_lag",
		metric.WithDescription("Time from end of speech to final emission"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	segments, err := meter.Int64Counter("pipeline.segments_created")
	if err != nil {
		return nil, err
	}
	drafts, err := meter.Int64Counter("pipeline.drafts_emitted")
	if err != nil {
		return nil, err
	}
	finals, err := meter.Int64Counter("pipeline.finals_emitted")
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter("pipeline.segments_dropped")
	if err != nil {
		return nil, err
	}
	errored, err := meter.Int64Counter("pipeline.segments_errored")
	if err != nil {
		return nil, err
	}
	return &instruments{
		ttft:       ttft,
		earToVoice: earToVoice,
		segments:   segments,
		drafts:     drafts,
		finals:     finals,
		dropped:    dropped,
		errored:    errored,
	}, nil
}

// NewPrometheusMeterProvider builds a MeterProvider whose instruments are
// scrapeable from the default prometheus registry, the push-free export
// mode used for local sessions. Callers must Shutdown the provider to flush.
func NewPrometheusMeterProvider(serviceName string) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: create prometheus exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("metrics: create resource: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}
