package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Exporter is where one signal is shipped to over OTLP.
type Exporter struct {
	// Endpoint is a full url, ex. http://localhost:4318/v1/traces
	Endpoint string `json:"endpoint" env:"ENDPOINT"`
	// Protocol is "http" (default) or "grpc".
	Protocol string            `json:"protocol" env:"PROTOCOL"`
	Headers  map[string]string `json:"headers" env:"HEADERS"`
}

func (e Exporter) enabled() bool {
	return e.Endpoint != ""
}

func (e Exporter) grpc() (bool, error) {
	switch e.Protocol {
	case "", "http":
		return false, nil
	case "grpc":
		return true, nil
	}
	return false, fmt.Errorf("unknown otlp protocol %q, expected http or grpc", e.Protocol)
}

// Config is read from telemetry.json5, ONCALL_OTLP_* variables override it.
type Config struct {
	Traces  Exporter `json:"traces" envPrefix:"ONCALL_OTLP_TRACES_"`
	Metrics Exporter `json:"metrics" envPrefix:"ONCALL_OTLP_METRICS_"`
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// newExporter calls the constructor matching the exporter's protocol.
func newExporter[T any](signal string, e Exporter, grpc, http func() (T, error)) (T, error) {
	var zero T
	useGrpc, err := e.grpc()
	if err != nil {
		return zero, fmt.Errorf("%s: %w", signal, err)
	}
	slog.Debug(
		"otlp exporter initialized",
		"signal", signal,
		"grpc", useGrpc,
		"endpoint", e.Endpoint,
		"headers", len(e.Headers) > 0,
	)
	if useGrpc {
		return grpc()
	}
	return http()
}

func newTraceProvider(ctx context.Context, r *resource.Resource, e Exporter) (*trace.TracerProvider, error) {
	exporter, err := newExporter(
		"traces", e,
		func() (trace.SpanExporter, error) {
			return otlptracegrpc.New(
				ctx,
				otlptracegrpc.WithEndpointURL(e.Endpoint),
				otlptracegrpc.WithHeaders(e.Headers),
			)
		},
		func() (trace.SpanExporter, error) {
			return otlptracehttp.New(
				ctx,
				otlptracehttp.WithEndpointURL(e.Endpoint),
				otlptracehttp.WithHeaders(e.Headers),
			)
		},
	)
	if err != nil {
		return nil, err
	}

	// a run is a handful of requests, spans are exported as they end
	return trace.NewTracerProvider(
		trace.WithSyncer(exporter),
		trace.WithResource(r),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, e Exporter) (*metric.MeterProvider, error) {
	exporter, err := newExporter(
		"metrics", e,
		func() (metric.Exporter, error) {
			return otlpmetricgrpc.New(
				ctx,
				otlpmetricgrpc.WithEndpointURL(e.Endpoint),
				otlpmetricgrpc.WithHeaders(e.Headers),
			)
		},
		func() (metric.Exporter, error) {
			return otlpmetrichttp.New(
				ctx,
				otlpmetrichttp.WithEndpointURL(e.Endpoint),
				otlpmetrichttp.WithHeaders(e.Headers),
			)
		},
	)
	if err != nil {
		return nil, err
	}

	// the run is usually over before the first interval, Shutdown exports
	// whatever was counted
	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter)),
		metric.WithResource(r),
	), nil
}
