package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"pagerduty-tools/lib/configutil"
	"time"

	"github.com/caarlos0/env/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes and stops whatever providers were set up, it is safe
// to call on a zero Telemetry.
func (t Telemetry) Shutdown(ctx context.Context) error {
	var errlist []error
	if t.TracerProvider != nil {
		errlist = append(errlist, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errlist = append(errlist, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errlist...)
}

// SetupFromEnv searches up the filesystem from the cwd to find a file
// called telemetry.json5 and sets up telemetry with it, ONCALL_OTLP_*
// environment variables override the file. Without either, the global
// otel providers are left as no-ops.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := LoadConfig(nil)
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

// LoadConfig reads telemetry.json5 and applies environment overrides,
// environment replaces the process environment when non-nil.
func LoadConfig(environment map[string]string) (Config, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		config = Config{}
	} else if err != nil {
		return Config{}, err
	}

	err = env.ParseWithOptions(&config, env.Options{Environment: environment})
	if err != nil {
		return Config{}, fmt.Errorf("read telemetry config from environment: %w", err)
	}
	return config, nil
}

func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	if !config.Traces.enabled() && !config.Metrics.enabled() {
		slog.Debug("no otlp endpoint configured, telemetry disabled")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	var tel Telemetry
	if config.Traces.enabled() {
		tel.TracerProvider, err = newTraceProvider(ctx, r, config.Traces)
		if err != nil {
			return Telemetry{}, err
		}
		otel.SetTracerProvider(tel.TracerProvider)
	}
	if config.Metrics.enabled() {
		tel.MeterProvider, err = newMetricProvider(ctx, r, config.Metrics)
		if err != nil {
			return tel, err
		}
		otel.SetMeterProvider(tel.MeterProvider)
	}

	return tel, nil
}
