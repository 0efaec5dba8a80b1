package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })
	require.NoError(t, os.Chdir(dir))
}

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), "test:oncall", Config{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupFromEnvWithoutConfig(t *testing.T) {
	chdir(t, t.TempDir())

	tel, err := SetupFromEnv(context.Background(), "test:oncall")
	require.NoError(t, err)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupHttpTraces(t *testing.T) {
	tel, err := Setup(context.Background(), "test:oncall", Config{
		Traces: Exporter{Endpoint: "http://127.0.0.1:4318/v1/traces"},
	})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
}

func TestSetupUnknownProtocol(t *testing.T) {
	_, err := Setup(context.Background(), "test:oncall", Config{
		Metrics: Exporter{Endpoint: "http://127.0.0.1:4318/v1/metrics", Protocol: "udp"},
	})
	require.ErrorContains(t, err, "metrics")
	require.ErrorContains(t, err, `"udp"`)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "telemetry.json5"), []byte(`{
		traces: { endpoint: "http://collector:4318/v1/traces", headers: { "x-team": "ops" } },
	}`), 0600)
	require.NoError(t, err)
	chdir(t, dir)

	config, err := LoadConfig(map[string]string{
		"ONCALL_OTLP_TRACES_PROTOCOL":  "grpc",
		"ONCALL_OTLP_METRICS_ENDPOINT": "http://collector:4318/v1/metrics",
	})
	require.NoError(t, err)
	require.Equal(t, Config{
		Traces: Exporter{
			Endpoint: "http://collector:4318/v1/traces",
			Protocol: "grpc",
			Headers:  map[string]string{"x-team": "ops"},
		},
		Metrics: Exporter{Endpoint: "http://collector:4318/v1/metrics"},
	}, config)

	chdir(t, t.TempDir())
	config, err = LoadConfig(map[string]string{})
	require.NoError(t, err)
	require.Equal(t, Config{}, config)
}
