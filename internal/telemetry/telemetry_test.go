package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_DisabledUsesNoOpProviders(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*Config{nil, {Enabled: false}} {
		tel, err := New(context.Background(), WithTelemetryConfig(cfg))
		require.NoError(t, err)

		_, ok := tel.TracerProvider().(tracenoop.TracerProvider)
		assert.True(t, ok)
		_, ok = tel.MeterProvider().(metricnoop.MeterProvider)
		assert.True(t, ok)
		assert.Nil(t, tel.MetricsHandler())

		require.NoError(t, tel.Shutdown(context.Background()))
		require.NoError(t, tel.Shutdown(context.Background()))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled: true,
		Tracing: &TracingConfig{Enabled: true, Sampling: 1.5},
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid telemetry configuration")
}

func TestNew_Enabled(t *testing.T) {
	t.Parallel()

	tel, err := New(context.Background(), WithTelemetryConfig(&Config{
		Enabled:  true,
		Insecure: true,
		Tracing:  &TracingConfig{Enabled: true, Sampling: 1.0},
		Metrics:  &MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}},
	}))
	require.NoError(t, err)

	_, ok := tel.TracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)
	_, ok = tel.MeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, ok)
	assert.NotNil(t, tel.MetricsHandler())

	require.NoError(t, tel.Shutdown(context.Background()))
}
