package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	for _, opts := range [][]MeterProviderOption{
		nil,
		{WithMetricsConfig(&MetricsConfig{Enabled: false, Exporters: []string{ExporterPrometheus}})},
	} {
		setup, err := NewMeterProvider(context.Background(), opts...)
		require.NoError(t, err)
		_, ok := setup.Provider.(noop.MeterProvider)
		assert.True(t, ok, "expected no-op meter provider")
		assert.Nil(t, setup.Handler)
	}
}

func TestNewMeterProvider_OTLP(t *testing.T) {
	t.Parallel()

	// The OTLP exporter connects lazily so no collector is needed
	setup, err := NewMeterProvider(context.Background(),
		WithMetricsConfig(&MetricsConfig{Enabled: true}),
		WithMeterEndpoint("localhost:4318"),
		WithMeterInsecure(true),
	)
	require.NoError(t, err)

	mp, ok := setup.Provider.(*sdkmetric.MeterProvider)
	require.True(t, ok)
	assert.Nil(t, setup.Handler)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = mp.Shutdown(ctx)
}

func TestNewMeterProvider_PrometheusHandler(t *testing.T) {
	t.Parallel()

	setup, err := NewMeterProvider(context.Background(),
		WithMeterServiceName("gitrepo-test"),
		WithMetricsConfig(&MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}}),
	)
	require.NoError(t, err)
	require.NotNil(t, setup.Handler)
	t.Cleanup(func() {
		if mp, ok := setup.Provider.(*sdkmetric.MeterProvider); ok {
			_ = mp.Shutdown(context.Background())
		}
	})

	metrics, err := NewRepositoryMetrics(setup.Provider)
	require.NoError(t, err)
	metrics.RecordNotification(context.Background(), "clone_completed")

	rec := httptest.NewRecorder()
	setup.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gitrepo_notifications_total")
}
