package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Getters(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())

	set := &Config{ServiceName: "svc", ServiceVersion: "1.2.3", Endpoint: "otel:4318"}
	assert.Equal(t, "svc", set.GetServiceName())
	assert.Equal(t, "1.2.3", set.GetServiceVersion())
	assert.Equal(t, "otel:4318", set.GetEndpoint())

	assert.InDelta(t, DefaultSampling, (&TracingConfig{}).GetSampling(), 1e-9)
	assert.InDelta(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling(), 1e-9)
}

func TestMetricsConfig_Exporters(t *testing.T) {
	t.Parallel()

	var nilCfg *MetricsConfig
	assert.False(t, nilCfg.HasExporter(ExporterOTLP))

	defaults := &MetricsConfig{Enabled: true}
	assert.Equal(t, []string{ExporterOTLP}, defaults.GetExporters())
	assert.True(t, defaults.HasExporter(ExporterOTLP))
	assert.False(t, defaults.HasExporter(ExporterPrometheus))

	both := &MetricsConfig{Enabled: true, Exporters: []string{ExporterOTLP, ExporterPrometheus}}
	assert.True(t, both.HasExporter(ExporterPrometheus))

	disabled := &MetricsConfig{Exporters: []string{ExporterPrometheus}}
	assert.False(t, disabled.HasExporter(ExporterPrometheus))

	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{}).GetInterval())
	assert.Equal(t, 15*time.Second, (&MetricsConfig{Interval: "15s"}).GetInterval())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{name: "disabled ignores bad values", config: &Config{Tracing: &TracingConfig{Enabled: true, Sampling: 3}}},
		{name: "valid", config: &Config{
			Enabled: true,
			Tracing: &TracingConfig{Enabled: true, Sampling: 1},
			Metrics: &MetricsConfig{Enabled: true, Exporters: []string{ExporterPrometheus}, Interval: "30s"},
		}},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "tracing: sampling",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}},
			wantErr: "tracing: sampling",
		},
		{
			name:    "unknown exporter",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Exporters: []string{"statsd"}}},
			wantErr: `unsupported exporter "statsd"`,
		},
		{
			name:    "bad interval",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "-5s"}},
			wantErr: "interval must be a positive duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
