package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewTracerProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        *Config
		expectNoOp bool
	}{
		{name: "nil config", cfg: nil, expectNoOp: true},
		{name: "telemetry disabled", cfg: &Config{Tracing: &TracingConfig{Enabled: true}}, expectNoOp: true},
		{name: "tracing disabled", cfg: &Config{Enabled: true, Tracing: &TracingConfig{Enabled: false}}, expectNoOp: true},
		{name: "no tracing section", cfg: &Config{Enabled: true}, expectNoOp: true},
		{
			name: "tracing enabled",
			cfg: &Config{
				Enabled:  true,
				Endpoint: "127.0.0.1:4318",
				Insecure: true,
				Tracing:  &TracingConfig{Enabled: true, Sampling: 0.5},
			},
			expectNoOp: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			tp, err := NewTracerProvider(ctx, tt.cfg)
			require.NoError(t, err)
			require.NotNil(t, tp)

			if tt.expectNoOp {
				_, ok := tp.(noop.TracerProvider)
				assert.True(t, ok, "expected no-op tracer provider")
				return
			}

			sdkTP, ok := tp.(*sdktrace.TracerProvider)
			require.True(t, ok, "expected SDK tracer provider")
			require.NoError(t, sdkTP.Shutdown(ctx))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (*Config)(nil).Validate())
	assert.NoError(t, (&Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1}}).Validate())
	assert.Error(t, (&Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}}).Validate())
	assert.Error(t, (&Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: -0.1}}).Validate())

	// Out-of-range sampling is ignored while tracing is off
	assert.NoError(t, (&Config{Enabled: true, Tracing: &TracingConfig{Sampling: 2}}).Validate())
}

func TestTracingConfig_GetSampling(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultSampling, (*TracingConfig)(nil).GetSampling())
	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, 0.25, (&TracingConfig{Sampling: 0.25}).GetSampling())
}
