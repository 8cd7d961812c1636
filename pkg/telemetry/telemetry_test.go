package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/openwaitlist/waitlist/pkg/config"
)

func restoreGlobalProvider(t *testing.T) {
	t.Helper()
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
}

func TestInitDisabled(t *testing.T) {
	restoreGlobalProvider(t)

	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{Enabled: false})
	require.NoError(t, err)

	_, ok := tp.(noop.TracerProvider)
	assert.True(t, ok, "expected noop provider, got %T", tp)
	assert.NoError(t, shutdown(ctx))
}

func TestInitNoneExporter(t *testing.T) {
	restoreGlobalProvider(t)

	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{
		Enabled:      true,
		Exporter:     "none",
		ServiceName:  "test-service",
		SamplingRate: 1.0,
		Logger:       zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(ctx) }()

	_, isNoop := tp.(noop.TracerProvider)
	assert.False(t, isNoop)
	assert.NotNil(t, otel.GetTracerProvider())
}

func TestInitStdoutExporter(t *testing.T) {
	restoreGlobalProvider(t)

	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{
		Enabled:      true,
		Exporter:     "stdout",
		SamplingRate: 0.5,
		Logger:       zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	defer func() { _ = shutdown(ctx) }()
	assert.NotNil(t, tp)
}

func TestInitUnknownExporter(t *testing.T) {
	_, _, err := Init(context.Background(), Options{
		Enabled:  true,
		Exporter: "jaeger-classic",
	})
	assert.Error(t, err)
}

func TestInitClampsSamplingRate(t *testing.T) {
	restoreGlobalProvider(t)

	ctx := context.Background()
	for _, rate := range []float64{-0.5, 2.0} {
		tp, shutdown, err := Init(ctx, Options{
			Enabled:      true,
			Exporter:     "none",
			SamplingRate: rate,
		})
		require.NoError(t, err)
		assert.NotNil(t, tp)
		_ = shutdown(ctx)
	}
}

func TestInitOTLPLazyConnection(t *testing.T) {
	restoreGlobalProvider(t)

	// The OTLP gRPC exporter connects lazily, so Init succeeds even with a
	// non-routable endpoint.
	ctx := context.Background()
	tp, shutdown, err := Init(ctx, Options{
		Enabled:  true,
		Exporter: "otlp",
		Endpoint: "localhost:0",
		Insecure: true,
		Logger:   zap.NewNop().Sugar(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(ctx) })
	assert.NotNil(t, tp)
}

func TestFromConfig(t *testing.T) {
	opts := FromConfig(config.Telemetry{
		Enabled:      true,
		Exporter:     "otlp",
		Endpoint:     "collector:4317",
		SamplingRate: 0.25,
	}, zap.NewNop().Sugar())

	assert.True(t, opts.Enabled)
	assert.Equal(t, "waitlist-portal", opts.ServiceName)
	assert.Equal(t, "collector:4317", opts.Endpoint)
	assert.Equal(t, 0.25, opts.SamplingRate)
}
