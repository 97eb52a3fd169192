package observability_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/streamsketch/pkg/observability"
)

func TestInit_NoopWhenNoEndpoint(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	assert.Nil(t, providers.MetricsHandler)

	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestInit_NoopSpanIsUsable(t *testing.T) {
	t.Parallel()

	providers, err := observability.Init(observability.DefaultConfig())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })

	ctx, span := providers.Tracer.Start(context.Background(), "sketch.update")
	defer span.End()

	assert.NotNil(t, ctx)
}

func TestInit_PrometheusServesInstruments(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.Prometheus = true
	cfg.Mode = observability.ModeServe
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "test"

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, providers.Shutdown(context.Background())) })
	require.NotNil(t, providers.MetricsHandler)

	sm, err := observability.NewSketchMetrics(providers.Meter)
	require.NoError(t, err)

	sm.RecordUpdate(context.Background(), "pages", "countmin")

	rec := httptest.NewRecorder()
	providers.MetricsHandler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "streamsketch_sketch_updates")
	assert.Contains(t, string(body), `sketch="pages"`)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for in, want := range tests {
		assert.Equal(t, want, observability.ParseLevel(in), in)
	}
}

func TestParseOTLPHeaders(t *testing.T) {
	t.Parallel()

	assert.Nil(t, observability.ParseOTLPHeaders(""))
	assert.Nil(t, observability.ParseOTLPHeaders("novalue"))
	assert.Equal(t,
		map[string]string{"api-key": "secret", "tenant": "a"},
		observability.ParseOTLPHeaders(" api-key = secret ,tenant=a,broken"))
}
