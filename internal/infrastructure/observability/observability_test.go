package observability

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics_NoopProvider(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, m, "GET", "/v1/facilities", 200, time.Millisecond)
		RecordCacheHit(ctx, m, "search")
		RecordCacheMiss(ctx, m, "search")
		RecordCacheInvalidation(ctx, m, "reload")
		RecordReload(ctx, m, time.Second, 2)
		RecordDBMetric(ctx, m, "select", time.Millisecond)
	})
}

func TestRecorders_NilMetrics(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordRequestMetric(ctx, nil, "GET", "/", 200, 0)
		RecordCacheHit(ctx, nil, "x")
		RecordReload(ctx, nil, 0, 0)
	})
}

func TestParseLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	ParseLevel("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	ParseLevel("nonsense")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestLoggerFromContext_NoSpan(t *testing.T) {
	logger := LoggerFromContext(context.Background())
	assert.NotNil(t, logger)
}
