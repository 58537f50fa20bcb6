package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledProviderIsNoOp(t *testing.T) {
	tp, err := NewTelemetryProvider(Config{})
	require.NoError(t, err)

	ctx := context.Background()

	runCtx, runSpan := tp.TraceRun(ctx, "slack", 3)
	require.NotNil(t, runSpan)
	assert.NotNil(t, runCtx)

	sendCtx, sendSpan := tp.TraceSend(runCtx, "slack", "#alerts")
	require.NotNil(t, sendSpan)
	assert.NotNil(t, sendCtx)

	// Counters are nil when disabled; recording must not panic.
	tp.RecordSent(ctx, "slack", 10*time.Millisecond)
	tp.RecordSkipped(ctx, "slack")
	tp.RecordFailed(ctx, "slack")

	EndSpan(sendSpan, nil)
	EndSpan(runSpan, errors.New("late failure"))

	assert.NoError(t, tp.Shutdown(ctx))
}

func TestConfigDefaults(t *testing.T) {
	tp, err := NewTelemetryProvider(Config{SampleRate: -1})
	require.NoError(t, err)
	assert.Equal(t, "sendhub", tp.config.ServiceName)
	assert.Equal(t, 1.0, tp.config.SampleRate)
}
