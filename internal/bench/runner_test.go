package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/pipeline"
)

func TestRunPipelineMode(t *testing.T) {
	cfg := pipeline.DefaultConfig()
	cfg.PackInterval = 2 * time.Millisecond
	cfg.ChannelCapacity = 16

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := Run(ctx, Options{
		Mode:     ModePipeline,
		Tasks:    8,
		MaxValue: 100_000,
		Pipeline: cfg,
	}, log.NewNop())
	require.NoError(t, err)

	require.NotEmpty(t, report.RunID)
	require.Equal(t, ModePipeline, report.Mode)
	// Writers keep going until the stop flag propagates, so the final value
	// can only overshoot the target.
	require.GreaterOrEqual(t, report.Final, uint64(100_000))
	require.Greater(t, report.Throughput, float64(0))
	require.Greater(t, report.Latency.Samples, int64(0))
	require.Greater(t, report.Elapsed, time.Duration(0))
}

func TestRunAtomicMode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := Run(ctx, Options{
		Mode:     ModeAtomic,
		Tasks:    4,
		MaxValue: 50_000,
	}, log.NewNop())
	require.NoError(t, err)

	require.GreaterOrEqual(t, report.Final, uint64(50_000))
	require.Greater(t, report.Latency.Samples, int64(0))
}

func TestRunUnknownMode(t *testing.T) {
	_, err := Run(context.Background(), Options{Mode: "warp", Tasks: 1}, log.NewNop())
	require.ErrorIs(t, err, ErrUnknownMode)
}
