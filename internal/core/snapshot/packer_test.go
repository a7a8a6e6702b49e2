package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/pkg/handoff"
)

func testPacker(t *testing.T, capacity int, cfg PackerConfig) (*metrics.Registry, *Packer, *handoff.Channel[*Buffer]) {
	t.Helper()
	registry := metrics.NewRegistry(metrics.OverflowWrap)
	out := handoff.New[*Buffer](capacity)
	return registry, NewPacker(registry, out, cfg, log.NewNop()), out
}

func TestPackOnceCapturesEveryMetric(t *testing.T) {
	registry, packer, _ := testPacker(t, 1, PackerConfig{Interval: time.Hour})

	counter, err := registry.Counter("requests.total")
	require.NoError(t, err)
	counter.Add(41)

	gauge, err := registry.Gauge("queue.depth")
	require.NoError(t, err)
	gauge.Set(-3)

	fgauge, err := registry.FloatGauge("load.average")
	require.NoError(t, err)
	fgauge.Set(0.75)

	timer, err := registry.Timer("request.duration")
	require.NoError(t, err)
	timer.Observe(2 * time.Millisecond)
	timer.Observe(3 * time.Millisecond)

	buf := packer.PackOnce()
	defer buf.Release()

	snap, err := Decode(buf.Bytes(), registry)
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Sequence)
	require.Len(t, snap.Values, 4)

	byName := make(map[string]Value, len(snap.Values))
	for _, v := range snap.Values {
		byName[v.Name] = v
	}

	require.Equal(t, uint64(41), byName["requests.total"].Total)
	require.Equal(t, int64(-3), byName["queue.depth"].GaugeInt)
	require.Equal(t, 0.75, byName["load.average"].GaugeFloat)
	require.True(t, byName["load.average"].IsFloat)
	require.Equal(t, uint64(2), byName["request.duration"].TimerCount)
	require.Equal(t, 5*time.Millisecond, byName["request.duration"].TimerSum)
}

func TestPackOnceSequenceStrictlyIncreases(t *testing.T) {
	registry, packer, _ := testPacker(t, 1, PackerConfig{Interval: time.Hour})
	_, err := registry.Counter("c")
	require.NoError(t, err)

	var last uint64
	for i := 0; i < 10; i++ {
		buf := packer.PackOnce()
		snap, err := Decode(buf.Bytes(), registry)
		buf.Release()
		require.NoError(t, err)
		require.Greater(t, snap.Sequence, last)
		last = snap.Sequence
	}
}

func TestDropOnFull(t *testing.T) {
	registry, packer, out := testPacker(t, 1, PackerConfig{Interval: time.Hour, Policy: DropOnFull})
	_, err := registry.Counter("c")
	require.NoError(t, err)

	packer.send(packer.PackOnce())
	require.Equal(t, uint64(0), packer.Dropped())

	// Channel is now full; the next two snapshots must be dropped without
	// blocking.
	packer.send(packer.PackOnce())
	packer.send(packer.PackOnce())
	require.Equal(t, uint64(2), packer.Dropped())
	require.Equal(t, 1, out.Len())
}

func TestBoundedWaitEventuallyDrops(t *testing.T) {
	registry, packer, _ := testPacker(t, 1, PackerConfig{
		Interval:    time.Hour,
		Policy:      BoundedWait,
		WaitTimeout: 10 * time.Millisecond,
	})
	_, err := registry.Counter("c")
	require.NoError(t, err)

	packer.send(packer.PackOnce())

	start := time.Now()
	packer.send(packer.PackOnce())
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	require.Equal(t, uint64(1), packer.Dropped())
}

func TestRunFlushesAndClosesOnShutdown(t *testing.T) {
	registry, packer, out := testPacker(t, 4, PackerConfig{Interval: 5 * time.Millisecond})
	counter, err := registry.Counter("c")
	require.NoError(t, err)
	counter.Add(9)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- packer.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Drain everything the packer produced; the channel must be closed after
	// the final flush.
	var snapshots int
	for {
		buf, err := out.Receive(context.Background())
		if err != nil {
			require.ErrorIs(t, err, handoff.ErrClosed)
			break
		}
		snap, err := Decode(buf.Bytes(), registry)
		buf.Release()
		require.NoError(t, err)
		require.Equal(t, uint64(9), snap.Values[0].Total)
		snapshots++
	}
	require.Greater(t, snapshots, 0)
}
