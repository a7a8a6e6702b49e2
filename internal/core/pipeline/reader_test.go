package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
	"github.com/akoshelev/metric-proto/pkg/handoff"
	"github.com/akoshelev/metric-proto/pkg/tlv"
)

func packedBuffer(seq uint64, counterID uint32, total uint64) *snapshot.Buffer {
	b := tlv.AppendHeader(nil, tlv.Header{Version: tlv.FormatVersion, Sequence: seq, TimestampMillis: 1000})
	b = tlv.AppendCounter(b, counterID, total)
	return snapshot.NewBuffer(b)
}

func testReader(t *testing.T) (*metrics.Registry, *handoff.Channel[*snapshot.Buffer], *Reader) {
	t.Helper()
	registry := metrics.NewRegistry(metrics.OverflowWrap)
	_, err := registry.Counter("requests.total")
	require.NoError(t, err)

	in := handoff.New[*snapshot.Buffer](8)
	return registry, in, NewReader(in, registry, nil, log.NewNop())
}

func TestNextSnapshotDecodes(t *testing.T) {
	_, in, reader := testReader(t)
	require.NoError(t, in.TrySend(packedBuffer(1, 1, 42)))

	snap, err := reader.NextSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1), snap.Sequence)
	require.Len(t, snap.Values, 1)
	require.Equal(t, "requests.total", snap.Values[0].Name)
	require.Equal(t, metrics.KindCounter, snap.Values[0].Kind)
	require.Equal(t, uint64(42), snap.Values[0].Total)
}

func TestCorruptSnapshotIsSkipped(t *testing.T) {
	_, in, reader := testReader(t)

	// Truncate the record so its declared length runs past the buffer.
	good := packedBuffer(1, 1, 42)
	corrupt := snapshot.NewBuffer(good.Bytes()[:len(good.Bytes())-3])
	require.NoError(t, in.TrySend(corrupt))
	require.NoError(t, in.TrySend(packedBuffer(2, 1, 43)))

	snap, err := reader.NextSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.Sequence)
	require.Equal(t, uint64(1), reader.Discarded())
}

func TestUnknownTypeSnapshotIsSkipped(t *testing.T) {
	_, in, reader := testReader(t)

	b := tlv.AppendHeader(nil, tlv.Header{Version: tlv.FormatVersion, Sequence: 1})
	b = tlv.AppendRecord(b, tlv.Record{Type: tlv.RecordType(99), Value: []byte{0}})
	require.NoError(t, in.TrySend(snapshot.NewBuffer(b)))
	require.NoError(t, in.TrySend(packedBuffer(2, 1, 7)))

	snap, err := reader.NextSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), snap.Sequence)
	require.Equal(t, uint64(1), reader.Discarded())
}

func TestSequenceGapsAreTolerated(t *testing.T) {
	_, in, reader := testReader(t)
	require.NoError(t, in.TrySend(packedBuffer(1, 1, 10)))
	require.NoError(t, in.TrySend(packedBuffer(5, 1, 20)))

	ctx := context.Background()
	first, err := reader.NextSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Sequence)

	second, err := reader.NextSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), second.Sequence)
	require.Equal(t, uint64(3), reader.Gaps())
	require.Equal(t, uint64(0), reader.Discarded())
}

func TestRunDeliversToSinkUntilClosed(t *testing.T) {
	registry, in, _ := testReader(t)

	var got []uint64
	sink := SinkFunc(func(s *snapshot.Snapshot) { got = append(got, s.Sequence) })
	reader := NewReader(in, registry, sink, log.NewNop())

	require.NoError(t, in.TrySend(packedBuffer(1, 1, 1)))
	require.NoError(t, in.TrySend(packedBuffer(2, 1, 2)))
	in.Close()

	require.NoError(t, reader.Run(context.Background()))
	require.Equal(t, []uint64{1, 2}, got)
}

func TestUnresolvableIDGetsFallbackName(t *testing.T) {
	_, in, reader := testReader(t)
	require.NoError(t, in.TrySend(packedBuffer(1, 77, 5)))

	snap, err := reader.NextSnapshot(context.Background())
	require.NoError(t, err)
	require.Equal(t, "metric-77", snap.Values[0].Name)
}
