// Package pipeline assembles the metrics engine: the reader that consumes
// packed snapshot buffers, the engine tying registry, packer, channel and
// reader together, and the configuration surface.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
	"github.com/akoshelev/metric-proto/pkg/handoff"
)

// Sink receives decoded snapshots from the reader. Implementations must not
// retain the snapshot past the call unless they copy it.
type Sink interface {
	Consume(*snapshot.Snapshot)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*snapshot.Snapshot)

// Consume implements Sink.
func (f SinkFunc) Consume(s *snapshot.Snapshot) { f(s) }

// Reader is the single consumer of the handoff channel. It decodes each
// buffer, resolves metric names and forwards the snapshot to the sink. One
// corrupt snapshot is discarded with a log line; it never takes the reader
// down. Sequence gaps mean snapshots were dropped upstream and are
// tolerated.
type Reader struct {
	in       *handoff.Channel[*snapshot.Buffer]
	resolver snapshot.NameResolver
	sink     Sink
	logger   *log.Logger

	lastSeq   uint64
	gaps      atomic.Uint64
	discarded atomic.Uint64
}

// NewReader creates a reader draining in. A nil sink drops decoded
// snapshots, which still exercises the decode path.
func NewReader(in *handoff.Channel[*snapshot.Buffer], resolver snapshot.NameResolver, sink Sink, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Provide()
	}
	if sink == nil {
		sink = SinkFunc(func(*snapshot.Snapshot) {})
	}
	return &Reader{
		in:       in,
		resolver: resolver,
		sink:     sink,
		logger:   logger.With(log.String("component", "reader")),
	}
}

// NextSnapshot blocks until the next decodable snapshot and returns it.
// Corrupt buffers are skipped. It returns handoff.ErrClosed once the channel
// is closed and drained.
func (r *Reader) NextSnapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	for {
		buf, err := r.in.Receive(ctx)
		if err != nil {
			return nil, err
		}

		snap, err := snapshot.Decode(buf.Bytes(), r.resolver)
		buf.Release()
		if err != nil {
			r.discarded.Add(1)
			r.logger.Warn("discarding undecodable snapshot", log.Error(err))
			continue
		}

		if r.lastSeq != 0 && snap.Sequence > r.lastSeq+1 {
			r.gaps.Add(snap.Sequence - r.lastSeq - 1)
		}
		r.lastSeq = snap.Sequence
		return snap, nil
	}
}

// Run forwards snapshots to the sink until the channel closes. It returns
// nil on a clean close.
func (r *Reader) Run(ctx context.Context) error {
	for {
		snap, err := r.NextSnapshot(ctx)
		if errors.Is(err, handoff.ErrClosed) {
			r.logger.Debug("reader stopped",
				log.Uint64("last_sequence", r.lastSeq),
				log.Uint64("gaps", r.gaps.Load()),
				log.Uint64("discarded", r.discarded.Load()))
			return nil
		}
		if err != nil {
			return err
		}
		r.sink.Consume(snap)
	}
}

// Gaps returns the cumulative count of sequence numbers skipped by dropped
// snapshots.
func (r *Reader) Gaps() uint64 {
	return r.gaps.Load()
}

// Discarded returns the number of snapshots discarded due to decode errors.
func (r *Reader) Discarded() uint64 {
	return r.discarded.Load()
}
