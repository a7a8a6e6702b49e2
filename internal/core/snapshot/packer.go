package snapshot

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/pkg/handoff"
	"github.com/akoshelev/metric-proto/pkg/tlv"
)

// PackerConfig configures a packer.
type PackerConfig struct {
	// Interval between pack cycles.
	Interval time.Duration
	// Policy applied when the handoff channel is full.
	Policy BackpressurePolicy
	// WaitTimeout bounds the send wait under the BoundedWait policy.
	WaitTimeout time.Duration
}

// Packer periodically walks the registry, reads every cell with individual
// atomic loads and serializes the values into one contiguous TLV buffer.
// Each metric's value is consistent on its own; the snapshot as a whole is
// not a single atomic cut across metrics.
type Packer struct {
	registry *metrics.Registry
	out      *handoff.Channel[*Buffer]
	pool     *BufferPool
	cfg      PackerConfig
	logger   *log.Logger

	seq     atomic.Uint64
	dropped atomic.Uint64
}

// NewPacker creates a packer feeding out from registry.
func NewPacker(registry *metrics.Registry, out *handoff.Channel[*Buffer], cfg PackerConfig, logger *log.Logger) *Packer {
	if logger == nil {
		logger = log.Provide()
	}
	return &Packer{
		registry: registry,
		out:      out,
		pool:     NewBufferPool(4096),
		cfg:      cfg,
		logger:   logger.With(log.String("component", "packer")),
	}
}

// Run packs on every interval tick until ctx ends, then flushes one final
// snapshot and closes the handoff channel so the reader can drain and stop.
func (p *Packer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.send(p.PackOnce())
			p.out.Close()
			p.logger.Debug("packer stopped",
				log.Uint64("snapshots", p.seq.Load()),
				log.Uint64("dropped", p.dropped.Load()))
			return nil
		case <-ticker.C:
			p.send(p.PackOnce())
		}
	}
}

// PackOnce captures the current state of every registered metric into a
// pooled buffer, stamped with the next sequence number and the capture time.
func (p *Packer) PackOnce() *Buffer {
	buf := p.pool.Get()
	b := tlv.AppendHeader(buf.data, tlv.Header{
		Version:         tlv.FormatVersion,
		Sequence:        p.seq.Add(1),
		TimestampMillis: uint64(time.Now().UnixMilli()),
	})

	p.registry.View(func(c *metrics.Cell) bool {
		id := uint32(c.ID())
		switch c.Kind() {
		case metrics.KindCounter:
			b = tlv.AppendCounter(b, id, c.CounterTotal())
		case metrics.KindGauge:
			if c.FloatGauge() {
				b = tlv.AppendGaugeFloat(b, id, c.GaugeFloat())
			} else {
				b = tlv.AppendGaugeInt(b, id, c.GaugeInt())
			}
		case metrics.KindTimer:
			count, sum := c.TimerSnapshot()
			b = tlv.AppendTimer(b, id, count, sum)
		}
		return true
	})

	buf.data = b
	return buf
}

// send hands the buffer to the channel under the configured backpressure
// policy. A full channel drops the snapshot; it never stalls the pack loop
// beyond the bounded wait.
func (p *Packer) send(buf *Buffer) {
	var err error
	switch p.cfg.Policy {
	case BoundedWait:
		err = p.out.SendTimeout(buf, p.cfg.WaitTimeout)
	default:
		err = p.out.TrySend(buf)
	}
	if err == nil {
		return
	}

	buf.Release()
	if errors.Is(err, handoff.ErrFull) {
		p.dropped.Add(1)
		p.logger.Debug("snapshot dropped", log.Uint64("total_dropped", p.dropped.Load()))
	}
}

// Dropped returns the number of snapshots discarded because the channel was
// full. This is an observability event, not an error.
func (p *Packer) Dropped() uint64 {
	return p.dropped.Load()
}

// Sequence returns the last assigned snapshot sequence number.
func (p *Packer) Sequence() uint64 {
	return p.seq.Load()
}
