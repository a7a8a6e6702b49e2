// Package snapshot implements the read side of the writer storage: the
// packer that periodically captures every registered metric into one packed
// TLV buffer, the pooled buffers those snapshots travel in, and the decoded
// snapshot form handed to sinks.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/pkg/tlv"
)

// NameResolver maps metric ids back to registration names. The registry
// implements it; the wire itself carries ids only.
type NameResolver interface {
	NameOf(id metrics.MetricID) (string, bool)
}

// Value is one decoded metric value.
type Value struct {
	ID   metrics.MetricID
	Name string
	Kind metrics.Kind

	// Counter
	Total uint64

	// Gauge
	IsFloat    bool
	GaugeInt   int64
	GaugeFloat float64

	// Timer
	TimerCount uint64
	TimerSum   time.Duration
}

// Snapshot is the decoded form of one packed buffer: a point-in-time capture
// of all registered metrics. Sequence numbers are strictly increasing across
// packs; a gap means snapshots were dropped, not corrupted.
type Snapshot struct {
	Sequence   uint64
	CapturedAt time.Time
	Values     []Value
}

// Decode parses a packed snapshot buffer. Metric ids that the resolver
// cannot name are labeled "metric-<id>" rather than failing the snapshot.
func Decode(buf []byte, resolver NameResolver) (*Snapshot, error) {
	dec, err := tlv.NewDecoder(buf)
	if err != nil {
		return nil, err
	}

	h := dec.Header()
	s := &Snapshot{
		Sequence:   h.Sequence,
		CapturedAt: time.UnixMilli(int64(h.TimestampMillis)),
	}

	for {
		entry, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return s, nil
		}
		if err != nil {
			return nil, err
		}
		s.Values = append(s.Values, toValue(entry, resolver))
	}
}

// Encode packs a decoded snapshot back into its wire form. It is the
// inverse of Decode up to name resolution, which is not carried on the wire.
func Encode(s *Snapshot) []byte {
	b := tlv.AppendHeader(nil, tlv.Header{
		Version:         tlv.FormatVersion,
		Sequence:        s.Sequence,
		TimestampMillis: uint64(s.CapturedAt.UnixMilli()),
	})
	for _, v := range s.Values {
		id := uint32(v.ID)
		switch v.Kind {
		case metrics.KindCounter:
			b = tlv.AppendCounter(b, id, v.Total)
		case metrics.KindGauge:
			if v.IsFloat {
				b = tlv.AppendGaugeFloat(b, id, v.GaugeFloat)
			} else {
				b = tlv.AppendGaugeInt(b, id, v.GaugeInt)
			}
		case metrics.KindTimer:
			b = tlv.AppendTimer(b, id, v.TimerCount, uint64(v.TimerSum))
		}
	}
	return b
}

func toValue(e tlv.Entry, resolver NameResolver) Value {
	v := Value{ID: metrics.MetricID(e.MetricID)}

	name, ok := resolver.NameOf(v.ID)
	if !ok {
		name = fmt.Sprintf("metric-%d", e.MetricID)
	}
	v.Name = name

	switch e.Type {
	case tlv.TypeCounter:
		v.Kind = metrics.KindCounter
		v.Total = e.Total
	case tlv.TypeGauge:
		v.Kind = metrics.KindGauge
		v.IsFloat = e.GaugeIsFloat
		v.GaugeInt = e.GaugeInt
		v.GaugeFloat = e.GaugeFloat
	case tlv.TypeTimer:
		v.Kind = metrics.KindTimer
		v.TimerCount = e.TimerCount
		v.TimerSum = time.Duration(e.TimerSum)
	}
	return v
}
