// Package tlv implements the binary Type-Length-Value format used to move
// metric snapshots between the writer side and the reader side.
//
// A snapshot buffer is a framing header followed by a concatenation of
// self-delimiting records. All fixed-width fields are little-endian so the
// byte layout is identical on every platform and a stream can be decoded
// incrementally without buffering the whole input.
package tlv

import (
	"encoding/binary"
	"math"
)

// RecordType identifies the payload layout of a record.
type RecordType uint8

// Record type tags
const (
	TypeCounter RecordType = 1
	TypeGauge   RecordType = 2
	TypeTimer   RecordType = 3
)

// String returns a human-readable name for the record type.
func (t RecordType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// Gauge payload sub-tags
const (
	GaugeSubInt   uint8 = 0
	GaugeSubFloat uint8 = 1
)

// FormatVersion is the current snapshot framing version.
const FormatVersion uint8 = 1

// Magic opens every snapshot buffer.
var Magic = [4]byte{'M', 'T', 'L', 'V'}

// Wire sizes
const (
	HeaderSize       = 4 + 1 + 8 + 8 // magic + version + sequence + timestamp
	recordHeaderSize = 1 + 4         // type + length

	counterValueSize = 4 + 8     // metric id + total
	gaugeValueSize   = 4 + 1 + 8 // metric id + sub-tag + value bits
	timerValueSize   = 4 + 8 + 8 // metric id + count + sum
)

// Header frames one snapshot buffer.
type Header struct {
	Version         uint8
	Sequence        uint64
	TimestampMillis uint64
}

// Record is one self-delimiting type-length-value unit. The length field is
// implied by len(Value) on encode and validated against it on decode.
type Record struct {
	Type  RecordType
	Value []byte
}

// Entry is the decoded form of one snapshot record.
type Entry struct {
	Type     RecordType
	MetricID uint32

	// Counter payload
	Total uint64

	// Gauge payload
	GaugeIsFloat bool
	GaugeInt     int64
	GaugeFloat   float64

	// Timer payload
	TimerCount uint64
	TimerSum   uint64
}

// AppendHeader appends the snapshot framing header to b.
func AppendHeader(b []byte, h Header) []byte {
	b = append(b, Magic[:]...)
	b = append(b, h.Version)
	b = binary.LittleEndian.AppendUint64(b, h.Sequence)
	b = binary.LittleEndian.AppendUint64(b, h.TimestampMillis)
	return b
}

// AppendRecord appends one record to b. It never fails for well-formed input.
func AppendRecord(b []byte, r Record) []byte {
	b = append(b, byte(r.Type))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.Value)))
	b = append(b, r.Value...)
	return b
}

// AppendCounter appends a counter entry record to b.
func AppendCounter(b []byte, id uint32, total uint64) []byte {
	b = append(b, byte(TypeCounter))
	b = binary.LittleEndian.AppendUint32(b, counterValueSize)
	b = binary.LittleEndian.AppendUint32(b, id)
	b = binary.LittleEndian.AppendUint64(b, total)
	return b
}

// AppendGaugeInt appends an integer gauge entry record to b.
func AppendGaugeInt(b []byte, id uint32, v int64) []byte {
	b = append(b, byte(TypeGauge))
	b = binary.LittleEndian.AppendUint32(b, gaugeValueSize)
	b = binary.LittleEndian.AppendUint32(b, id)
	b = append(b, GaugeSubInt)
	b = binary.LittleEndian.AppendUint64(b, uint64(v))
	return b
}

// AppendGaugeFloat appends a floating-point gauge entry record to b.
func AppendGaugeFloat(b []byte, id uint32, v float64) []byte {
	b = append(b, byte(TypeGauge))
	b = binary.LittleEndian.AppendUint32(b, gaugeValueSize)
	b = binary.LittleEndian.AppendUint32(b, id)
	b = append(b, GaugeSubFloat)
	b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
	return b
}

// AppendTimer appends a timer entry record to b.
func AppendTimer(b []byte, id uint32, count, sum uint64) []byte {
	b = append(b, byte(TypeTimer))
	b = binary.LittleEndian.AppendUint32(b, timerValueSize)
	b = binary.LittleEndian.AppendUint32(b, id)
	b = binary.LittleEndian.AppendUint64(b, count)
	b = binary.LittleEndian.AppendUint64(b, sum)
	return b
}

// ParseEntry decodes the payload of a snapshot record into an Entry.
// It returns ErrCorruptRecord when the payload size does not match the
// declared type and ErrUnknownType for an unrecognized tag.
func ParseEntry(r Record) (Entry, error) {
	e := Entry{Type: r.Type}
	switch r.Type {
	case TypeCounter:
		if len(r.Value) != counterValueSize {
			return Entry{}, ErrCorruptRecord
		}
		e.MetricID = binary.LittleEndian.Uint32(r.Value)
		e.Total = binary.LittleEndian.Uint64(r.Value[4:])
	case TypeGauge:
		if len(r.Value) != gaugeValueSize {
			return Entry{}, ErrCorruptRecord
		}
		e.MetricID = binary.LittleEndian.Uint32(r.Value)
		bits := binary.LittleEndian.Uint64(r.Value[5:])
		switch r.Value[4] {
		case GaugeSubInt:
			e.GaugeInt = int64(bits)
		case GaugeSubFloat:
			e.GaugeIsFloat = true
			e.GaugeFloat = math.Float64frombits(bits)
		default:
			return Entry{}, ErrCorruptRecord
		}
	case TypeTimer:
		if len(r.Value) != timerValueSize {
			return Entry{}, ErrCorruptRecord
		}
		e.MetricID = binary.LittleEndian.Uint32(r.Value)
		e.TimerCount = binary.LittleEndian.Uint64(r.Value[4:])
		e.TimerSum = binary.LittleEndian.Uint64(r.Value[12:])
	default:
		return Entry{}, ErrUnknownType
	}
	return e, nil
}
