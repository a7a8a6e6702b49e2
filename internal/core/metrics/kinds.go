// Package metrics holds the writer side of the pipeline: the process-wide
// registry mapping metric names to storage cells, and the lock-free cells
// that absorb updates from any number of concurrent writers.
package metrics

// MetricID is a small stable identifier assigned at first registration.
// IDs are dense and start at 1; they never change for the process lifetime.
type MetricID uint32

// Kind classifies a metric's storage and wire representation.
type Kind uint8

const (
	KindCounter Kind = iota + 1
	KindGauge
	KindTimer
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindTimer:
		return "timer"
	default:
		return "unknown"
	}
}

// OverflowPolicy selects the behavior when a counter wraps past its
// 64-bit width.
type OverflowPolicy uint8

const (
	// OverflowWrap lets the counter wrap silently. This is the documented
	// release behavior, not a defect.
	OverflowWrap OverflowPolicy = iota
	// OverflowFatal panics on wrap so instrumentation bugs surface during
	// development runs.
	OverflowFatal
)

// String returns the configuration literal for the policy.
func (p OverflowPolicy) String() string {
	if p == OverflowFatal {
		return "fatal"
	}
	return "wrap"
}
