package metrics

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// Cell is the mutable storage for one registered metric. A cell's kind is
// fixed for its lifetime. All mutation goes through atomic read-modify-write
// primitives; no cell operation ever blocks or suspends, and the cost of an
// update does not depend on the number of concurrent writers.
//
// Field usage by kind:
//   - counter: value holds the running total
//   - gauge:   value holds the last written int64 or float64 bits
//   - timer:   value holds the duration sum in nanoseconds, count the samples
type Cell struct {
	value atomic.Uint64
	count atomic.Uint64

	id         MetricID
	name       string
	kind       Kind
	floatGauge bool
	fatalWrap  bool
}

// ID returns the stable metric identifier.
func (c *Cell) ID() MetricID { return c.id }

// Name returns the metric name given at registration.
func (c *Cell) Name() string { return c.name }

// Kind returns the metric kind.
func (c *Cell) Kind() Kind { return c.kind }

// FloatGauge reports whether a gauge cell holds float64 values.
func (c *Cell) FloatGauge() bool { return c.floatGauge }

// add accumulates a counter delta.
func (c *Cell) add(delta uint64) {
	next := c.value.Add(delta)
	// next < delta is only possible when the addition wrapped past 2^64.
	if next < delta && c.fatalWrap {
		panic(fmt.Sprintf("metrics: counter %q wrapped past 64 bits", c.name))
	}
}

// CounterTotal reads the counter's running total.
func (c *Cell) CounterTotal() uint64 {
	return c.value.Load()
}

// GaugeInt reads the gauge as an int64.
func (c *Cell) GaugeInt() int64 {
	return int64(c.value.Load())
}

// GaugeFloat reads the gauge as a float64.
func (c *Cell) GaugeFloat() float64 {
	return math.Float64frombits(c.value.Load())
}

// TimerSnapshot reads the sample count and nanosecond sum. The two loads are
// individually atomic; a reader racing a writer may observe a count without
// its matching sum, which is within the pipeline's consistency contract.
func (c *Cell) TimerSnapshot() (count, sum uint64) {
	return c.count.Load(), c.value.Load()
}

// Counter is a writer handle for a monotonically increasing metric.
// Handles are cheap value types meant to be cached by writers.
type Counter struct {
	cell *Cell
}

// Add accumulates delta into the counter.
func (h Counter) Add(delta uint64) { h.cell.add(delta) }

// Inc accumulates one.
func (h Counter) Inc() { h.cell.add(1) }

// Cell returns the underlying storage cell.
func (h Counter) Cell() *Cell { return h.cell }

// Gauge is a writer handle for a last-write-wins int64 metric.
type Gauge struct {
	cell *Cell
}

// Set replaces the gauge value. Under racing writers one of them wins and is
// visible to every subsequent reader; relative order is not defined.
func (h Gauge) Set(v int64) { h.cell.value.Store(uint64(v)) }

// Cell returns the underlying storage cell.
func (h Gauge) Cell() *Cell { return h.cell }

// FloatGauge is a writer handle for a last-write-wins float64 metric.
type FloatGauge struct {
	cell *Cell
}

// Set replaces the gauge value.
func (h FloatGauge) Set(v float64) { h.cell.value.Store(math.Float64bits(v)) }

// Cell returns the underlying storage cell.
func (h FloatGauge) Cell() *Cell { return h.cell }

// Timer is a writer handle for an accumulated duration metric held as a
// fixed sum+count pair, keeping every observation O(1) and allocation-free.
type Timer struct {
	cell *Cell
}

// Observe records one duration sample.
func (h Timer) Observe(d time.Duration) {
	h.cell.count.Add(1)
	h.cell.value.Add(uint64(d.Nanoseconds()))
}

// Cell returns the underlying storage cell.
func (h Timer) Cell() *Cell { return h.cell }
