// Package export holds the external sinks fed by the metric reader: a
// colorized console printer and a websocket streamer that re-broadcasts
// snapshots to connected clients.
package export

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
)

// ConsoleSink pretty-prints each decoded snapshot to a writer.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer

	header *color.Color
	name   *color.Color
	kind   *color.Color
}

// NewConsoleSink creates a sink writing to out. Pass os.Stdout for terminal
// output; colors degrade automatically on non-terminal writers.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{
		out:    out,
		header: color.New(color.FgCyan, color.Bold),
		name:   color.New(color.FgYellow),
		kind:   color.New(color.FgBlue),
	}
}

// Consume implements the reader's sink contract.
func (s *ConsoleSink) Consume(snap *snapshot.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.header.Fprintf(s.out, "snapshot #%d @ %s (%d metrics)\n",
		snap.Sequence, snap.CapturedAt.Format(time.RFC3339Nano), len(snap.Values))

	for _, v := range snap.Values {
		_, _ = s.name.Fprintf(s.out, "  %-32s", v.Name)
		_, _ = s.kind.Fprintf(s.out, " %-8s", v.Kind)
		_, _ = fmt.Fprintf(s.out, " %s\n", formatValue(v))
	}
}

func formatValue(v snapshot.Value) string {
	switch v.Kind {
	case metrics.KindCounter:
		return fmt.Sprintf("%d", v.Total)
	case metrics.KindGauge:
		if v.IsFloat {
			return fmt.Sprintf("%g", v.GaugeFloat)
		}
		return fmt.Sprintf("%d", v.GaugeInt)
	case metrics.KindTimer:
		if v.TimerCount == 0 {
			return "count=0"
		}
		mean := time.Duration(uint64(v.TimerSum) / v.TimerCount)
		return fmt.Sprintf("count=%d sum=%s mean=%s", v.TimerCount, v.TimerSum, mean)
	default:
		return "?"
	}
}

// Tee fans one snapshot out to several sinks in order.
func Tee(sinks ...Sink) Sink {
	return teeSink(sinks)
}

// Sink mirrors the reader's sink contract so export stays decoupled from the
// pipeline package.
type Sink interface {
	Consume(*snapshot.Snapshot)
}

type teeSink []Sink

func (t teeSink) Consume(s *snapshot.Snapshot) {
	for _, sink := range t {
		sink.Consume(s)
	}
}
