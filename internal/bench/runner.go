// Package bench drives the pipeline under load: N logical writer tasks
// hammer one counter until the reader observes a target value. An "atomic"
// mode using a single shared atomic counter serves as the baseline the
// pipeline is compared against.
package bench

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/pipeline"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
)

// Mode selects what the writer tasks increment.
type Mode string

const (
	// ModePipeline drives the full engine: registry cells, packer, handoff
	// channel and reader.
	ModePipeline Mode = "pipeline"
	// ModeAtomic increments one bare shared atomic counter. Baseline.
	ModeAtomic Mode = "atomic"
)

// Harness errors
var (
	ErrUnknownMode = errors.New("bench: unknown mode")
)

// The benchmark counter every writer task increments.
const counterName = "bench.items"

// Writers measure one increment out of this many into the latency histogram
// to keep measurement overhead off the hot path.
const sampleEvery = 1024

// yieldEvery matches the original workload shape: a cooperative yield every
// so many increments so tasks far outnumbering cores still interleave.
const yieldEvery = 100

// Options configures a benchmark run.
type Options struct {
	Mode     Mode
	Tasks    int
	MaxValue uint64
	Pipeline pipeline.Config

	// Sink, when set, additionally receives every decoded snapshot in
	// pipeline mode. Used to attach exporters without touching the
	// target-watching sink.
	Sink pipeline.Sink
}

// LatencySummary holds writer-call latency percentiles in nanoseconds.
type LatencySummary struct {
	P50     time.Duration
	P90     time.Duration
	P99     time.Duration
	Max     time.Duration
	Samples int64
}

// Report is the outcome of one benchmark run.
type Report struct {
	RunID      string
	Mode       Mode
	Tasks      int
	Elapsed    time.Duration
	Final      uint64
	Throughput float64
	Dropped    uint64
	Gaps       uint64
	Latency    LatencySummary
}

// Run executes one benchmark and blocks until the target value is observed
// or ctx ends.
func Run(ctx context.Context, opts Options, logger *log.Logger) (*Report, error) {
	if logger == nil {
		logger = log.Provide()
	}
	if opts.Tasks < 1 {
		opts.Tasks = 1
	}

	runID := uuid.NewString()
	logger = logger.With(log.String("run_id", runID), log.String("mode", string(opts.Mode)))
	logger.Info("benchmark starting",
		log.Int("tasks", opts.Tasks),
		log.Uint64("max_value", opts.MaxValue),
		log.Int("gomaxprocs", runtime.GOMAXPROCS(0)))

	switch opts.Mode {
	case ModePipeline:
		return runPipeline(ctx, opts, runID, logger)
	case ModeAtomic:
		return runAtomic(ctx, opts, runID, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}
}

// latencyRecorder samples writer-call durations into an HDR histogram.
// Recording happens once per sampleEvery increments, so the mutex sees
// negligible traffic.
type latencyRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	// 1ns to 1min, 3 significant figures.
	return &latencyRecorder{hist: hdrhistogram.New(1, int64(time.Minute), 3)}
}

func (r *latencyRecorder) record(d time.Duration) {
	ns := d.Nanoseconds()
	if ns < 1 {
		ns = 1
	}
	r.mu.Lock()
	_ = r.hist.RecordValue(ns)
	r.mu.Unlock()
}

func (r *latencyRecorder) summary() LatencySummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return LatencySummary{
		P50:     time.Duration(r.hist.ValueAtQuantile(50)),
		P90:     time.Duration(r.hist.ValueAtQuantile(90)),
		P99:     time.Duration(r.hist.ValueAtQuantile(99)),
		Max:     time.Duration(r.hist.Max()),
		Samples: r.hist.TotalCount(),
	}
}

// spawnWriters submits one writer task per logical writer onto an ants pool
// and returns a wait function.
func spawnWriters(pool *ants.Pool, tasks int, writer func(task int)) (wait func(), err error) {
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		task := i
		if err := pool.Submit(func() {
			defer wg.Done()
			writer(task)
		}); err != nil {
			wg.Done()
			return nil, fmt.Errorf("bench: submitting writer task: %w", err)
		}
	}
	return wg.Wait, nil
}

func runPipeline(ctx context.Context, opts Options, runID string, logger *log.Logger) (*Report, error) {
	var reached atomic.Bool
	target := make(chan struct{})

	sink := pipeline.SinkFunc(func(s *snapshot.Snapshot) {
		for _, v := range s.Values {
			if v.Name == counterName && v.Total >= opts.MaxValue {
				if reached.CompareAndSwap(false, true) {
					close(target)
				}
			}
		}
		if opts.Sink != nil {
			opts.Sink.Consume(s)
		}
	})

	engine, err := pipeline.New(opts.Pipeline, sink, logger)
	if err != nil {
		return nil, err
	}
	if err = engine.Start(ctx); err != nil {
		return nil, err
	}

	counter, err := engine.Registry().Counter(counterName)
	if err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(opts.Tasks, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("bench: creating writer pool: %w", err)
	}
	defer pool.Release()

	recorder := newLatencyRecorder()
	var stop atomic.Bool
	start := time.Now()

	wait, err := spawnWriters(pool, opts.Tasks, func(int) {
		for i := 0; !stop.Load(); i++ {
			if i%sampleEvery == 0 {
				t0 := time.Now()
				counter.Inc()
				recorder.record(time.Since(t0))
			} else {
				counter.Inc()
			}
			if i%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
	})
	if err != nil {
		return nil, err
	}

	select {
	case <-target:
	case <-ctx.Done():
	}
	stop.Store(true)
	wait()
	elapsed := time.Since(start)

	final := counter.Cell().CounterTotal()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = engine.Stop(stopCtx); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, err
	}

	logger.Info("benchmark finished",
		log.Uint64("final", final),
		log.Duration("elapsed", elapsed),
		log.Uint64("dropped", engine.Dropped()))

	return &Report{
		RunID:      runID,
		Mode:       opts.Mode,
		Tasks:      opts.Tasks,
		Elapsed:    elapsed,
		Final:      final,
		Throughput: float64(final) / elapsed.Seconds(),
		Dropped:    engine.Dropped(),
		Gaps:       engine.Gaps(),
		Latency:    recorder.summary(),
	}, nil
}

func runAtomic(ctx context.Context, opts Options, runID string, logger *log.Logger) (*Report, error) {
	pool, err := ants.NewPool(opts.Tasks, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("bench: creating writer pool: %w", err)
	}
	defer pool.Release()

	var counter atomic.Uint64
	recorder := newLatencyRecorder()
	var stop atomic.Bool
	start := time.Now()

	wait, err := spawnWriters(pool, opts.Tasks, func(int) {
		for i := 0; !stop.Load(); i++ {
			if i%sampleEvery == 0 {
				t0 := time.Now()
				counter.Add(1)
				recorder.record(time.Since(t0))
			} else {
				counter.Add(1)
			}
			if i%yieldEvery == 0 {
				runtime.Gosched()
			}
		}
	})
	if err != nil {
		return nil, err
	}

	// Poll the shared counter the way the reader would observe it.
	ticker := time.NewTicker(100 * time.Microsecond)
	defer ticker.Stop()
poll:
	for {
		select {
		case <-ticker.C:
			if counter.Load() >= opts.MaxValue {
				break poll
			}
		case <-ctx.Done():
			break poll
		}
	}
	stop.Store(true)
	wait()
	elapsed := time.Since(start)

	if err = ctx.Err(); err != nil {
		return nil, err
	}

	final := counter.Load()
	logger.Info("benchmark finished",
		log.Uint64("final", final),
		log.Duration("elapsed", elapsed))

	return &Report{
		RunID:      runID,
		Mode:       opts.Mode,
		Tasks:      opts.Tasks,
		Elapsed:    elapsed,
		Final:      final,
		Throughput: float64(final) / elapsed.Seconds(),
		Latency:    recorder.summary(),
	}, nil
}
