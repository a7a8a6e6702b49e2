package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/akoshelev/metric-proto/internal/core/metrics"
	"github.com/akoshelev/metric-proto/internal/core/observability/log"
	"github.com/akoshelev/metric-proto/internal/core/snapshot"
	"github.com/akoshelev/metric-proto/pkg/handoff"
)

// Engine errors
var (
	ErrAlreadyStarted = errors.New("pipeline: engine already started")
	ErrNotStarted     = errors.New("pipeline: engine not started")
)

// Engine owns the whole pipeline: one registry absorbing writer updates, a
// packer capturing snapshots on a fixed period, a bounded handoff channel
// and a reader forwarding decoded snapshots to a sink. There is no implicit
// global instance; callers construct an engine and pass its registry to
// their writers.
type Engine struct {
	cfg      Config
	registry *metrics.Registry
	channel  *handoff.Channel[*snapshot.Buffer]
	packer   *snapshot.Packer
	reader   *Reader
	logger   *log.Logger

	cancel  context.CancelFunc
	group   *errgroup.Group
	started atomic.Bool
}

// New builds an engine from cfg, delivering decoded snapshots to sink.
func New(cfg Config, sink Sink, logger *log.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Provide()
	}

	registry := metrics.NewRegistry(cfg.overflowPolicy())
	channel := handoff.New[*snapshot.Buffer](cfg.ChannelCapacity)
	packer := snapshot.NewPacker(registry, channel, snapshot.PackerConfig{
		Interval:    cfg.PackInterval,
		Policy:      cfg.backpressurePolicy(),
		WaitTimeout: cfg.Backpressure.WaitTimeout,
	}, logger)
	reader := NewReader(channel, registry, sink, logger)

	return &Engine{
		cfg:      cfg,
		registry: registry,
		channel:  channel,
		packer:   packer,
		reader:   reader,
		logger:   logger.With(log.String("component", "engine")),
	}, nil
}

// Registry returns the registry writers should register their handles with.
func (e *Engine) Registry() *metrics.Registry {
	return e.registry
}

// Start launches the packer and reader tasks. The packer stops when ctx
// ends; the reader keeps draining until the packer's final flush closes the
// channel, so shutdown never strands a buffered snapshot.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	g, gctx := errgroup.WithContext(runCtx)
	e.group = g
	g.Go(func() error { return e.packer.Run(gctx) })
	g.Go(func() error { return e.reader.Run(context.WithoutCancel(gctx)) })

	e.logger.Info("pipeline started",
		log.Duration("pack_interval", e.cfg.PackInterval),
		log.Int("channel_capacity", e.cfg.ChannelCapacity),
		log.String("backpressure", e.cfg.Backpressure.Policy))
	return nil
}

// Stop signals shutdown and waits for the packer to flush and the reader to
// drain, or for ctx to expire.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started.Load() {
		return ErrNotStarted
	}
	e.cancel()

	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()

	select {
	case err := <-done:
		e.logger.Info("pipeline stopped",
			log.Uint64("snapshots", e.packer.Sequence()),
			log.Uint64("dropped", e.packer.Dropped()))
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the packer's dropped-snapshot count.
func (e *Engine) Dropped() uint64 {
	return e.packer.Dropped()
}

// Gaps returns the reader's observed sequence gap count.
func (e *Engine) Gaps() uint64 {
	return e.reader.Gaps()
}
