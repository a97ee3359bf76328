package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
)

var (
	// ErrTraceInProgress is returned when a trace for the target is already running.
	ErrTraceInProgress = errors.New("trace already in progress")
	// ErrUnknownTarget is returned for ids that are not (or no longer) registered.
	ErrUnknownTarget = errors.New("unknown target")

	errNoTracer = errors.New("no tracer configured")
)

// TraceController runs on-demand path traces, at most one per target.
// Traces only ever touch the target's trace state.
type TraceController struct {
	registry *Registry
	tracer   Tracer
	sink     TraceSink
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewTraceController creates a controller. sink may be nil; timeout bounds
// each trace when positive.
func NewTraceController(registry *Registry, tracer Tracer, sink TraceSink, timeout time.Duration, logger *zap.Logger) *TraceController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TraceController{
		registry: registry,
		tracer:   tracer,
		sink:     sink,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Trace runs a path trace to the target and stores the outcome in its trace
// state. A failed trace stores an empty hop list.
func (c *TraceController) Trace(ctx context.Context, id model.TargetID) ([]model.Hop, error) {
	addr, found, busy := c.registry.beginTrace(id)
	switch {
	case !found:
		return nil, ErrUnknownTarget
	case busy:
		return nil, ErrTraceInProgress
	}
	return c.run(ctx, id, addr)
}

// Start runs a trace in the background. It reports whether a trace was
// started.
func (c *TraceController) Start(ctx context.Context, id model.TargetID) bool {
	addr, found, busy := c.registry.beginTrace(id)
	if !found || busy {
		return false
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.run(ctx, id, addr); err != nil {
			c.logger.Debug("background trace failed", zap.String("target", string(id)), zap.Error(err))
		}
	}()
	return true
}

// Wait blocks until all background traces have finished.
func (c *TraceController) Wait() {
	c.wg.Wait()
}

func (c *TraceController) run(ctx context.Context, id model.TargetID, addr string) ([]model.Hop, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Info("trace started", zap.String("target", string(id)), zap.String("address", addr))
	hops, err := c.execute(ctx, addr)
	finished := c.now()

	state := model.TraceState{Status: model.TraceDone, Hops: hops, FinishedAt: finished}
	if err != nil {
		state = model.TraceState{Status: model.TraceFailed, Hops: []model.Hop{}, FinishedAt: finished}
		tracesTotal.WithLabelValues("failed").Inc()
		c.logger.Warn("trace failed", zap.String("address", addr), zap.Error(err))
	} else {
		tracesTotal.WithLabelValues("done").Inc()
		c.logger.Info("trace finished", zap.String("address", addr), zap.Int("hops", len(hops)))
	}
	c.registry.finishTrace(id, state)

	if c.sink != nil {
		rec := &model.TraceResult{
			TargetID:  id,
			Address:   addr,
			Timestamp: finished,
			Status:    state.Status,
			Hops:      state.Hops,
		}
		if serr := c.sink.Save(rec); serr != nil {
			c.logger.Warn("failed to archive trace", zap.String("address", addr), zap.Error(serr))
		}
	}

	if err != nil {
		return nil, err
	}
	return hops, nil
}

func (c *TraceController) execute(ctx context.Context, addr string) (hops []model.Hop, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			hops = nil
			err = fmt.Errorf("tracer panicked: %v", rec)
		}
	}()
	hops, err = c.tracer.Trace(ctx, addr)
	if hops == nil {
		hops = []model.Hop{}
	}
	return hops, err
}
