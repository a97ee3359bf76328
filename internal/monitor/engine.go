package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/targets"
)

// EngineOptions configures an Engine.
type EngineOptions struct {
	Settings     model.Settings
	Prober       Prober
	Tracer       Tracer    // optional
	TraceSink    TraceSink // optional
	Resolver     Resolver  // optional
	TraceTimeout time.Duration
	Logger       *zap.Logger
}

// Engine wires the settings store, registry, scheduler and trace controller
// together.
type Engine struct {
	Settings  *SettingsStore
	Registry  *Registry
	Scheduler *Scheduler
	Traces    *TraceController

	logger *zap.Logger

	// ctx bounds everything the engine starts, including traces requested
	// before Start. Stop cancels it, as does the end of the Start context.
	ctx    context.Context
	cancel context.CancelFunc
	detach func() bool
}

// NewEngine builds an engine. Without a tracer, traces fail immediately.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := NewSettingsStore(opts.Settings)
	registry := NewRegistry(settings.Load().HistoryCap(), opts.Resolver, logger.Named("registry"))
	settings.OnChange(func(s model.Settings) {
		registry.SetHistoryCap(s.HistoryCap())
	})

	tracer := opts.Tracer
	if tracer == nil {
		tracer = TracerFunc(func(context.Context, string) ([]model.Hop, error) {
			return nil, errNoTracer
		})
	}

	e := &Engine{
		Settings:  settings,
		Registry:  registry,
		Scheduler: NewScheduler(settings, registry, opts.Prober, logger.Named("scheduler")),
		Traces:    NewTraceController(registry, tracer, opts.TraceSink, opts.TraceTimeout, logger.Named("trace")),
		logger:    logger,
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	return e
}

// Start begins periodic probing. Cancelling ctx stops the engine's work the
// same way Stop does, without waiting for it.
func (e *Engine) Start(ctx context.Context) {
	e.detach = context.AfterFunc(ctx, e.cancel)
	e.Scheduler.Start(e.ctx)
	s := e.Settings.Load()
	e.logger.Info("engine started",
		zap.Duration("interval", s.Interval),
		zap.Int("warn_threshold_ms", s.WarnThreshold),
		zap.Int("history_cap", s.HistoryCap()),
	)
}

// Stop halts probing and waits for in-flight cycles, traces and lookups.
func (e *Engine) Stop() {
	e.cancel()
	if e.detach != nil {
		e.detach()
	}
	e.Scheduler.Stop()
	e.Traces.Wait()
	e.Registry.Close()
	e.logger.Info("engine stopped")
}

// AddTargets parses free-form target text and registers every address.
func (e *Engine) AddTargets(text string) []model.TargetID {
	return e.Registry.Add(targets.Parse(text))
}

// UpdateSettings validates and applies new settings.
func (e *Engine) UpdateSettings(s model.Settings) error {
	if err := e.Settings.Update(s); err != nil {
		return err
	}
	e.logger.Info("settings updated",
		zap.Duration("interval", s.Interval),
		zap.Int("warn_threshold_ms", s.WarnThreshold),
		zap.Duration("retention", s.Retention),
	)
	return nil
}

// StartTrace traces a target in the background, bound to the engine lifetime.
func (e *Engine) StartTrace(id model.TargetID) bool {
	return e.Traces.Start(e.ctx, id)
}
