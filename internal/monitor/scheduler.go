package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/linkpulse/internal/model"
)

// batchSize bounds the number of concurrent probes within a cycle.
const batchSize = 5

// CycleReport summarizes one committed monitoring cycle.
type CycleReport struct {
	Started   time.Time
	Duration  time.Duration
	Probed    int
	Committed int
	Faults    int
}

// Scheduler probes all active targets periodically. At most one cycle runs at
// a time; ticks that arrive while a cycle is in flight are skipped.
type Scheduler struct {
	settings *SettingsStore
	registry *Registry
	prober   Prober
	batch    int
	logger   *zap.Logger
	now      func() time.Time

	// guard is held from the first probe until the commit returns.
	guard sync.Mutex

	trigger chan struct{}
	rearm   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler probing registry targets with prober.
func NewScheduler(settings *SettingsStore, registry *Registry, prober Prober, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		settings: settings,
		registry: registry,
		prober:   prober,
		batch:    batchSize,
		logger:   logger,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		rearm:    make(chan struct{}, 1),
	}
	settings.OnChange(func(model.Settings) {
		select {
		case s.rearm <- struct{}{}:
		default:
		}
	})
	return s
}

// Start begins the timer loop. The first cycle runs immediately; the timer is
// re-armed after every tick with the interval current at that moment, and
// right away when an update changes the interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch()

		interval := s.settings.Load().Interval
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-timer.C:
				s.dispatch()
				interval = s.settings.Load().Interval
				timer.Reset(interval)
			case <-s.rearm:
				if next := s.settings.Load().Interval; next != interval {
					s.logger.Debug("interval changed", zap.Duration("from", interval), zap.Duration("to", next))
					interval = next
					timer.Reset(interval)
				}
			case <-s.trigger:
				s.dispatch()
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Running reports whether the scheduler loop is active.
func (s *Scheduler) Running() bool {
	return s.ctx != nil && s.ctx.Err() == nil
}

// Trigger requests an immediate cycle. It is subject to the same overlap
// guard as timer ticks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Scheduler) dispatch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunCycle(s.ctx)
	}()
}

// RunCycle probes every active target and commits the results at once. It
// returns false without probing when another cycle is in flight or there are
// no active targets, and false without committing when ctx is cancelled
// before all probes return.
func (s *Scheduler) RunCycle(ctx context.Context) (CycleReport, bool) {
	if !s.guard.TryLock() {
		cyclesTotal.WithLabelValues(cycleSkippedBusy).Inc()
		s.logger.Debug("cycle skipped, previous cycle still running")
		return CycleReport{}, false
	}
	defer s.guard.Unlock()

	targets := s.registry.Active()
	if len(targets) == 0 {
		cyclesTotal.WithLabelValues(cycleSkippedIdle).Inc()
		return CycleReport{}, false
	}

	settings := s.settings.Load()
	report := CycleReport{Started: s.now(), Probed: len(targets)}
	observations := make([]Observation, len(targets))
	var faults atomic.Int64

	for i := 0; i < len(targets); i += s.batch {
		end := min(i+s.batch, len(targets))

		var g errgroup.Group
		for j := i; j < end; j++ {
			g.Go(func() error {
				res, fault := s.probe(ctx, targets[j].Address, settings.WarnThreshold)
				if fault {
					faults.Add(1)
				}
				observations[j] = Observation{ID: targets[j].ID, Result: res}
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			cyclesTotal.WithLabelValues(cycleAborted).Inc()
			s.logger.Info("cycle aborted, results discarded", zap.Int("probed", end))
			return CycleReport{}, false
		}
	}

	report.Committed = s.registry.Commit(observations)
	report.Faults = int(faults.Load())
	report.Duration = s.now().Sub(report.Started)

	for _, o := range observations {
		probesTotal.WithLabelValues(o.Result.Outcome.String()).Inc()
	}
	cyclesTotal.WithLabelValues(cycleCommitted).Inc()
	cycleDuration.Observe(report.Duration.Seconds())

	s.logger.Debug("cycle committed",
		zap.Int("probed", report.Probed),
		zap.Int("committed", report.Committed),
		zap.Int("faults", report.Faults),
		zap.Duration("duration", report.Duration),
	)
	return report, true
}

// probe runs one probe and converts executor errors and panics into a
// failed result.
func (s *Scheduler) probe(ctx context.Context, addr string, warnMs int) (res model.ProbeResult, fault bool) {
	defer func() {
		if rec := recover(); rec != nil {
			executorFaults.Inc()
			s.logger.Warn("probe executor panicked", zap.String("address", addr), zap.Any("panic", rec))
			res = model.ProbeResult{Timestamp: s.now(), Outcome: model.OutcomeFailed}
			fault = true
		}
	}()

	m, err := s.prober.Probe(ctx, addr)
	ts := s.now()
	if err != nil {
		executorFaults.Inc()
		s.logger.Debug("probe executor error", zap.String("address", addr), zap.Error(err))
		return model.ProbeResult{Timestamp: ts, Outcome: model.OutcomeFailed}, true
	}
	return result(m, ts, warnMs), false
}
