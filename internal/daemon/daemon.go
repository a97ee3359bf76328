// Package daemon runs the monitor as a background service.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/monitor"
	"github.com/user/linkpulse/internal/probes"
	"github.com/user/linkpulse/internal/storage"
	"github.com/user/linkpulse/internal/util"
)

// Daemon owns the database, the monitoring engine and the auxiliary jobs.
type Daemon struct {
	config   *util.Config
	logger   *zap.Logger
	db       *storage.DB
	targets  *storage.TargetStorage
	traces   *storage.TraceStorage
	engine   *monitor.Engine
	jobs     *JobScheduler
	stopSync func()

	stopRefresh func()

	pidFile   string
	stopped   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	detached  bool
	startTime time.Time
	mu        sync.RWMutex
}

// New opens storage, builds the engine and restores persisted targets. When
// nothing is stored yet the configured seed targets are added.
func New(cfg *util.Config, logger *zap.Logger) (*Daemon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	prober, err := probes.NewProber(cfg.Probe.Method, probes.Options{
		Timeout:    cfg.Probe.Timeout,
		Count:      cfg.Probe.Count,
		Privileged: cfg.Probe.Privileged,
		TCPPorts:   cfg.Probe.TCPPorts,
		SimLoss:    cfg.Probe.SimLoss,
	}, logger.Named("probe"))
	if err != nil {
		db.Close()
		return nil, err
	}

	traces := storage.NewTraceStorage(db)
	engine := monitor.NewEngine(monitor.EngineOptions{
		Settings:  cfg.Settings(),
		Prober:    prober,
		Tracer:    probes.NewTracerouteProbe(cfg.Trace.MaxHops, cfg.Trace.Wait, logger.Named("traceroute")),
		TraceSink: traces,
		Resolver: monitor.NewDNSResolver(monitor.DNSResolverOptions{
			Rate:       cfg.Resolver.Rate,
			Burst:      cfg.Resolver.Burst,
			Timeout:    cfg.Resolver.Timeout,
			Nameserver: cfg.Resolver.Nameserver,
		}),
		TraceTimeout: cfg.Trace.Timeout,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		config:  cfg,
		logger:  logger.Named("daemon"),
		db:      db,
		targets: storage.NewTargetStorage(db),
		traces:  traces,
		engine:  engine,
		pidFile: filepath.Join(cfg.DataDir, pidFileName),
		stopped: make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.jobs = NewJobScheduler(ctx, logger.Named("jobs"))

	if err := d.restoreTargets(); err != nil {
		engine.Registry.Close()
		db.Close()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) restoreTargets() error {
	defs, err := d.targets.List()
	if err != nil {
		return fmt.Errorf("failed to load targets: %w", err)
	}

	// Persist from here on, so seeded targets are stored too.
	d.stopSync = storage.SyncTargets(d.engine.Registry, d.targets, d.logger)

	seeded, err := d.targets.Seeded()
	if err != nil {
		return err
	}

	switch {
	case len(defs) > 0:
		d.engine.Registry.Restore(defs)
		d.logger.Info("restored targets", zap.Int("count", len(defs)))
	case seeded:
		// Config targets only seed a fresh data dir.
		d.logger.Info("no stored targets")
	default:
		if ids := d.engine.AddTargets(d.config.Targets); len(ids) > 0 {
			d.logger.Info("seeded targets from config", zap.Int("count", len(ids)))
		}
	}

	if !seeded {
		return d.targets.MarkSeeded()
	}
	return nil
}

// Start runs the daemon as a service: PID file, signal handling, monitoring
// and jobs.
func (d *Daemon) Start() error {
	if err := d.start(); err != nil {
		return err
	}

	if err := d.writePIDFile(); err != nil {
		d.Stop()
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.handleSignals()
	}()

	d.logger.Info("daemon started", zap.Int("pid", os.Getpid()))
	return nil
}

// StartEmbedded runs monitoring and jobs inside the calling process, without
// a PID file or signal handling.
func (d *Daemon) StartEmbedded() error {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()
	return d.start()
}

func (d *Daemon) start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	d.engine.Start(d.ctx)
	d.registerJobs()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.jobs.Run()
	}()
	return nil
}

// Wait blocks until Stop has completed.
func (d *Daemon) Wait() {
	<-d.stopped
}

// Done is closed when the daemon begins shutting down.
func (d *Daemon) Done() <-chan struct{} {
	return d.ctx.Done()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("daemon stopping")
	d.cancel()

	done := make(chan struct{})
	go func() {
		d.engine.Stop()
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("daemon stopped gracefully")
	case <-time.After(30 * time.Second):
		d.logger.Warn("daemon stop timed out")
	}

	if err := d.writeStatus(); err != nil {
		d.logger.Warn("failed to write final status", zap.Error(err))
	}
	if d.stopRefresh != nil {
		d.stopRefresh()
	}
	if d.stopSync != nil {
		d.stopSync()
	}
	if !d.isDetached() {
		d.removePIDFile()
	}
	err := d.db.Close()
	close(d.stopped)
	return err
}

// Close releases resources of a daemon that was never started.
func (d *Daemon) Close() error {
	if d.IsRunning() {
		return d.Stop()
	}
	d.cancel()
	d.engine.Registry.Close()
	return d.db.Close()
}

func (d *Daemon) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info("received signal", zap.String("signal", sig.String()))
		// Stop waits on wg, which includes this goroutine.
		go d.Stop()
	case <-d.ctx.Done():
	}
}

func (d *Daemon) writePIDFile() error {
	return os.WriteFile(d.pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func (d *Daemon) removePIDFile() {
	os.Remove(d.pidFile)
}

func (d *Daemon) isDetached() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.detached
}

// IsRunning returns whether the daemon is running.
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// GetStatus returns the daemon status.
func (d *Daemon) GetStatus() *DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return &DaemonStatus{
		Running:   d.running,
		PID:       os.Getpid(),
		StartTime: d.startTime,
		Uptime:    time.Since(d.startTime),
		Jobs:      d.jobs.GetJobStatuses(),
	}
}

// DaemonStatus holds the current daemon status.
type DaemonStatus struct {
	Running   bool
	PID       int
	StartTime time.Time
	Uptime    time.Duration
	Jobs      []JobStatus
}

// Engine returns the monitoring engine.
func (d *Daemon) Engine() *monitor.Engine {
	return d.engine
}

// Traces returns the trace archive.
func (d *Daemon) Traces() *storage.TraceStorage {
	return d.traces
}

// Context returns the daemon context.
func (d *Daemon) Context() context.Context {
	return d.ctx
}
