package monitor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
)

// EventType identifies a registry mutation.
type EventType string

const (
	EventAdded         EventType = "added"
	EventRemoved       EventType = "removed"
	EventToggled       EventType = "toggled"
	EventRenamed       EventType = "renamed"
	EventCommitted     EventType = "committed"
	EventNameResolved  EventType = "name_resolved"
	EventTraceStarted  EventType = "trace_started"
	EventTraceFinished EventType = "trace_finished"
	EventCapChanged    EventType = "cap_changed"
)

// Event describes a published registry change.
type Event struct {
	Type    EventType
	IDs     []model.TargetID
	Version uint64
}

// ProbeTarget is the part of a target the scheduler needs to probe it.
type ProbeTarget struct {
	ID      model.TargetID
	Address string
}

// Observation is a probe result addressed to a target.
type Observation struct {
	ID     model.TargetID
	Result model.ProbeResult
}

// Snapshot is an immutable point-in-time view of all targets.
type Snapshot struct {
	Version    uint64
	HistoryCap int
	Targets    []model.Target // insertion order
}

// Get returns the target with the given id.
func (s Snapshot) Get(id model.TargetID) (model.Target, bool) {
	for _, t := range s.Targets {
		if t.ID == id {
			return t, true
		}
	}
	return model.Target{}, false
}

// Counts returns the number of active and paused targets.
func (s Snapshot) Counts() (active, paused int) {
	for _, t := range s.Targets {
		if t.Active {
			active++
		} else {
			paused++
		}
	}
	return active, paused
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Registry owns the set of monitored targets. All mutations are serialized
// under one lock and each publishes a new Snapshot; readers never block writers.
type Registry struct {
	mu         sync.Mutex
	order      []model.TargetID
	targets    map[model.TargetID]model.Target
	historyCap int
	version    uint64

	snap atomic.Pointer[Snapshot]

	subMu   sync.RWMutex
	subs    []subscriber
	nextSub uint64

	resolver Resolver
	now      func() time.Time
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates an empty registry. A nil resolver makes every target's
// name resolve to its address immediately.
func NewRegistry(historyCap int, resolver Resolver, logger *zap.Logger) *Registry {
	if historyCap < 1 {
		historyCap = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		targets:    make(map[model.TargetID]model.Target),
		historyCap: historyCap,
		resolver:   resolver,
		now:        time.Now,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
	r.snap.Store(&Snapshot{HistoryCap: historyCap})
	return r
}

// Close cancels pending name resolutions and waits for them to return.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

// Add creates one target per address, in input order. Duplicates are allowed.
func (r *Registry) Add(addresses []string) []model.TargetID {
	if len(addresses) == 0 {
		return nil
	}

	ids := make([]model.TargetID, 0, len(addresses))
	r.mu.Lock()
	now := r.now()
	for _, addr := range addresses {
		id := model.TargetID(uuid.NewString())
		t := model.NewTarget(id, addr, now)
		if r.resolver == nil {
			t.Name = model.NameState{Status: model.NameResolved, Value: addr}
		}
		r.targets[id] = t
		r.order = append(r.order, id)
		ids = append(ids, id)
	}
	ev := r.publishLocked(EventAdded, ids)
	r.mu.Unlock()

	r.logger.Info("targets added", zap.Int("count", len(ids)))
	r.notify(ev)
	r.resolveNames(ids, addresses)
	return ids
}

// Restore re-creates persisted target definitions, keeping their ids.
// Definitions whose id is already present are skipped.
func (r *Registry) Restore(defs []model.TargetDef) []model.TargetID {
	var (
		ids   []model.TargetID
		addrs []string
	)
	r.mu.Lock()
	now := r.now()
	for _, d := range defs {
		if d.ID == "" {
			continue
		}
		if _, ok := r.targets[d.ID]; ok {
			continue
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = now
		}
		t := model.NewTarget(d.ID, d.Address, created)
		t.Label = d.Label
		t.Active = d.Active
		if r.resolver == nil {
			t.Name = model.NameState{Status: model.NameResolved, Value: d.Address}
		}
		r.targets[d.ID] = t
		r.order = append(r.order, d.ID)
		ids = append(ids, d.ID)
		addrs = append(addrs, d.Address)
	}
	if len(ids) == 0 {
		r.mu.Unlock()
		return nil
	}
	ev := r.publishLocked(EventAdded, ids)
	r.mu.Unlock()

	r.logger.Info("targets restored", zap.Int("count", len(ids)))
	r.notify(ev)
	r.resolveNames(ids, addrs)
	return ids
}

// Remove deletes a target. Unknown ids are ignored.
func (r *Registry) Remove(id model.TargetID) {
	r.mu.Lock()
	if _, ok := r.targets[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.targets, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	ev := r.publishLocked(EventRemoved, []model.TargetID{id})
	r.mu.Unlock()
	r.notify(ev)
}

// Toggle flips a target between active and paused. Unknown ids are ignored.
func (r *Registry) Toggle(id model.TargetID) {
	r.update(EventToggled, id, func(t *model.Target) bool {
		t.Active = !t.Active
		return true
	})
}

// Rename sets the target's label; an empty name clears it. Unknown ids are ignored.
func (r *Registry) Rename(id model.TargetID, name string) {
	label := model.NewLabel(strings.TrimSpace(name))
	r.update(EventRenamed, id, func(t *model.Target) bool {
		t.Label = label
		return true
	})
}

// Snapshot returns the latest published view.
func (r *Registry) Snapshot() Snapshot {
	return *r.snap.Load()
}

// Get returns the current state of a target.
func (r *Registry) Get(id model.TargetID) (model.Target, bool) {
	return r.Snapshot().Get(id)
}

// Active returns the active targets in insertion order.
func (r *Registry) Active() []ProbeTarget {
	snap := r.Snapshot()
	out := make([]ProbeTarget, 0, len(snap.Targets))
	for _, t := range snap.Targets {
		if t.Active {
			out = append(out, ProbeTarget{ID: t.ID, Address: t.Address})
		}
	}
	return out
}

// HistoryCap returns the current per-target history cap.
func (r *Registry) HistoryCap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyCap
}

// Commit folds all observations in one critical section and publishes a
// single snapshot. Observations for unknown ids are dropped. It returns the
// number of observations applied.
func (r *Registry) Commit(observations []Observation) int {
	r.mu.Lock()
	applied := make([]model.TargetID, 0, len(observations))
	for _, o := range observations {
		t, ok := r.targets[o.ID]
		if !ok {
			continue
		}
		r.targets[o.ID] = Fold(t, o.Result, r.historyCap)
		applied = append(applied, o.ID)
	}
	ev := r.publishLocked(EventCommitted, applied)
	r.mu.Unlock()

	if dropped := len(observations) - len(applied); dropped > 0 {
		r.logger.Debug("dropped observations for removed targets", zap.Int("count", dropped))
	}
	r.notify(ev)
	return len(applied)
}

// SetHistoryCap changes the history cap. Longer histories are truncated
// immediately, oldest first; a larger cap never pads.
func (r *Registry) SetHistoryCap(n int) {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	if n == r.historyCap {
		r.mu.Unlock()
		return
	}
	r.historyCap = n
	var truncated []model.TargetID
	for id, t := range r.targets {
		if nt, ok := truncate(t, n); ok {
			r.targets[id] = nt
			truncated = append(truncated, id)
		}
	}
	ev := r.publishLocked(EventCapChanged, truncated)
	r.mu.Unlock()

	r.logger.Info("history cap changed", zap.Int("cap", n), zap.Int("truncated", len(truncated)))
	r.notify(ev)
}

// Subscribe registers fn for registry events. Handlers run synchronously after
// each mutation and must not block for long.
func (r *Registry) Subscribe(fn func(Event)) (unsubscribe func()) {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// beginTrace marks a target's trace as running. It reports the target's
// address, whether it exists, and whether a trace was already running.
func (r *Registry) beginTrace(id model.TargetID) (addr string, found, busy bool) {
	r.mu.Lock()
	t, ok := r.targets[id]
	if !ok {
		r.mu.Unlock()
		return "", false, false
	}
	if t.Trace.InProgress() {
		r.mu.Unlock()
		return t.Address, true, true
	}
	t.Trace = model.TraceState{Status: model.TraceRunning, Hops: t.Trace.Hops, FinishedAt: t.Trace.FinishedAt}
	r.targets[id] = t
	ev := r.publishLocked(EventTraceStarted, []model.TargetID{id})
	r.mu.Unlock()

	r.notify(ev)
	return t.Address, true, false
}

func (r *Registry) finishTrace(id model.TargetID, state model.TraceState) {
	r.update(EventTraceFinished, id, func(t *model.Target) bool {
		t.Trace = state
		return true
	})
}

func (r *Registry) setName(id model.TargetID, name model.NameState) {
	r.update(EventNameResolved, id, func(t *model.Target) bool {
		t.Name = name
		return true
	})
}

// update applies fn to one target under the lock and publishes on change.
func (r *Registry) update(typ EventType, id model.TargetID, fn func(t *model.Target) bool) {
	r.mu.Lock()
	t, ok := r.targets[id]
	if !ok || !fn(&t) {
		r.mu.Unlock()
		return
	}
	r.targets[id] = t
	ev := r.publishLocked(typ, []model.TargetID{id})
	r.mu.Unlock()
	r.notify(ev)
}

func (r *Registry) publishLocked(typ EventType, ids []model.TargetID) Event {
	r.version++
	targets := make([]model.Target, 0, len(r.order))
	for _, id := range r.order {
		targets = append(targets, r.targets[id])
	}
	snap := &Snapshot{
		Version:    r.version,
		HistoryCap: r.historyCap,
		Targets:    targets,
	}
	r.snap.Store(snap)
	active, paused := snap.Counts()
	targetsGauge.WithLabelValues("active").Set(float64(active))
	targetsGauge.WithLabelValues("paused").Set(float64(paused))
	return Event{Type: typ, IDs: ids, Version: r.version}
}

func (r *Registry) notify(ev Event) {
	r.subMu.RLock()
	subs := make([]subscriber, len(r.subs))
	copy(subs, r.subs)
	r.subMu.RUnlock()

	for _, s := range subs {
		r.safeCall(s.fn, ev)
	}
}

func (r *Registry) safeCall(fn func(Event), ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("registry subscriber panicked",
				zap.String("event", string(ev.Type)),
				zap.Any("panic", rec),
			)
		}
	}()
	fn(ev)
}

func (r *Registry) resolveNames(ids []model.TargetID, addrs []string) {
	if r.resolver == nil {
		return
	}
	for i, id := range ids {
		r.wg.Add(1)
		go func(id model.TargetID, addr string) {
			defer r.wg.Done()
			name, err := r.resolver.Resolve(r.ctx, addr)
			if err != nil || name == "" {
				r.logger.Debug("name resolution failed", zap.String("address", addr), zap.Error(err))
				r.setName(id, model.NameState{Status: model.NameUnavailable, Value: model.UnavailableName})
				return
			}
			r.setName(id, model.NameState{Status: model.NameResolved, Value: name})
		}(id, addrs[i])
	}
}
