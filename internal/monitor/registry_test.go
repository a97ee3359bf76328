package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
)

type stubResolver struct {
	names map[string]string
}

func (s stubResolver) Resolve(_ context.Context, addr string) (string, error) {
	if n, ok := s.names[addr]; ok {
		return n, nil
	}
	return "", errors.New("no such host")
}

func newTestRegistry(t *testing.T, historyCap int) *Registry {
	t.Helper()
	r := NewRegistry(historyCap, nil, zap.NewNop())
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_AddPreservesOrderAndDuplicates(t *testing.T) {
	r := newTestRegistry(t, 10)
	ids := r.Add([]string{"10.0.0.1", "10.0.0.2", "10.0.0.1"})
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[2])

	snap := r.Snapshot()
	require.Len(t, snap.Targets, 3)
	for i, want := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.1"} {
		assert.Equal(t, ids[i], snap.Targets[i].ID)
		assert.Equal(t, want, snap.Targets[i].Address)
		assert.True(t, snap.Targets[i].Active)
		assert.Equal(t, model.NameResolved, snap.Targets[i].Name.Status)
	}
	assert.Nil(t, r.Add(nil))
}

func TestRegistry_ToggleTwiceRestores(t *testing.T) {
	r := newTestRegistry(t, 10)
	id := r.Add([]string{"10.0.0.1"})[0]

	r.Toggle(id)
	tgt, _ := r.Get(id)
	assert.False(t, tgt.Active)
	assert.Empty(t, r.Active())

	r.Toggle(id)
	tgt, _ = r.Get(id)
	assert.True(t, tgt.Active)
	assert.Len(t, r.Active(), 1)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := newTestRegistry(t, 10)
	ids := r.Add([]string{"10.0.0.1", "10.0.0.2"})

	r.Remove(ids[0])
	v := r.Snapshot().Version
	r.Remove(ids[0])
	r.Toggle(ids[0])
	r.Rename(ids[0], "ghost")

	snap := r.Snapshot()
	assert.Equal(t, v, snap.Version)
	require.Len(t, snap.Targets, 1)
	assert.Equal(t, ids[1], snap.Targets[0].ID)
}

func TestRegistry_Rename(t *testing.T) {
	r := newTestRegistry(t, 10)
	id := r.Add([]string{"10.0.0.1"})[0]

	r.Rename(id, "  core switch ")
	tgt, _ := r.Get(id)
	assert.Equal(t, model.Label{Value: "core switch", Set: true}, tgt.Label)
	assert.Equal(t, "core switch", tgt.DisplayName())

	r.Rename(id, "")
	tgt, _ = r.Get(id)
	assert.False(t, tgt.Label.Set)
	assert.Equal(t, "10.0.0.1", tgt.DisplayName())
}

func TestRegistry_ScenarioC(t *testing.T) {
	r := newTestRegistry(t, 10)
	id := r.Add([]string{"10.0.0.9"})[0]

	r.Commit([]Observation{{ID: id, Result: fail(0)}})
	r.Commit([]Observation{{ID: id, Result: fail(1)}})
	tgt, _ := r.Get(id)
	assert.Equal(t, 2, tgt.Lost)

	r.Remove(id)
	applied := r.Commit([]Observation{{ID: id, Result: ok(2, 10)}})

	assert.Zero(t, applied)
	_, found := r.Get(id)
	assert.False(t, found)
	assert.Empty(t, r.Snapshot().Targets)
}

func TestRegistry_CommitPublishesOneSnapshot(t *testing.T) {
	r := newTestRegistry(t, 10)
	ids := r.Add([]string{"10.0.0.1", "10.0.0.2"})

	var events []Event
	unsub := r.Subscribe(func(ev Event) { events = append(events, ev) })
	defer unsub()

	before := r.Snapshot().Version
	r.Commit([]Observation{
		{ID: ids[0], Result: ok(0, 10)},
		{ID: ids[1], Result: fail(0)},
	})

	assert.Equal(t, before+1, r.Snapshot().Version)
	require.Len(t, events, 1)
	assert.Equal(t, EventCommitted, events[0].Type)
	assert.Equal(t, ids, events[0].IDs)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	r := newTestRegistry(t, 3)
	id := r.Add([]string{"10.0.0.1"})[0]
	r.Commit([]Observation{{ID: id, Result: ok(0, 10)}})

	old := r.Snapshot()
	oldTarget, _ := old.Get(id)
	oldHistory := append([]model.ProbeResult(nil), oldTarget.History...)

	for i := 1; i < 10; i++ {
		r.Commit([]Observation{{ID: id, Result: fail(i)}})
	}
	r.Rename(id, "renamed")

	again, _ := old.Get(id)
	assert.Equal(t, oldHistory, again.History)
	assert.Equal(t, 1, again.Sent)
	assert.False(t, again.Label.Set)
}

func TestRegistry_SetHistoryCap(t *testing.T) {
	r := newTestRegistry(t, 5)
	id := r.Add([]string{"10.0.0.1"})[0]
	for i := 0; i < 5; i++ {
		r.Commit([]Observation{{ID: id, Result: ok(i, float64(10*(i+1)))}})
	}

	r.SetHistoryCap(2)
	tgt, _ := r.Get(id)
	require.Len(t, tgt.History, 2)
	assert.Equal(t, 40.0, tgt.History[0].RTT)
	assert.Equal(t, 40.0, tgt.MinRTT)
	assert.Equal(t, 50.0, tgt.MaxRTT)
	assert.Equal(t, 5, tgt.Sent)
	assert.Equal(t, 2, r.HistoryCap())

	r.SetHistoryCap(50)
	tgt, _ = r.Get(id)
	assert.Len(t, tgt.History, 2)

	r.Commit([]Observation{{ID: id, Result: ok(6, 60)}})
	tgt, _ = r.Get(id)
	assert.Len(t, tgt.History, 3)
}

func TestRegistry_Restore(t *testing.T) {
	r := newTestRegistry(t, 10)
	created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	defs := []model.TargetDef{
		{ID: "keep-1", Address: "10.0.0.1", Label: model.NewLabel("gw"), Active: true, CreatedAt: created},
		{ID: "keep-2", Address: "example.com", Active: false},
		{ID: "", Address: "10.0.0.3"},
	}

	ids := r.Restore(defs)
	assert.Equal(t, []model.TargetID{"keep-1", "keep-2"}, ids)

	t1, found := r.Get("keep-1")
	require.True(t, found)
	assert.Equal(t, "gw", t1.DisplayName())
	assert.Equal(t, created, t1.CreatedAt)

	t2, _ := r.Get("keep-2")
	assert.False(t, t2.Active)

	assert.Nil(t, r.Restore(defs[:1]))
	assert.Len(t, r.Snapshot().Targets, 2)
}

func TestRegistry_NameResolution(t *testing.T) {
	r := NewRegistry(10, stubResolver{names: map[string]string{"10.0.0.1": "router.lan"}}, zap.NewNop())
	defer r.Close()

	ids := r.Add([]string{"10.0.0.1", "10.0.0.2"})

	require.Eventually(t, func() bool {
		a, _ := r.Get(ids[0])
		b, _ := r.Get(ids[1])
		return !a.Name.Pending() && !b.Name.Pending()
	}, time.Second, 5*time.Millisecond)

	a, _ := r.Get(ids[0])
	b, _ := r.Get(ids[1])
	assert.Equal(t, model.NameState{Status: model.NameResolved, Value: "router.lan"}, a.Name)
	assert.Equal(t, model.NameUnavailable, b.Name.Status)
	assert.Equal(t, model.UnavailableName, b.Name.Value)
	assert.Len(t, r.Snapshot().Targets, 2)
}

func TestRegistry_SubscriberPanicRecovered(t *testing.T) {
	r := newTestRegistry(t, 10)
	var got []EventType
	r.Subscribe(func(Event) { panic("boom") })
	unsub := r.Subscribe(func(ev Event) { got = append(got, ev.Type) })

	id := r.Add([]string{"10.0.0.1"})[0]
	r.Toggle(id)
	unsub()
	r.Toggle(id)

	assert.Equal(t, []EventType{EventAdded, EventToggled}, got)
}

func TestRegistry_ConcurrentMutationsKeepFields(t *testing.T) {
	r := newTestRegistry(t, 1000)
	id := r.Add([]string{"10.0.0.1"})[0]

	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r.Commit([]Observation{{ID: id, Result: ok(i, 10)}})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			r.Rename(id, fmt.Sprintf("name-%d", i))
			r.Toggle(id)
		}
	}()
	wg.Wait()

	tgt, _ := r.Get(id)
	assert.Equal(t, rounds, tgt.Sent)
	assert.Equal(t, rounds, len(tgt.History))
	assert.Equal(t, fmt.Sprintf("name-%d", rounds-1), tgt.Label.Value)
	assert.True(t, tgt.Active)
}
