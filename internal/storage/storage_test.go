package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	ts := NewTargetStorage(db)
	require.NoError(t, ts.Save(model.TargetDef{ID: "a", Address: "10.0.0.1", Active: true, CreatedAt: time.Now()}))
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	defs, err := NewTargetStorage(db).List()
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, model.TargetID("a"), defs[0].ID)
}

func TestTargetStorage_SeedMarker(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	ts := NewTargetStorage(db)

	seeded, err := ts.Seeded()
	require.NoError(t, err)
	assert.False(t, seeded)

	require.NoError(t, ts.MarkSeeded())
	require.NoError(t, ts.MarkSeeded())
	require.NoError(t, db.Close())

	db, err = Open(dir)
	require.NoError(t, err)
	defer db.Close()
	seeded, err = NewTargetStorage(db).Seeded()
	require.NoError(t, err)
	assert.True(t, seeded)
}

func TestTargetStorage_CRUD(t *testing.T) {
	ts := NewTargetStorage(openTestDB(t))
	created := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, ts.Save(model.TargetDef{ID: "b", Address: "10.0.0.2", Active: true, CreatedAt: created}))
	require.NoError(t, ts.Save(model.TargetDef{ID: "a", Address: "10.0.0.1", Active: true, CreatedAt: created}))
	require.NoError(t, ts.SetLabel("a", model.NewLabel("gateway")))
	require.NoError(t, ts.SetActive("b", false))

	defs, err := ts.List()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, model.TargetID("b"), defs[0].ID)
	assert.False(t, defs[0].Active)
	assert.Equal(t, model.Label{Value: "gateway", Set: true}, defs[1].Label)
	assert.True(t, created.Equal(defs[1].CreatedAt))

	// Re-saving keeps position.
	require.NoError(t, ts.Save(model.TargetDef{ID: "b", Address: "10.0.0.2", Active: true, CreatedAt: created}))
	defs, _ = ts.List()
	assert.Equal(t, model.TargetID("b"), defs[0].ID)
	assert.True(t, defs[0].Active)

	require.NoError(t, ts.Delete("b"))
	require.NoError(t, ts.Delete("b"))
	defs, _ = ts.List()
	require.Len(t, defs, 1)
	assert.Equal(t, model.TargetID("a"), defs[0].ID)
}

func TestTraceStorage_SaveAndQuery(t *testing.T) {
	s := NewTraceStorage(openTestDB(t))
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

	first := &model.TraceResult{
		TargetID:  "t1",
		Address:   "8.8.8.8",
		Timestamp: base,
		Status:    model.TraceDone,
		Hops: []model.Hop{
			{Number: 1, Address: "192.168.1.1", RTT: 1.5},
			{Number: 2, Lost: true},
			{Number: 3, Address: "8.8.8.8", Name: "dns.google", RTT: 14},
		},
	}
	require.NoError(t, s.Save(first))
	assert.NotZero(t, first.ID)

	second := &model.TraceResult{TargetID: "t1", Address: "8.8.8.8", Timestamp: base.Add(time.Hour), Status: model.TraceFailed}
	require.NoError(t, s.Save(second))

	latest, err := s.Latest("t1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, model.TraceFailed, latest.Status)
	assert.Empty(t, latest.Hops)

	history, err := s.History("t1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, first.Hops, history[1].Hops)

	got, err := s.GetByID(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "dns.google", got.Hops[2].Name)

	none, err := s.Latest("unknown")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = s.GetByID(9999)
	assert.Error(t, err)
}

func TestTraceStorage_Prune(t *testing.T) {
	s := NewTraceStorage(openTestDB(t))
	base := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(&model.TraceResult{
			TargetID:  "t1",
			Address:   "1.1.1.1",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Status:    model.TraceDone,
			Hops:      []model.Hop{{Number: 1, Address: "1.1.1.1", RTT: 3}},
		}))
	}

	n, err := s.Prune(base.Add(36 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	history, err := s.History("t1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Len(t, history[0].Hops, 1)

	var orphans int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM trace_hops").Scan(&orphans))
	assert.Equal(t, 1, orphans)
}

func TestSyncTargets(t *testing.T) {
	ts := NewTargetStorage(openTestDB(t))
	reg := monitor.NewRegistry(10, nil, zap.NewNop())
	defer reg.Close()

	stop := SyncTargets(reg, ts, zap.NewNop())

	ids := reg.Add([]string{"10.0.0.1", "10.0.0.2"})
	reg.Rename(ids[0], "edge")
	reg.Toggle(ids[1])

	defs, err := ts.List()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "edge", defs[0].Label.Value)
	assert.False(t, defs[1].Active)

	reg.Remove(ids[0])
	defs, _ = ts.List()
	require.Len(t, defs, 1)

	// Restored targets round-trip through a fresh registry.
	fresh := monitor.NewRegistry(10, nil, zap.NewNop())
	defer fresh.Close()
	restored := fresh.Restore(defs)
	assert.Equal(t, []model.TargetID{ids[1]}, restored)

	stop()
	reg.Add([]string{"10.0.0.3"})
	defs, _ = ts.List()
	assert.Len(t, defs, 1)
}
