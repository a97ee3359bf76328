package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
	"github.com/user/linkpulse/internal/util"
)

func testConfig(t *testing.T) *util.Config {
	t.Helper()
	cfg := util.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.LogFile = ""
	cfg.Targets = "10.0.0.1, 10.0.0.2"
	cfg.Interval = 20 * time.Millisecond
	cfg.Retention = time.Minute
	cfg.Probe.Method = "sim"
	cfg.StatusInterval = 20 * time.Millisecond
	cfg.Resolver.Nameserver = "127.0.0.1:1"
	cfg.Resolver.Timeout = 50 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestDaemon_SeedsAndRestoresTargets(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	snap := d.Engine().Registry.Snapshot()
	require.Len(t, snap.Targets, 2)
	ids := []model.TargetID{snap.Targets[0].ID, snap.Targets[1].ID}
	d.Engine().Registry.Rename(ids[1], "backup")
	require.NoError(t, d.Close())

	// A second start restores the stored definitions instead of seeding.
	cfg.Targets = "192.168.0.1"
	d, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	snap = d.Engine().Registry.Snapshot()
	require.Len(t, snap.Targets, 2)
	assert.Equal(t, ids[0], snap.Targets[0].ID)
	assert.Equal(t, "backup", snap.Targets[1].DisplayName())
}

func TestDaemon_EmbeddedRunWritesStatus(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	d.jobs.tick = 10 * time.Millisecond

	require.NoError(t, d.StartEmbedded())
	assert.True(t, d.IsRunning())
	assert.Error(t, d.StartEmbedded())

	require.Eventually(t, func() bool {
		sf, err := ReadStatusFile(cfg.DataDir)
		if err != nil || len(sf.Targets) != 2 {
			return false
		}
		return sf.Targets[0].Status != "pending"
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Stop())
	d.Wait()
	assert.False(t, d.IsRunning())

	sf, err := ReadStatusFile(cfg.DataDir)
	require.NoError(t, err)
	assert.False(t, sf.Running)
	assert.Equal(t, "20ms", sf.Interval)

	running, _ := CheckRunning(cfg.DataDir)
	assert.False(t, running)
}

func TestDaemon_TargetChangesRefreshStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.StatusInterval = time.Hour
	d, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	d.jobs.tick = 10 * time.Millisecond

	require.NoError(t, d.StartEmbedded())
	defer d.Stop()

	require.Eventually(t, func() bool {
		_, err := ReadStatusFile(cfg.DataDir)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	id := d.Engine().Registry.Snapshot().Targets[0].ID
	d.Engine().Registry.Rename(id, "uplink")

	require.Eventually(t, func() bool {
		sf, err := ReadStatusFile(cfg.DataDir)
		return err == nil && len(sf.Targets) == 2 && sf.Targets[0].Name == "uplink"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestDaemon_EmptiedListIsNotReseeded(t *testing.T) {
	cfg := testConfig(t)

	d, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	for _, tgt := range d.Engine().Registry.Snapshot().Targets {
		d.Engine().Registry.Remove(tgt.ID)
	}
	require.NoError(t, d.Close())

	d, err = New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()
	assert.Empty(t, d.Engine().Registry.Snapshot().Targets)
}

func TestCheckRunning(t *testing.T) {
	dir := t.TempDir()
	running, _ := CheckRunning(dir)
	assert.False(t, running)

	require.NoError(t, os.WriteFile(filepath.Join(dir, pidFileName), []byte(strconv.Itoa(os.Getpid())), 0o644))
	running, pid := CheckRunning(dir)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, os.WriteFile(filepath.Join(dir, pidFileName), []byte("garbage"), 0o644))
	running, _ = CheckRunning(dir)
	assert.False(t, running)

	assert.Error(t, SendStop(t.TempDir()))
}

func TestStatusFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sf := &StatusFile{
		Running: true,
		PID:     42,
		Targets: []TargetSummary{{ID: "a", Name: "gw", Address: "10.0.0.1", Active: true, Status: "healthy"}},
	}
	require.NoError(t, WriteStatusFile(dir, sf))

	got, err := ReadStatusFile(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, got.PID)
	assert.Equal(t, sf.Targets, got.Targets)

	_, err = os.Stat(filepath.Join(dir, statusFileName+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestSummarize(t *testing.T) {
	reg := monitor.NewRegistry(10, nil, zap.NewNop())
	defer reg.Close()
	ids := reg.Add([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})
	now := time.Now()
	reg.Commit([]monitor.Observation{
		{ID: ids[0], Result: model.ProbeResult{Timestamp: now, RTT: 12, Outcome: model.OutcomeHealthy}},
		{ID: ids[1], Result: model.ProbeResult{Timestamp: now, Outcome: model.OutcomeFailed}},
	})
	reg.Toggle(ids[2])

	lines := Summarize(reg.Snapshot())
	require.Len(t, lines, 3)
	assert.Equal(t, "healthy", lines[0].Status)
	assert.Equal(t, 12.0, lines[0].LastRTT)
	assert.Equal(t, "failed", lines[1].Status)
	assert.True(t, lines[1].OpenIncident)
	assert.Equal(t, 100.0, lines[1].PacketLoss)
	assert.Equal(t, "paused", lines[2].Status)
}
