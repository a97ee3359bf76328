package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/linkpulse/internal/model"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func ok(sec int, rtt float64) model.ProbeResult {
	return model.ProbeResult{
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		RTT:       rtt,
		Outcome:   model.Classify(true, rtt, 150),
	}
}

func fail(sec int) model.ProbeResult {
	return model.ProbeResult{
		Timestamp: t0.Add(time.Duration(sec) * time.Second),
		Outcome:   model.OutcomeFailed,
	}
}

func foldAll(t model.Target, historyCap int, results ...model.ProbeResult) model.Target {
	for _, r := range results {
		t = Fold(t, r, historyCap)
	}
	return t
}

func TestFold_ScenarioA(t *testing.T) {
	tgt := model.NewTarget("a", "10.0.0.1", t0)
	tgt = foldAll(tgt, 100, ok(0, 50), ok(1, 200), fail(2), ok(3, 40))

	assert.Equal(t, 4, tgt.Sent)
	assert.Equal(t, 1, tgt.Lost)
	assert.Equal(t, 3, tgt.Received)
	assert.InDelta(t, 25.0, tgt.PacketLoss, 1e-9)
	assert.Equal(t, 40.0, tgt.MinRTT)
	assert.Equal(t, 200.0, tgt.MaxRTT)
	assert.InDelta(t, 96.6667, tgt.AvgRTT, 1e-3)
	assert.Equal(t, 40.0, tgt.LastRTT)

	require.Len(t, tgt.Incidents, 1)
	inc := tgt.Incidents[0]
	assert.Equal(t, 1, inc.ID)
	assert.Equal(t, 1, inc.LostCount)
	assert.Equal(t, t0.Add(2*time.Second), inc.Start)
	require.NotNil(t, inc.End)
	assert.Equal(t, t0.Add(3*time.Second), *inc.End)

	assert.Equal(t, model.OutcomeDegraded, tgt.History[1].Outcome)
}

func TestFold_ScenarioB(t *testing.T) {
	r1, r2, r3 := ok(0, 10), ok(1, 20), ok(2, 30)
	tgt := foldAll(model.NewTarget("b", "10.0.0.2", t0), 2, r1, r2, r3)

	assert.Equal(t, []model.ProbeResult{r2, r3}, tgt.History)
	assert.Equal(t, 3, tgt.Sent)
	assert.Equal(t, 20.0, tgt.MinRTT)
	assert.Equal(t, 30.0, tgt.MaxRTT)
	assert.Equal(t, 25.0, tgt.AvgRTT)
}

func TestFold_CounterIdentity(t *testing.T) {
	tgt := model.NewTarget("c", "10.0.0.3", t0)
	seq := []model.ProbeResult{ok(0, 5), fail(1), fail(2), ok(3, 7), fail(4), ok(5, 300)}
	for i, r := range seq {
		tgt = Fold(tgt, r, 3)
		assert.Equal(t, tgt.Sent, tgt.Received+tgt.Lost)
		assert.Equal(t, i+1, tgt.Sent)
		assert.LessOrEqual(t, len(tgt.History), 3)
		for j := 1; j < len(tgt.History); j++ {
			assert.False(t, tgt.History[j].Timestamp.Before(tgt.History[j-1].Timestamp))
		}
	}
}

func TestFold_IncidentLifecycle(t *testing.T) {
	tgt := model.NewTarget("d", "10.0.0.4", t0)
	tgt = foldAll(tgt, 10, fail(0), fail(1), fail(2))

	require.Len(t, tgt.Incidents, 1)
	assert.True(t, tgt.Incidents[0].Open())
	assert.Equal(t, 3, tgt.Incidents[0].LostCount)

	tgt = foldAll(tgt, 10, ok(3, 10), ok(4, 10), fail(5))
	require.Len(t, tgt.Incidents, 2)
	assert.False(t, tgt.Incidents[0].Open())
	assert.True(t, tgt.Incidents[1].Open())
	assert.Equal(t, 2, tgt.Incidents[1].ID)

	open := 0
	for _, inc := range tgt.Incidents {
		if inc.Open() {
			open++
		}
	}
	assert.Equal(t, 1, open)
}

func TestFold_RetainsLastKnownGood(t *testing.T) {
	tgt := foldAll(model.NewTarget("e", "10.0.0.5", t0), 2, ok(0, 12), ok(1, 18), fail(2), fail(3))

	// The last window with a success held only the 18ms probe.
	assert.Equal(t, 18.0, tgt.MinRTT)
	assert.Equal(t, 18.0, tgt.MaxRTT)
	assert.Zero(t, tgt.AvgRTT)
	assert.Zero(t, tgt.LastRTT)
	assert.Equal(t, 50.0, tgt.PacketLoss)
}

func TestFold_NoSuccessYet(t *testing.T) {
	tgt := foldAll(model.NewTarget("f", "10.0.0.6", t0), 5, fail(0))
	assert.True(t, math.IsInf(tgt.MinRTT, 1))
	assert.Zero(t, tgt.MaxRTT)
	assert.Equal(t, 100.0, tgt.PacketLoss)
}

func TestFold_DoesNotMutateInput(t *testing.T) {
	base := foldAll(model.NewTarget("g", "10.0.0.7", t0), 3, ok(0, 1), ok(1, 2), fail(2))
	history := append([]model.ProbeResult(nil), base.History...)
	incidents := append([]model.DowntimeEvent(nil), base.Incidents...)

	_ = Fold(base, fail(3), 3)
	_ = Fold(base, ok(4, 9), 3)

	assert.Equal(t, history, base.History)
	assert.Equal(t, incidents, base.Incidents)
	assert.True(t, base.Incidents[0].Open())
}

func TestTruncate(t *testing.T) {
	tgt := foldAll(model.NewTarget("h", "10.0.0.8", t0), 10, ok(0, 100), ok(1, 5), ok(2, 6), ok(3, 7))

	same, changed := truncate(tgt, 10)
	assert.False(t, changed)
	assert.Len(t, same.History, 4)

	cut, changed := truncate(tgt, 2)
	require.True(t, changed)
	assert.Equal(t, tgt.History[2:], cut.History)
	assert.Equal(t, 6.0, cut.MinRTT)
	assert.Equal(t, 7.0, cut.MaxRTT)
	assert.Equal(t, 4, cut.Sent)
}

func TestResult(t *testing.T) {
	r := result(Measurement{RTT: 12.5, Reachable: false}, t0, 100)
	assert.Equal(t, model.OutcomeFailed, r.Outcome)
	assert.Zero(t, r.RTT)

	r = result(Measurement{RTT: 120, Reachable: true}, t0, 100)
	assert.Equal(t, model.OutcomeDegraded, r.Outcome)
	assert.Equal(t, 120.0, r.RTT)
}
