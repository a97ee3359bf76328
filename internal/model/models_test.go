package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		reachable bool
		rtt       float64
		want      Outcome
	}{
		{"unreachable", false, 0, OutcomeFailed},
		{"unreachable ignores rtt", false, 10, OutcomeFailed},
		{"fast", true, 50, OutcomeHealthy},
		{"just below threshold", true, 149.9, OutcomeHealthy},
		{"at threshold", true, 150, OutcomeDegraded},
		{"slow", true, 200, OutcomeDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.reachable, tt.rtt, 150))
		})
	}
}

func TestOutcome_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(ProbeResult{RTT: 12, Outcome: OutcomeDegraded})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":"degraded"`)
}

func TestNewTarget(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tgt := NewTarget("id-1", "10.0.0.1", now)

	assert.True(t, tgt.Active)
	assert.False(t, tgt.HasMinRTT())
	assert.Zero(t, tgt.MaxRTT)
	assert.Empty(t, tgt.History)
	assert.Equal(t, TraceNever, tgt.Trace.Status)
	assert.True(t, tgt.Name.Pending())
}

func TestTarget_DisplayName(t *testing.T) {
	tgt := NewTarget("id-1", "10.0.0.1", time.Now())
	assert.Equal(t, "10.0.0.1", tgt.DisplayName())

	tgt.Name = NameState{Status: NameResolved, Value: "router.lan"}
	assert.Equal(t, "router.lan", tgt.DisplayName())

	tgt.Label = NewLabel("gateway")
	assert.Equal(t, "gateway", tgt.DisplayName())

	tgt.Label = NewLabel("")
	assert.False(t, tgt.Label.Set)
	assert.Equal(t, "router.lan", tgt.DisplayName())

	tgt.Name = NameState{Status: NameUnavailable, Value: UnavailableName}
	assert.Equal(t, "10.0.0.1", tgt.DisplayName())
}

func TestDowntimeEvent_Duration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ev := DowntimeEvent{ID: 1, Start: start, LostCount: 3}
	assert.True(t, ev.Open())
	assert.Equal(t, time.Minute, ev.Duration(start.Add(time.Minute)))

	end := start.Add(10 * time.Second)
	ev.End = &end
	assert.False(t, ev.Open())
	assert.Equal(t, 10*time.Second, ev.Duration(start.Add(time.Hour)))
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())
	require.NoError(t, Settings{Interval: MinInterval, WarnThreshold: 100, Retention: time.Minute}.Validate())

	bad := []Settings{
		{Interval: 0, WarnThreshold: 100, Retention: time.Minute},
		{Interval: 2 * time.Nanosecond, WarnThreshold: 100, Retention: time.Minute},
		{Interval: time.Second, WarnThreshold: 0, Retention: time.Minute},
		{Interval: time.Second, WarnThreshold: 100, Retention: 0},
		{Interval: time.Second, WarnThreshold: 100, Retention: 90 * time.Second},
	}
	for _, s := range bad {
		err := s.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidSettings))
	}
}

func TestSettings_HistoryCap(t *testing.T) {
	tests := []struct {
		interval  time.Duration
		retention time.Duration
		want      int
	}{
		{2 * time.Second, 10 * time.Minute, 300},
		{1500 * time.Millisecond, time.Minute, 40},
		{7 * time.Second, time.Minute, 8},
		{2 * time.Minute, time.Minute, 1},
	}
	for _, tt := range tests {
		s := Settings{Interval: tt.interval, WarnThreshold: 100, Retention: tt.retention}
		assert.Equal(t, tt.want, s.HistoryCap(), "interval=%s retention=%s", tt.interval, tt.retention)
	}
}

func TestColorMap_For(t *testing.T) {
	c := DefaultColors()
	assert.Equal(t, c.Healthy, c.For(OutcomeHealthy))
	assert.Equal(t, c.Degraded, c.For(OutcomeDegraded))
	assert.Equal(t, c.Failed, c.For(OutcomeFailed))
}
