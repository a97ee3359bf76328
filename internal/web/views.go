package web

import (
	"time"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

// TargetView is the JSON form of a target. RTT statistics that have never
// been observed are null.
type TargetView struct {
	ID         model.TargetID        `json:"id"`
	Address    string                `json:"address"`
	Name       string                `json:"name"`
	Label      *string               `json:"label"`
	Active     bool                  `json:"active"`
	Status     string                `json:"status"`
	Color      string                `json:"color"`
	LastRTT    *float64              `json:"last_rtt_ms"`
	AvgRTT     *float64              `json:"avg_rtt_ms"`
	MinRTT     *float64              `json:"min_rtt_ms"`
	MaxRTT     *float64              `json:"max_rtt_ms"`
	Sent       int                   `json:"sent"`
	Received   int                   `json:"received"`
	Lost       int                   `json:"lost"`
	PacketLoss float64               `json:"packet_loss"`
	History    []model.ProbeResult   `json:"history,omitempty"`
	Incidents  []model.DowntimeEvent `json:"incidents"`
	Trace      model.TraceState      `json:"trace"`
	CreatedAt  time.Time             `json:"created_at"`
}

// SnapshotView is the JSON form of a registry snapshot.
type SnapshotView struct {
	Version    uint64       `json:"version"`
	HistoryCap int          `json:"history_cap"`
	Active     int          `json:"active"`
	Paused     int          `json:"paused"`
	Targets    []TargetView `json:"targets"`
}

// SettingsView is the JSON form of the monitoring settings. Durations are
// whole seconds and minutes.
type SettingsView struct {
	IntervalSeconds  float64        `json:"interval_seconds"`
	WarnThresholdMs  int            `json:"warn_threshold_ms"`
	RetentionMinutes int            `json:"retention_minutes"`
	HistoryCap       int            `json:"history_cap"`
	Colors           model.ColorMap `json:"colors"`
}

func newTargetView(t model.Target, colors model.ColorMap, withHistory bool) TargetView {
	v := TargetView{
		ID:         t.ID,
		Address:    t.Address,
		Name:       t.DisplayName(),
		Active:     t.Active,
		Status:     targetStatus(t),
		Color:      targetColor(t, colors),
		Sent:       t.Sent,
		Received:   t.Received,
		Lost:       t.Lost,
		PacketLoss: t.PacketLoss,
		Incidents:  t.Incidents,
		Trace:      t.Trace,
		CreatedAt:  t.CreatedAt,
	}
	if v.Incidents == nil {
		v.Incidents = []model.DowntimeEvent{}
	}
	if t.Label.Set {
		label := t.Label.Value
		v.Label = &label
	}
	if len(t.History) > 0 {
		v.LastRTT = floatPtr(t.LastRTT)
	}
	if t.Received > 0 {
		v.AvgRTT = floatPtr(t.AvgRTT)
	}
	if t.HasMinRTT() {
		v.MinRTT = floatPtr(t.MinRTT)
		v.MaxRTT = floatPtr(t.MaxRTT)
	}
	if withHistory {
		v.History = t.History
	}
	return v
}

func newSnapshotView(snap monitor.Snapshot, colors model.ColorMap, withHistory bool) SnapshotView {
	v := SnapshotView{
		Version:    snap.Version,
		HistoryCap: snap.HistoryCap,
		Targets:    make([]TargetView, 0, len(snap.Targets)),
	}
	v.Active, v.Paused = snap.Counts()
	for _, t := range snap.Targets {
		v.Targets = append(v.Targets, newTargetView(t, colors, withHistory))
	}
	return v
}

func newSettingsView(s model.Settings) SettingsView {
	return SettingsView{
		IntervalSeconds:  s.Interval.Seconds(),
		WarnThresholdMs:  s.WarnThreshold,
		RetentionMinutes: int(s.Retention / time.Minute),
		HistoryCap:       s.HistoryCap(),
		Colors:           s.Colors,
	}
}

// settings converts a view back, keeping colors from base when omitted.
func (v SettingsView) settings(base model.Settings) model.Settings {
	s := model.Settings{
		Interval:      time.Duration(v.IntervalSeconds * float64(time.Second)),
		WarnThreshold: v.WarnThresholdMs,
		Retention:     time.Duration(v.RetentionMinutes) * time.Minute,
		Colors:        base.Colors,
	}
	if v.Colors != (model.ColorMap{}) {
		s.Colors = v.Colors
	}
	return s
}

func targetStatus(t model.Target) string {
	if !t.Active {
		return "paused"
	}
	if _, open := t.OpenIncident(); open {
		return "down"
	}
	o, ok := t.Status()
	if !ok {
		return "waiting"
	}
	return o.String()
}

func targetColor(t model.Target, colors model.ColorMap) string {
	if !t.Active {
		return colors.Paused
	}
	o, ok := t.Status()
	if !ok {
		return colors.Paused
	}
	return colors.For(o)
}

func floatPtr(v float64) *float64 {
	return &v
}
