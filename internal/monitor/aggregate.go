package monitor

import (
	"math"
	"time"

	"github.com/user/linkpulse/internal/model"
)

// Fold applies one probe result to a target and returns the updated target.
// The input target is not modified and slices it references are never written,
// so previously published snapshots stay valid.
func Fold(t model.Target, r model.ProbeResult, historyCap int) model.Target {
	if historyCap < 1 {
		historyCap = 1
	}

	// Fresh backing array on every fold.
	keep := len(t.History)
	if keep > historyCap-1 {
		keep = historyCap - 1
	}
	history := make([]model.ProbeResult, 0, keep+1)
	history = append(history, t.History[len(t.History)-keep:]...)
	history = append(history, r)
	t.History = history

	t = Recompute(t)

	if r.Failed() {
		t.LastRTT = 0
	} else {
		t.LastRTT = r.RTT
	}

	t.Sent++
	if r.Failed() {
		t.Lost++
	} else {
		t.Received++
	}
	t.PacketLoss = lossPercent(t.Lost, t.Sent)

	t.Incidents = foldIncident(t.Incidents, r)
	return t
}

// Recompute re-derives min, max and average latency from the history.
// Without any successful probe in history, min and max keep their previous
// values and the average is zero.
func Recompute(t model.Target) model.Target {
	var (
		sum    float64
		n      int
		lo, hi = math.Inf(1), 0.0
	)
	for _, h := range t.History {
		if h.Failed() {
			continue
		}
		sum += h.RTT
		n++
		if h.RTT < lo {
			lo = h.RTT
		}
		if h.RTT > hi {
			hi = h.RTT
		}
	}
	if n == 0 {
		t.AvgRTT = 0
		return t
	}
	t.MinRTT = lo
	t.MaxRTT = hi
	t.AvgRTT = sum / float64(n)
	return t
}

func lossPercent(lost, sent int) float64 {
	if sent == 0 {
		return 0
	}
	return float64(lost) / float64(sent) * 100
}

func foldIncident(incidents []model.DowntimeEvent, r model.ProbeResult) []model.DowntimeEvent {
	n := len(incidents)
	open := n > 0 && incidents[n-1].Open()

	switch {
	case r.Failed() && open:
		out := cloneIncidents(incidents)
		out[n-1].LostCount++
		return out
	case r.Failed():
		out := make([]model.DowntimeEvent, n, n+1)
		copy(out, incidents)
		return append(out, model.DowntimeEvent{
			ID:        n + 1,
			Start:     r.Timestamp,
			LostCount: 1,
		})
	case open:
		out := cloneIncidents(incidents)
		end := r.Timestamp
		out[n-1].End = &end
		return out
	default:
		return incidents
	}
}

func cloneIncidents(in []model.DowntimeEvent) []model.DowntimeEvent {
	out := make([]model.DowntimeEvent, len(in))
	copy(out, in)
	return out
}

// truncate drops the oldest history entries beyond cap. It reports whether
// anything was dropped.
func truncate(t model.Target, historyCap int) (model.Target, bool) {
	if len(t.History) <= historyCap {
		return t, false
	}
	history := make([]model.ProbeResult, historyCap)
	copy(history, t.History[len(t.History)-historyCap:])
	t.History = history
	return Recompute(t), true
}

// result builds a classified probe result.
func result(m Measurement, ts time.Time, warnMs int) model.ProbeResult {
	rtt := m.RTT
	if !m.Reachable || rtt < 0 {
		rtt = 0
	}
	return model.ProbeResult{
		Timestamp: ts,
		RTT:       rtt,
		Outcome:   model.Classify(m.Reachable, rtt, warnMs),
	}
}
