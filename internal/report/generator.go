// Package report generates reachability reports from a monitor snapshot.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

// TraceHistory provides archived traces of a target, newest first.
type TraceHistory interface {
	History(targetID model.TargetID, limit int) ([]model.TraceResult, error)
}

// Generator creates reachability reports.
type Generator struct {
	traces     TraceHistory
	traceLimit int
}

// NewGenerator creates a report generator. traces may be nil, in which case
// only the latest in-memory trace of each target is reported.
func NewGenerator(traces TraceHistory) *Generator {
	return &Generator{
		traces:     traces,
		traceLimit: 10,
	}
}

// ReportData holds all data for a report.
type ReportData struct {
	GeneratedAt time.Time
	Settings    model.Settings
	HistoryCap  int

	Targets      []TargetReport
	ActiveCount  int
	PausedCount  int
	DownCount    int
	TraceChanges []TraceChange
}

// TargetReport is the per-target section of a report.
type TargetReport struct {
	Target       model.Target
	Availability float64 // percent of probes that reached the target
	Downtime     time.Duration
	Traces       []model.TraceResult // newest first
}

// TraceChange represents a change of path between two consecutive traces.
type TraceChange struct {
	Target    string
	OldHops   []string
	NewHops   []string
	Added     []string
	Removed   []string
	Timestamp time.Time
}

// Generate builds a report from a registry snapshot.
func (g *Generator) Generate(snap monitor.Snapshot, settings model.Settings) (*ReportData, error) {
	now := time.Now()
	data := &ReportData{
		GeneratedAt: now,
		Settings:    settings,
		HistoryCap:  snap.HistoryCap,
	}
	data.ActiveCount, data.PausedCount = snap.Counts()

	for _, t := range snap.Targets {
		tr := TargetReport{Target: t}
		if t.Sent > 0 {
			tr.Availability = float64(t.Received) / float64(t.Sent) * 100
		}
		for _, inc := range t.Incidents {
			tr.Downtime += inc.Duration(now)
		}
		if _, open := t.OpenIncident(); open {
			data.DownCount++
		}

		traces, err := g.targetTraces(t)
		if err != nil {
			return nil, fmt.Errorf("failed to get traces for %s: %w", t.Address, err)
		}
		tr.Traces = traces
		data.TraceChanges = append(data.TraceChanges, detectTraceChanges(t.DisplayName(), traces)...)

		data.Targets = append(data.Targets, tr)
	}

	return data, nil
}

func (g *Generator) targetTraces(t model.Target) ([]model.TraceResult, error) {
	if g.traces != nil {
		return g.traces.History(t.ID, g.traceLimit)
	}
	if t.Trace.Status != model.TraceDone && t.Trace.Status != model.TraceFailed {
		return nil, nil
	}
	return []model.TraceResult{{
		TargetID:  t.ID,
		Address:   t.Address,
		Timestamp: t.Trace.FinishedAt,
		Status:    t.Trace.Status,
		Hops:      t.Trace.Hops,
	}}, nil
}

// WriteMarkdownFile writes the report into dir and returns the file path.
func WriteMarkdownFile(data *ReportData, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	name := fmt.Sprintf("linkpulse_report_%s.md", data.GeneratedAt.Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(FormatMarkdown(data)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// detectTraceChanges compares consecutive completed traces (newest first).
func detectTraceChanges(target string, traces []model.TraceResult) []TraceChange {
	var done []model.TraceResult
	for _, tr := range traces {
		if tr.Status == model.TraceDone {
			done = append(done, tr)
		}
	}

	var changes []TraceChange
	for i := 0; i < len(done)-1; i++ {
		curr := done[i]
		prev := done[i+1]

		currHops := hopAddresses(curr.Hops)
		prevHops := hopAddresses(prev.Hops)

		if !equalHops(currHops, prevHops) {
			added, removed := diffHops(prevHops, currHops)
			changes = append(changes, TraceChange{
				Target:    target,
				OldHops:   prevHops,
				NewHops:   currHops,
				Added:     added,
				Removed:   removed,
				Timestamp: curr.Timestamp,
			})
		}
	}
	return changes
}

func hopAddresses(hops []model.Hop) []string {
	addrs := make([]string, 0, len(hops))
	for _, hop := range hops {
		if !hop.Lost && hop.Address != "" {
			addrs = append(addrs, hop.Address)
		}
	}
	return addrs
}

func equalHops(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// diffHops returns hops present only in next (added) and only in prev
// (removed), in path order.
func diffHops(prev, next []string) (added, removed []string) {
	prevSet := make(map[string]bool, len(prev))
	nextSet := make(map[string]bool, len(next))
	for _, h := range prev {
		prevSet[h] = true
	}
	for _, h := range next {
		nextSet[h] = true
	}

	for _, h := range next {
		if !prevSet[h] {
			added = append(added, h)
		}
	}
	for _, h := range prev {
		if !nextSet[h] {
			removed = append(removed, h)
		}
	}
	return
}
