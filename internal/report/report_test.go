package report

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeHistory struct {
	traces map[model.TargetID][]model.TraceResult
	err    error
}

func (f *fakeHistory) History(id model.TargetID, limit int) ([]model.TraceResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.traces[id], nil
}

func probed(id model.TargetID, addr string, rtts ...float64) model.Target {
	t := model.NewTarget(id, addr, t0)
	for i, rtt := range rtts {
		r := model.ProbeResult{Timestamp: t0.Add(time.Duration(i) * time.Second), RTT: rtt, Outcome: model.OutcomeHealthy}
		if rtt < 0 {
			r = model.ProbeResult{Timestamp: r.Timestamp, Outcome: model.OutcomeFailed}
		}
		t = monitor.Fold(t, r, 100)
	}
	return t
}

func hops(addrs ...string) []model.Hop {
	out := make([]model.Hop, 0, len(addrs))
	for i, a := range addrs {
		if a == "*" {
			out = append(out, model.Hop{Number: i + 1, Lost: true})
			continue
		}
		out = append(out, model.Hop{Number: i + 1, Address: a, RTT: float64(i + 1)})
	}
	return out
}

func TestGenerate(t *testing.T) {
	up := probed("a", "10.0.0.1", 10, 20, 30)
	down := probed("b", "10.0.0.2", 10, -1, -1)
	paused := probed("c", "10.0.0.3")
	paused.Active = false

	snap := monitor.Snapshot{Version: 3, HistoryCap: 100, Targets: []model.Target{up, down, paused}}
	history := &fakeHistory{traces: map[model.TargetID][]model.TraceResult{
		"a": {
			{TargetID: "a", Address: "10.0.0.1", Timestamp: t0.Add(time.Hour), Status: model.TraceDone, Hops: hops("192.168.1.1", "10.9.9.9", "10.0.0.1")},
			{TargetID: "a", Address: "10.0.0.1", Timestamp: t0, Status: model.TraceDone, Hops: hops("192.168.1.1", "10.8.8.8", "10.0.0.1")},
		},
	}}

	data, err := NewGenerator(history).Generate(snap, model.DefaultSettings())
	require.NoError(t, err)

	assert.Equal(t, 2, data.ActiveCount)
	assert.Equal(t, 1, data.PausedCount)
	assert.Equal(t, 1, data.DownCount)
	require.Len(t, data.Targets, 3)
	assert.InDelta(t, 100.0, data.Targets[0].Availability, 0.001)
	assert.InDelta(t, 33.333, data.Targets[1].Availability, 0.01)
	assert.Zero(t, data.Targets[2].Availability)

	require.Len(t, data.TraceChanges, 1)
	change := data.TraceChanges[0]
	assert.Equal(t, []string{"10.9.9.9"}, change.Added)
	assert.Equal(t, []string{"10.8.8.8"}, change.Removed)
}

func TestGenerate_HistoryError(t *testing.T) {
	snap := monitor.Snapshot{Targets: []model.Target{probed("a", "10.0.0.1", 5)}}
	_, err := NewGenerator(&fakeHistory{err: errors.New("db closed")}).Generate(snap, model.DefaultSettings())
	require.Error(t, err)
}

func TestGenerate_InMemoryTrace(t *testing.T) {
	tgt := probed("a", "10.0.0.1", 5)
	tgt.Trace = model.TraceState{Status: model.TraceDone, Hops: hops("192.168.1.1", "10.0.0.1"), FinishedAt: t0}

	data, err := NewGenerator(nil).Generate(monitor.Snapshot{Targets: []model.Target{tgt}}, model.DefaultSettings())
	require.NoError(t, err)
	require.Len(t, data.Targets[0].Traces, 1)
	assert.Equal(t, "10.0.0.1", data.Targets[0].Traces[0].Address)
}

func TestFormatMarkdown(t *testing.T) {
	down := probed("b", "10.0.0.2", 10, -1, -1)
	down.Label = model.NewLabel("core|switch")
	tgt := probed("a", "10.0.0.1", 10, 20)
	tgt.Trace = model.TraceState{Status: model.TraceDone, Hops: hops("192.168.1.1", "*", "10.0.0.1"), FinishedAt: t0}

	data, err := NewGenerator(nil).Generate(monitor.Snapshot{Targets: []model.Target{tgt, down}}, model.DefaultSettings())
	require.NoError(t, err)
	md := FormatMarkdown(data)

	assert.Contains(t, md, "# linkpulse Reachability Report")
	assert.Contains(t, md, "| 10.0.0.1 | 10.0.0.1 | healthy | 20.0 ms | 15.0 ms | 10.0 ms | 20.0 ms | 2 | 0 | 0.0% | 100.0% | 0 |")
	assert.Contains(t, md, `core\|switch`)
	assert.Contains(t, md, "ongoing")
	assert.Contains(t, md, "```mermaid")
	assert.Contains(t, md, "Currently down: 1")
}

func TestFormatMarkdown_Empty(t *testing.T) {
	data, err := NewGenerator(nil).Generate(monitor.Snapshot{}, model.DefaultSettings())
	require.NoError(t, err)
	assert.Contains(t, FormatMarkdown(data), "No targets are monitored")
}

func TestWriteMarkdownFile(t *testing.T) {
	data, err := NewGenerator(nil).Generate(monitor.Snapshot{}, model.DefaultSettings())
	require.NoError(t, err)

	path, err := WriteMarkdownFile(data, t.TempDir())
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), "# linkpulse"))
}

func TestGenerateMermaidDiagram(t *testing.T) {
	trace := model.TraceResult{
		Address: "10.0.0.9",
		Hops: []model.Hop{
			{Number: 1, Address: "192.168.1.1", Name: "gw.lan", RTT: 1.5},
			{Number: 2, Lost: true},
			{Number: 3, Address: "10.0.0.5", RTT: 9},
		},
	}
	out := GenerateMermaidDiagram(trace)

	assert.Contains(t, out, "flowchart LR")
	assert.Contains(t, out, "Source --> H1")
	assert.Contains(t, out, "H1 --> H2")
	assert.Contains(t, out, "gw.lan<br/>192.168.1.1")
	assert.Contains(t, out, ":::lost")
	assert.Contains(t, out, "H3 -.-> Target")

	trace.Hops[2].Address = "10.0.0.9"
	assert.NotContains(t, GenerateMermaidDiagram(trace), "-.-> Target")
}

func TestGenerateNetworkTopology(t *testing.T) {
	traces := []model.TraceResult{
		{Address: "10.0.0.1", Hops: hops("192.168.1.1", "10.0.0.1")},
		{Address: "10.0.0.2", Hops: hops("192.168.1.1", "*", "10.0.0.2")},
	}
	out := GenerateNetworkTopology(traces)

	assert.Equal(t, 1, strings.Count(out, "You --> N192_168_1_1"))
	assert.Contains(t, out, "N192_168_1_1 --> N10_0_0_1")
	assert.Contains(t, out, "N192_168_1_1 --> N10_0_0_2")
	assert.Contains(t, out, `N10_0_0_1["10.0.0.1"]:::target`)
	assert.Equal(t, out, GenerateNetworkTopology(traces))
	assert.Empty(t, GenerateNetworkTopology(nil))
}

func TestRenderLatencyChart(t *testing.T) {
	tgt := probed("a", "10.0.0.1", 10, 12, -1, 30, 11, 9, 14, 13, 12, 10, 11, 15, 16)

	var buf bytes.Buffer
	require.NoError(t, RenderLatencyChart(&buf, tgt, ChartOptions{Width: 600, Height: 300, WarnThreshold: 150}))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestRenderLatencyChart_NotEnoughData(t *testing.T) {
	var buf bytes.Buffer
	err := RenderLatencyChart(&buf, probed("a", "10.0.0.1", 10, -1), ChartOptions{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
	assert.Zero(t, buf.Len())
}
