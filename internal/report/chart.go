package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/user/linkpulse/internal/model"
)

// ErrNotEnoughData is returned when a target has too few successful probes
// to draw a chart.
var ErrNotEnoughData = errors.New("not enough data to draw a chart")

// ChartOptions sizes a latency chart.
type ChartOptions struct {
	Width         int
	Height        int
	WarnThreshold int // ms; drawn as a dashed line when positive
}

// RenderLatencyChart draws the retained RTT history of a target as a PNG.
// Failed probes are drawn as red dots on the time axis.
func RenderLatencyChart(w io.Writer, t model.Target, opts ChartOptions) error {
	if opts.Width <= 0 {
		opts.Width = 1200
	}
	if opts.Height <= 0 {
		opts.Height = 400
	}

	var (
		times, failedAt []time.Time
		rtts            []float64
		hi              float64
	)
	for _, r := range t.History {
		if r.Failed() {
			failedAt = append(failedAt, r.Timestamp)
			continue
		}
		times = append(times, r.Timestamp)
		rtts = append(rtts, r.RTT)
		hi = math.Max(hi, r.RTT)
	}
	if len(times) < 2 || !times[len(times)-1].After(times[0]) {
		return ErrNotEnoughData
	}

	top := math.Max(hi, float64(opts.WarnThreshold)) * 1.2
	if top <= 0 {
		top = 1
	}

	latency := chart.TimeSeries{
		Name: t.DisplayName(),
		Style: chart.Style{
			StrokeColor: chart.GetDefaultColor(0),
			StrokeWidth: 2,
		},
		XValues: times,
		YValues: rtts,
	}

	graph := chart.Chart{
		Title: fmt.Sprintf("Latency - %s", t.DisplayName()),
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: chart.Style{
			Padding: chart.Box{
				Top:    20,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			Name: "Time",
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			ValueFormatter: chart.TimeMinuteValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "RTT (ms)",
			Style: chart.Style{
				StrokeColor: drawing.ColorBlack,
				FontSize:    10,
			},
			Range: &chart.ContinuousRange{Min: 0, Max: top},
			GridMajorStyle: chart.Style{
				StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
				StrokeWidth: 1.0,
			},
		},
		Series: []chart.Series{latency},
	}

	if len(rtts) > 10 {
		graph.Series = append(graph.Series, chart.SMASeries{
			Name: "Moving avg",
			Style: chart.Style{
				StrokeColor:     chart.GetDefaultColor(1),
				StrokeWidth:     2,
				StrokeDashArray: []float64{5, 5},
			},
			InnerSeries: latency,
			Period:      10,
		})
	}

	if opts.WarnThreshold > 0 {
		warn := float64(opts.WarnThreshold)
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: "Warning threshold",
			Style: chart.Style{
				StrokeColor:     drawing.Color{R: 255, G: 165, B: 0, A: 255},
				StrokeWidth:     1,
				StrokeDashArray: []float64{3, 3},
			},
			XValues: []time.Time{times[0], times[len(times)-1]},
			YValues: []float64{warn, warn},
		})
	}

	if len(failedAt) > 0 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name: "Failed",
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    3,
				DotColor:    drawing.Color{R: 220, G: 0, B: 0, A: 255},
			},
			XValues: failedAt,
			YValues: make([]float64, len(failedAt)),
		})
	}

	return graph.Render(chart.PNG, w)
}
