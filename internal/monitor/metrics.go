package monitor

import "github.com/prometheus/client_golang/prometheus"

// Cycle results recorded in cyclesTotal.
const (
	cycleCommitted   = "committed"
	cycleSkippedBusy = "skipped_busy"
	cycleSkippedIdle = "skipped_idle"
	cycleAborted     = "aborted"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_cycles_total",
			Help: "Monitoring cycles by result.",
		},
		[]string{"result"},
	)
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_probes_total",
			Help: "Probe results by outcome.",
		},
		[]string{"outcome"},
	)
	executorFaults = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkpulse_executor_faults_total",
			Help: "Probe executor errors and panics coerced into failed probes.",
		},
	)
	tracesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkpulse_traces_total",
			Help: "Path traces by result.",
		},
		[]string{"result"},
	)
	cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkpulse_cycle_duration_seconds",
			Help:    "Duration of committed monitoring cycles.",
			Buckets: prometheus.DefBuckets,
		},
	)
	targetsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkpulse_targets",
			Help: "Number of targets by state.",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal)
	prometheus.MustRegister(probesTotal)
	prometheus.MustRegister(executorFaults)
	prometheus.MustRegister(tracesTotal)
	prometheus.MustRegister(cycleDuration)
	prometheus.MustRegister(targetsGauge)
}
