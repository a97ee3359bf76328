// Package model defines core data structures for linkpulse.
package model

import (
	"math"
	"time"
)

// TargetID uniquely identifies a monitored target for its whole lifetime.
type TargetID string

// Outcome classifies a single probe.
type Outcome int

const (
	OutcomeHealthy Outcome = iota
	OutcomeDegraded
	OutcomeFailed
)

var outcomeNames = map[Outcome]string{
	OutcomeHealthy:  "healthy",
	OutcomeDegraded: "degraded",
	OutcomeFailed:   "failed",
}

func (o Outcome) String() string {
	if s, ok := outcomeNames[o]; ok {
		return s
	}
	return "unknown"
}

// MarshalText renders the outcome by name in JSON and logs.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Classify turns a raw probe outcome into a health classification.
func Classify(reachable bool, rttMs float64, warnThresholdMs int) Outcome {
	switch {
	case !reachable:
		return OutcomeFailed
	case rttMs >= float64(warnThresholdMs):
		return OutcomeDegraded
	default:
		return OutcomeHealthy
	}
}

// ProbeResult represents one probe of one target.
type ProbeResult struct {
	Timestamp time.Time `json:"timestamp"`
	RTT       float64   `json:"rtt_ms"`
	Outcome   Outcome   `json:"outcome"`
}

// Failed reports whether the probe did not reach the target.
func (r ProbeResult) Failed() bool {
	return r.Outcome == OutcomeFailed
}

// DowntimeEvent represents a contiguous run of failed probes.
type DowntimeEvent struct {
	ID        int        `json:"id"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	LostCount int        `json:"lost_count"`
}

// Open reports whether the incident is still ongoing.
func (e DowntimeEvent) Open() bool {
	return e.End == nil
}

// Duration returns how long the incident lasted, or has lasted so far at now.
func (e DowntimeEvent) Duration(now time.Time) time.Duration {
	if e.End != nil {
		return e.End.Sub(e.Start)
	}
	return now.Sub(e.Start)
}

// Hop represents a single hop in a path trace.
type Hop struct {
	Number  int     `json:"hop"`
	Address string  `json:"address"`
	Name    string  `json:"name"`
	RTT     float64 `json:"rtt_ms"`
	Lost    bool    `json:"lost"`
}

// Label is a user-assigned display label. The zero value means no label.
type Label struct {
	Value string `json:"value"`
	Set   bool   `json:"set"`
}

// NewLabel returns a set label, or an unset one for an empty name.
func NewLabel(name string) Label {
	if name == "" {
		return Label{}
	}
	return Label{Value: name, Set: true}
}

// NameStatus is the state of display-name resolution.
type NameStatus int

const (
	NamePending NameStatus = iota
	NameResolved
	NameUnavailable
)

// UnavailableName is shown when resolution failed.
const UnavailableName = "unavailable"

// NameState holds the resolved display name of a target.
type NameState struct {
	Status NameStatus `json:"status"`
	Value  string     `json:"value,omitempty"`
}

// Pending reports whether resolution has not finished yet.
func (n NameState) Pending() bool {
	return n.Status == NamePending
}

// TraceStatus is the state of the on-demand path trace of a target.
type TraceStatus int

const (
	TraceNever TraceStatus = iota
	TraceRunning
	TraceDone
	TraceFailed
)

var traceStatusNames = map[TraceStatus]string{
	TraceNever:   "never",
	TraceRunning: "running",
	TraceDone:    "done",
	TraceFailed:  "failed",
}

func (s TraceStatus) String() string {
	if n, ok := traceStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText renders the trace status by name.
func (s TraceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TraceState holds the latest trace of a target.
type TraceState struct {
	Status     TraceStatus `json:"status"`
	Hops       []Hop       `json:"hops"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// InProgress reports whether a trace is currently running.
func (t TraceState) InProgress() bool {
	return t.Status == TraceRunning
}

// Target represents a monitored network address and its accumulated state.
//
// History, Incidents and Trace.Hops are never modified in place once a Target
// has been published; updates always allocate new slices.
type Target struct {
	ID      TargetID  `json:"id"`
	Address string    `json:"address"`
	Label   Label     `json:"label"`
	Name    NameState `json:"name"`
	Active  bool      `json:"active"`

	History []ProbeResult `json:"history"`

	MinRTT  float64 `json:"min_rtt_ms"`
	MaxRTT  float64 `json:"max_rtt_ms"`
	AvgRTT  float64 `json:"avg_rtt_ms"`
	LastRTT float64 `json:"last_rtt_ms"`

	Sent       int     `json:"sent"`
	Received   int     `json:"received"`
	Lost       int     `json:"lost"`
	PacketLoss float64 `json:"packet_loss"`

	Incidents []DowntimeEvent `json:"incidents"`
	Trace     TraceState      `json:"trace"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTarget creates a target with empty history and zeroed counters.
func NewTarget(id TargetID, address string, now time.Time) Target {
	return Target{
		ID:        id,
		Address:   address,
		Active:    true,
		MinRTT:    math.Inf(1),
		CreatedAt: now,
	}
}

// DisplayName returns the label if set, then the resolved name, then the address.
func (t Target) DisplayName() string {
	if t.Label.Set {
		return t.Label.Value
	}
	if t.Name.Status == NameResolved && t.Name.Value != "" {
		return t.Name.Value
	}
	return t.Address
}

// Latest returns the most recent probe result, if any.
func (t Target) Latest() (ProbeResult, bool) {
	if len(t.History) == 0 {
		return ProbeResult{}, false
	}
	return t.History[len(t.History)-1], true
}

// Status returns the classification of the most recent probe.
func (t Target) Status() (Outcome, bool) {
	r, ok := t.Latest()
	return r.Outcome, ok
}

// OpenIncident returns the ongoing incident, if any.
func (t Target) OpenIncident() (DowntimeEvent, bool) {
	if n := len(t.Incidents); n > 0 && t.Incidents[n-1].Open() {
		return t.Incidents[n-1], true
	}
	return DowntimeEvent{}, false
}

// HasMinRTT reports whether a minimum RTT has ever been observed.
func (t Target) HasMinRTT() bool {
	return !math.IsInf(t.MinRTT, 1)
}

// TargetDef is the persisted definition of a target, without monitoring state.
type TargetDef struct {
	ID        TargetID  `json:"id"`
	Address   string    `json:"address"`
	Label     Label     `json:"label"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Def returns the persisted definition of t.
func (t Target) Def() TargetDef {
	return TargetDef{
		ID:        t.ID,
		Address:   t.Address,
		Label:     t.Label,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
	}
}

// TraceResult represents an archived path trace.
type TraceResult struct {
	ID        int64       `json:"id"`
	TargetID  TargetID    `json:"target_id"`
	Address   string      `json:"address"`
	Timestamp time.Time   `json:"timestamp"`
	Status    TraceStatus `json:"status"`
	Hops      []Hop       `json:"hops"`
}
