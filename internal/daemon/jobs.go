package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/model"
	"github.com/user/linkpulse/internal/monitor"
)

const (
	jobStatusFile = "status_file"
	jobTracePrune = "trace_prune"
)

// registerJobs registers the auxiliary jobs with the job scheduler.
func (d *Daemon) registerJobs() {
	interval := d.config.StatusInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	d.jobs.AddJob(&Job{
		Name:     jobStatusFile,
		Interval: interval,
		Run:      d.runStatusFile,
	})

	d.jobs.AddJob(&Job{
		Name:     jobTracePrune,
		Interval: time.Hour,
		Delay:    time.Minute,
		Run:      d.runTracePrune,
	})

	d.stopRefresh = d.engine.Registry.Subscribe(d.refreshStatusOn)
}

// refreshStatusOn rewrites the status file soon after a change to the target
// list. Probe commits are left to the regular interval.
func (d *Daemon) refreshStatusOn(ev monitor.Event) {
	switch ev.Type {
	case monitor.EventAdded, monitor.EventRemoved, monitor.EventToggled,
		monitor.EventRenamed, monitor.EventTraceFinished:
		d.jobs.TriggerJob(jobStatusFile)
	}
}

func (d *Daemon) runStatusFile(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.writeStatus()
}

func (d *Daemon) writeStatus() error {
	status := d.GetStatus()
	snap := d.engine.Registry.Snapshot()
	settings := d.engine.Settings.Load()

	sf := &StatusFile{
		Running:   status.Running,
		PID:       status.PID,
		StartTime: status.StartTime,
		Uptime:    status.Uptime.Round(time.Second).String(),
		UpdatedAt: time.Now(),
		Interval:  settings.Interval.String(),
		Targets:   Summarize(snap),
		Jobs:      status.Jobs,
	}
	return WriteStatusFile(d.config.DataDir, sf)
}

// Summarize condenses a registry snapshot into status file lines.
func Summarize(snap monitor.Snapshot) []TargetSummary {
	out := make([]TargetSummary, 0, len(snap.Targets))
	for _, t := range snap.Targets {
		s := TargetSummary{
			ID:         string(t.ID),
			Name:       t.DisplayName(),
			Address:    t.Address,
			Active:     t.Active,
			Status:     statusLabel(t),
			LastRTT:    t.LastRTT,
			AvgRTT:     t.AvgRTT,
			PacketLoss: t.PacketLoss,
			Incidents:  len(t.Incidents),
		}
		_, s.OpenIncident = t.OpenIncident()
		out = append(out, s)
	}
	return out
}

func (d *Daemon) runTracePrune(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.config.Trace.Retention <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-d.config.Trace.Retention)
	n, err := d.traces.Prune(cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		d.logger.Info("pruned trace archive", zap.Int64("removed", n), zap.Time("before", cutoff))
	}
	return nil
}

// statusLabel returns a short label for a target's state.
func statusLabel(t model.Target) string {
	if !t.Active {
		return "paused"
	}
	if o, ok := t.Status(); ok {
		return o.String()
	}
	return "pending"
}
