package storage

import (
	"go.uber.org/zap"

	"github.com/user/linkpulse/internal/monitor"
)

// SyncTargets keeps stored definitions in step with the registry. It returns
// a function that stops syncing.
func SyncTargets(reg *monitor.Registry, ts *TargetStorage, logger *zap.Logger) (stop func()) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Subscribe(func(ev monitor.Event) {
		for _, id := range ev.IDs {
			var err error
			switch ev.Type {
			case monitor.EventAdded:
				t, ok := reg.Get(id)
				if !ok {
					continue
				}
				err = ts.Save(t.Def())
			case monitor.EventRemoved:
				err = ts.Delete(id)
			case monitor.EventToggled:
				t, ok := reg.Get(id)
				if !ok {
					continue
				}
				err = ts.SetActive(id, t.Active)
			case monitor.EventRenamed:
				t, ok := reg.Get(id)
				if !ok {
					continue
				}
				err = ts.SetLabel(id, t.Label)
			default:
				return
			}
			if err != nil {
				logger.Warn("failed to persist target change",
					zap.String("event", string(ev.Type)),
					zap.String("target", string(id)),
					zap.Error(err),
				)
			}
		}
	})
}
