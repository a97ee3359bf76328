package monitor

import (
	"sync"
	"sync/atomic"

	"github.com/user/linkpulse/internal/model"
)

// SettingsStore holds the current settings. Updates replace the value
// wholesale; readers always see a complete, validated Settings.
type SettingsStore struct {
	cur atomic.Pointer[model.Settings]

	mu        sync.Mutex
	listeners []func(model.Settings)
}

// NewSettingsStore creates a store holding s. Invalid settings fall back to
// the defaults.
func NewSettingsStore(s model.Settings) *SettingsStore {
	if s.Validate() != nil {
		s = model.DefaultSettings()
	}
	st := &SettingsStore{}
	st.cur.Store(&s)
	return st
}

// Load returns the current settings.
func (s *SettingsStore) Load() model.Settings {
	return *s.cur.Load()
}

// Update validates and publishes new settings, then notifies listeners in
// registration order. Invalid settings leave the current value unchanged.
func (s *SettingsStore) Update(next model.Settings) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.Store(&next)
	for _, fn := range s.listeners {
		fn(next)
	}
	return nil
}

// OnChange registers fn to be called after every successful Update.
func (s *SettingsStore) OnChange(fn func(model.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}
