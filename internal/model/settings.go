package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSettings is returned for settings outside their allowed ranges.
var ErrInvalidSettings = errors.New("invalid settings")

// MinInterval is the shortest accepted probe interval.
const MinInterval = 10 * time.Millisecond

// ColorMap maps health states to display colors. It has no effect on classification.
type ColorMap struct {
	Healthy  string `json:"healthy" mapstructure:"healthy"`
	Degraded string `json:"degraded" mapstructure:"degraded"`
	Failed   string `json:"failed" mapstructure:"failed"`
	Paused   string `json:"paused" mapstructure:"paused"`
}

// DefaultColors returns the built-in palette (ANSI 256 color codes).
func DefaultColors() ColorMap {
	return ColorMap{
		Healthy:  "46",
		Degraded: "214",
		Failed:   "196",
		Paused:   "241",
	}
}

// For returns the color for an outcome.
func (c ColorMap) For(o Outcome) string {
	switch o {
	case OutcomeHealthy:
		return c.Healthy
	case OutcomeDegraded:
		return c.Degraded
	default:
		return c.Failed
	}
}

// Settings holds the monitoring parameters. A Settings value is never modified
// after it is published; changes replace it wholesale.
type Settings struct {
	Interval      time.Duration `json:"interval"`
	WarnThreshold int           `json:"warn_threshold_ms"`
	Retention     time.Duration `json:"retention"`
	Colors        ColorMap      `json:"colors"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Interval:      2 * time.Second,
		WarnThreshold: 150,
		Retention:     10 * time.Minute,
		Colors:        DefaultColors(),
	}
}

// Validate checks the settings are usable.
func (s Settings) Validate() error {
	if s.Interval < MinInterval {
		return fmt.Errorf("%w: interval must be at least %s, got %s", ErrInvalidSettings, MinInterval, s.Interval)
	}
	if s.WarnThreshold <= 0 {
		return fmt.Errorf("%w: warning threshold must be positive, got %d", ErrInvalidSettings, s.WarnThreshold)
	}
	if s.Retention < time.Minute || s.Retention%time.Minute != 0 {
		return fmt.Errorf("%w: retention must be a positive whole number of minutes, got %s", ErrInvalidSettings, s.Retention)
	}
	return nil
}

// HistoryCap returns the number of probe results kept per target.
func (s Settings) HistoryCap() int {
	if s.Interval <= 0 {
		return 1
	}
	n := int(s.Retention / s.Interval)
	if n < 1 {
		return 1
	}
	return n
}
