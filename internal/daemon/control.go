package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	pidFileName    = "linkpulse.pid"
	statusFileName = "status.json"
)

// CheckRunning reports whether a daemon is running for dataDir, and its PID.
func CheckRunning(dataDir string) (bool, int) {
	data, err := os.ReadFile(filepath.Join(dataDir, pidFileName))
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// Signal 0 only checks that the process exists.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return false, 0
	}
	return true, pid
}

// SendStop asks the running daemon to shut down.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}
	return nil
}

// TargetSummary is the per-target line of the status file.
type TargetSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      string  `json:"address"`
	Active       bool    `json:"active"`
	Status       string  `json:"status"`
	LastRTT      float64 `json:"last_rtt_ms"`
	AvgRTT       float64 `json:"avg_rtt_ms"`
	PacketLoss   float64 `json:"packet_loss"`
	Incidents    int     `json:"incidents"`
	OpenIncident bool    `json:"open_incident"`
}

// StatusFile holds serialized daemon status.
type StatusFile struct {
	Running   bool            `json:"running"`
	PID       int             `json:"pid"`
	StartTime time.Time       `json:"start_time"`
	Uptime    string          `json:"uptime"`
	UpdatedAt time.Time       `json:"updated_at"`
	Interval  string          `json:"interval"`
	Targets   []TargetSummary `json:"targets"`
	Jobs      []JobStatus     `json:"jobs"`
}

// WriteStatusFile atomically replaces the status file in dataDir.
func WriteStatusFile(dataDir string, sf *StatusFile) error {
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dataDir, statusFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadStatusFile reads the daemon status from dataDir.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, statusFileName))
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	return &sf, nil
}
