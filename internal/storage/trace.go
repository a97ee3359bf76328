package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/linkpulse/internal/model"
)

// TraceStorage handles trace archive persistence.
type TraceStorage struct {
	db *DB
}

// NewTraceStorage creates a new trace storage handler.
func NewTraceStorage(db *DB) *TraceStorage {
	return &TraceStorage{db: db}
}

// Save stores a trace result with its hops and sets its ID.
func (s *TraceStorage) Save(trace *model.TraceResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		"INSERT INTO traces (target_id, address, status, timestamp) VALUES (?, ?, ?, ?)",
		string(trace.TargetID), trace.Address, trace.Status.String(), trace.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}

	traceID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get trace ID: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO trace_hops (trace_id, hop_num, ip, hostname, latency_ms, lost)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare hop statement: %w", err)
	}
	defer stmt.Close()

	for _, hop := range trace.Hops {
		if _, err := stmt.Exec(traceID, hop.Number, hop.Address, hop.Name, hop.RTT, boolInt(hop.Lost)); err != nil {
			return fmt.Errorf("failed to insert hop %d: %w", hop.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace: %w", err)
	}
	trace.ID = traceID
	return nil
}

// Latest returns the most recent trace for a target, or nil if none exists.
func (s *TraceStorage) Latest(targetID model.TargetID) (*model.TraceResult, error) {
	traces, err := s.History(targetID, 1)
	if err != nil {
		return nil, err
	}
	if len(traces) == 0 {
		return nil, nil
	}
	return &traces[0], nil
}

// GetByID returns a trace by its ID.
func (s *TraceStorage) GetByID(id int64) (*model.TraceResult, error) {
	var (
		trace    model.TraceResult
		targetID string
		status   string
	)
	err := s.db.QueryRow(`SELECT id, target_id, address, status, timestamp FROM traces WHERE id = ?`, id).
		Scan(&trace.ID, &targetID, &trace.Address, &status, &trace.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trace %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	trace.TargetID = model.TargetID(targetID)
	trace.Status = parseTraceStatus(status)

	hops, err := s.getHops(trace.ID)
	if err != nil {
		return nil, err
	}
	trace.Hops = hops
	return &trace, nil
}

// History returns up to limit traces for a target, newest first.
func (s *TraceStorage) History(targetID model.TargetID, limit int) ([]model.TraceResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`SELECT id, target_id, address, status, timestamp FROM traces
		WHERE target_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, string(targetID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}

	// Collect headers first; hops need the single connection afterwards.
	var traces []model.TraceResult
	for rows.Next() {
		var (
			trace  model.TraceResult
			id     string
			status string
		)
		if err := rows.Scan(&trace.ID, &id, &trace.Address, &status, &trace.Timestamp); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		trace.TargetID = model.TargetID(id)
		trace.Status = parseTraceStatus(status)
		traces = append(traces, trace)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range traces {
		hops, err := s.getHops(traces[i].ID)
		if err != nil {
			return nil, err
		}
		traces[i].Hops = hops
	}
	return traces, nil
}

// Prune deletes traces recorded before cutoff and returns how many were removed.
func (s *TraceStorage) Prune(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM traces WHERE timestamp < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune traces: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *TraceStorage) getHops(traceID int64) ([]model.Hop, error) {
	rows, err := s.db.Query(`SELECT hop_num, ip, hostname, latency_ms, lost
		FROM trace_hops WHERE trace_id = ? ORDER BY hop_num`, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hops: %w", err)
	}
	defer rows.Close()

	hops := []model.Hop{}
	for rows.Next() {
		var (
			hop  model.Hop
			lost int
		)
		if err := rows.Scan(&hop.Number, &hop.Address, &hop.Name, &hop.RTT, &lost); err != nil {
			return nil, fmt.Errorf("failed to scan hop: %w", err)
		}
		hop.Lost = lost == 1
		hops = append(hops, hop)
	}
	return hops, rows.Err()
}

func parseTraceStatus(s string) model.TraceStatus {
	switch s {
	case "done":
		return model.TraceDone
	case "failed":
		return model.TraceFailed
	case "running":
		return model.TraceRunning
	default:
		return model.TraceNever
	}
}
