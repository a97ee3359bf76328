package storage

import (
	"fmt"

	"github.com/user/linkpulse/internal/model"
)

// TargetStorage persists target definitions. Monitoring state is not stored.
type TargetStorage struct {
	db *DB
}

// NewTargetStorage creates a new target storage handler.
func NewTargetStorage(db *DB) *TargetStorage {
	return &TargetStorage{db: db}
}

// Save inserts or replaces a definition. New definitions are appended after
// existing ones; replaced ones keep their position.
func (s *TargetStorage) Save(def model.TargetDef) error {
	_, err := s.db.Exec(`
		INSERT INTO targets (id, address, label, label_set, active, position, created_at)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM targets), ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			label = excluded.label,
			label_set = excluded.label_set,
			active = excluded.active`,
		string(def.ID), def.Address, def.Label.Value, boolInt(def.Label.Set),
		boolInt(def.Active), def.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save target %s: %w", def.ID, err)
	}
	return nil
}

// Delete removes a definition. Missing ids are not an error.
func (s *TargetStorage) Delete(id model.TargetID) error {
	if _, err := s.db.Exec("DELETE FROM targets WHERE id = ?", string(id)); err != nil {
		return fmt.Errorf("failed to delete target %s: %w", id, err)
	}
	return nil
}

// SetActive updates the active flag.
func (s *TargetStorage) SetActive(id model.TargetID, active bool) error {
	if _, err := s.db.Exec("UPDATE targets SET active = ? WHERE id = ?", boolInt(active), string(id)); err != nil {
		return fmt.Errorf("failed to update target %s: %w", id, err)
	}
	return nil
}

// SetLabel updates the label.
func (s *TargetStorage) SetLabel(id model.TargetID, label model.Label) error {
	_, err := s.db.Exec("UPDATE targets SET label = ?, label_set = ? WHERE id = ?",
		label.Value, boolInt(label.Set), string(id))
	if err != nil {
		return fmt.Errorf("failed to update target %s: %w", id, err)
	}
	return nil
}

const seededKey = "targets_seeded"

// Seeded reports whether the target list was ever initialized, either by
// seeding from config or by restoring stored definitions.
func (s *TargetStorage) Seeded() (bool, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM meta WHERE key = ?", seededKey).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to read seed marker: %w", err)
	}
	return n > 0, nil
}

// MarkSeeded records that the target list was initialized. An emptied list
// then stays empty across restarts.
func (s *TargetStorage) MarkSeeded() error {
	if _, err := s.db.Exec("INSERT OR IGNORE INTO meta (key, value) VALUES (?, '1')", seededKey); err != nil {
		return fmt.Errorf("failed to write seed marker: %w", err)
	}
	return nil
}

// List returns all definitions in insertion order.
func (s *TargetStorage) List() ([]model.TargetDef, error) {
	rows, err := s.db.Query(`SELECT id, address, label, label_set, active, created_at
		FROM targets ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var defs []model.TargetDef
	for rows.Next() {
		var (
			d                model.TargetDef
			id, label        string
			labelSet, active int
		)
		if err := rows.Scan(&id, &d.Address, &label, &labelSet, &active, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		d.ID = model.TargetID(id)
		d.Label = model.Label{Value: label, Set: labelSet == 1}
		d.Active = active == 1
		defs = append(defs, d)
	}
	return defs, rows.Err()
}
