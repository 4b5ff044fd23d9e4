package control

import (
	"database/sql"
	"errors"
	"fmt"
)

// ModeStore persists zone thermal modes across daemon restarts. Stores must
// treat failures as non-fatal; zones log and continue without persistence.
type ModeStore interface {
	// SaveMode records the current mode for a zone.
	SaveMode(zone, mode string) error

	// Mode returns the persisted mode for a zone. ok is false when nothing
	// was ever saved.
	Mode(zone string) (mode string, ok bool, err error)
}

// SQLiteModeStore keeps zone modes in the zone_modes table.
type SQLiteModeStore struct {
	db *sql.DB
}

// NewSQLiteModeStore creates a store over an open database. The zone_modes
// table comes from the embedded migrations.
func NewSQLiteModeStore(db *sql.DB) *SQLiteModeStore {
	return &SQLiteModeStore{db: db}
}

// SaveMode upserts the zone's mode.
func (s *SQLiteModeStore) SaveMode(zone, mode string) error {
	_, err := s.db.Exec(`
		INSERT INTO zone_modes (zone, mode, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(zone) DO UPDATE SET
			mode = excluded.mode,
			updated_at = excluded.updated_at`,
		zone, mode)
	if err != nil {
		return fmt.Errorf("saving mode for zone %q: %w", zone, err)
	}
	return nil
}

// Mode reads the zone's persisted mode.
func (s *SQLiteModeStore) Mode(zone string) (string, bool, error) {
	var mode string
	err := s.db.QueryRow(`SELECT mode FROM zone_modes WHERE zone = ?`, zone).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading mode for zone %q: %w", zone, err)
	}
	return mode, true, nil
}
