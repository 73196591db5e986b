package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	settingsKey        = "settings"
	lastUpdateCheckKey = "lastUpdateCheck"
)

// App record operations

// SaveApp inserts or replaces an app record.
func (s *Store) SaveApp(rec *AppRecord) error {
	query := `
		INSERT OR REPLACE INTO app_records
		(id, name, installed_version, install_path, executable_path, installed_at, last_launched, auto_detected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var lastLaunched sql.NullString
	if !rec.LastLaunched.IsZero() {
		lastLaunched = sql.NullString{String: rec.LastLaunched.Format(time.RFC3339), Valid: true}
	}

	_, err := s.db.Exec(query,
		rec.ID,
		rec.Name,
		rec.InstalledVersion,
		rec.InstallPath,
		rec.ExecutablePath,
		rec.InstalledAt.Format(time.RFC3339),
		lastLaunched,
		rec.AutoDetected,
	)
	if err != nil {
		return fmt.Errorf("failed to save app record %s: %w", rec.ID, err)
	}

	return nil
}

// GetApp retrieves an app record by identity. Returns (nil, nil) when no
// record exists; that is the normal "not installed" answer, not an error.
func (s *Store) GetApp(id string) (*AppRecord, error) {
	query := `
		SELECT id, name, installed_version, install_path, executable_path, installed_at, last_launched, auto_detected
		FROM app_records
		WHERE id = ?
	`

	rec, err := scanApp(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app record %s: %w", id, err)
	}
	return rec, nil
}

// VerifiedApp retrieves an app record and re-validates its executable path
// against the filesystem. A record whose executable has disappeared since
// installation is purged and reported as not installed; a stale path must
// never be trusted at read time.
func (s *Store) VerifiedApp(id string) (*AppRecord, error) {
	rec, err := s.GetApp(id)
	if err != nil || rec == nil {
		return rec, err
	}
	purged, err := s.PurgeIfMissing(rec)
	if err != nil {
		return nil, err
	}
	if purged {
		return nil, nil
	}
	return rec, nil
}

// PurgeIfMissing deletes rec when its executable path is set but the binary
// is gone from disk. Records without an executable path have nothing to
// verify and are never purged. Reports whether the record was deleted.
func (s *Store) PurgeIfMissing(rec *AppRecord) (bool, error) {
	if rec == nil || rec.ExecutablePath == "" {
		return false, nil
	}
	if _, err := os.Stat(rec.ExecutablePath); err == nil {
		return false, nil
	}
	if err := s.DeleteApp(rec.ID); err != nil {
		return false, fmt.Errorf("failed to purge stale app record %s: %w", rec.ID, err)
	}
	return true, nil
}

// ListApps returns all app records ordered by identity.
func (s *Store) ListApps() ([]*AppRecord, error) {
	query := `
		SELECT id, name, installed_version, install_path, executable_path, installed_at, last_launched, auto_detected
		FROM app_records
		ORDER BY id
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list app records: %w", err)
	}
	defer rows.Close()

	var records []*AppRecord
	for rows.Next() {
		rec, err := scanApp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan app record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate app records: %w", err)
	}

	return records, nil
}

// DeleteApp removes an app record. Deleting a missing record is not an error.
func (s *Store) DeleteApp(id string) error {
	if _, err := s.db.Exec(`DELETE FROM app_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete app record %s: %w", id, err)
	}
	return nil
}

// TouchLastLaunched records a launch timestamp for an app.
func (s *Store) TouchLastLaunched(id string, at time.Time) error {
	query := `UPDATE app_records SET last_launched = ? WHERE id = ?`
	if _, err := s.db.Exec(query, at.Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("failed to update last launched for %s: %w", id, err)
	}
	return nil
}

// SetExecutablePath records a manually selected executable and its parent
// directory as the install path.
func (s *Store) SetExecutablePath(id, exePath, installPath string) error {
	query := `UPDATE app_records SET executable_path = ?, install_path = ? WHERE id = ?`
	if _, err := s.db.Exec(query, exePath, installPath, id); err != nil {
		return fmt.Errorf("failed to update executable path for %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApp(row rowScanner) (*AppRecord, error) {
	var rec AppRecord
	var installedAt string
	var lastLaunched sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Name,
		&rec.InstalledVersion,
		&rec.InstallPath,
		&rec.ExecutablePath,
		&installedAt,
		&lastLaunched,
		&rec.AutoDetected,
	)
	if err != nil {
		return nil, err
	}

	rec.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installed_at for %s: %w", rec.ID, err)
	}
	if lastLaunched.Valid {
		rec.LastLaunched, err = time.Parse(time.RFC3339, lastLaunched.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_launched for %s: %w", rec.ID, err)
		}
	}

	return &rec, nil
}

// Settings operations

// GetSettings returns the persisted settings, falling back to defaults when
// nothing has been saved yet.
func (s *Store) GetSettings() (Settings, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, settingsKey).Scan(&value)
	if err == sql.ErrNoRows {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	return settings, nil
}

// SaveSettings persists the settings.
func (s *Store) SaveSettings(settings Settings) error {
	value, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	return s.setKey(settingsKey, string(value))
}

// LastUpdateCheck returns the timestamp of the most recent update sweep, or
// the zero time when no sweep has completed yet.
func (s *Store) LastUpdateCheck() (time.Time, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, lastUpdateCheckKey).Scan(&value)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last update check: %w", err)
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse last update check: %w", err)
	}
	return t, nil
}

// SetLastUpdateCheck records when an update sweep finished.
func (s *Store) SetLastUpdateCheck(at time.Time) error {
	return s.setKey(lastUpdateCheckKey, at.Format(time.RFC3339))
}

func (s *Store) setKey(key, value string) error {
	query := `INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`
	if _, err := s.db.Exec(query, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
