package store

import "time"

// AppRecord is the persisted installation state for one application.
// ExecutablePath may be empty when the user cancelled manual selection after
// discovery failed; such a record is still valid for retry/update flows.
type AppRecord struct {
	ID               string
	Name             string
	InstalledVersion string
	InstallPath      string
	ExecutablePath   string
	InstalledAt      time.Time
	LastLaunched     time.Time
	AutoDetected     bool
}

// Settings are the user-tunable knobs persisted in the settings table.
type Settings struct {
	UpdateIntervalMinutes int    `json:"updateIntervalMinutes"`
	GitHubToken           string `json:"githubToken,omitempty"`
}

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{UpdateIntervalMinutes: 60}
}
