// Package config resolves appdock's directories and ambient settings.
package config

import (
	"os"
	"path/filepath"
)

// Dir returns the appdock config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/appdock if XDG_CONFIG_HOME is not set. The app
// catalog file lives here.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "appdock"), nil
}

// DataDir returns the user-writable application-data directory used for
// downloads and zip extractions. On Windows this is %LOCALAPPDATA%\appdock;
// elsewhere it honors XDG_DATA_HOME. No elevated privilege is ever required
// to write under it.
func DataDir() (string, error) {
	if local := os.Getenv("LOCALAPPDATA"); local != "" {
		return filepath.Join(local, "appdock"), nil
	}
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "appdock"), nil
}

// GitHubToken returns the API token from the environment, if any. A missing
// token only lowers the anonymous rate limit; it is never fatal.
func GitHubToken() string {
	if t := os.Getenv("APPDOCK_GITHUB_TOKEN"); t != "" {
		return t
	}
	return os.Getenv("GITHUB_TOKEN")
}
