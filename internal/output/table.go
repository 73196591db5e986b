package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/appdock/internal/store"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// RenderAppTable renders installed applications with their running state and
// available updates. running maps identity to "currently tracked"; updates
// maps identity to the newer version string.
func RenderAppTable(records []*store.AppRecord, running map[string]bool, updates map[string]string) string {
	if len(records) == 0 {
		return "No applications installed.\n"
	}

	sorted := make([]*store.AppRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})

	color := IsColorEnabled()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-18s %-24s %-12s %-10s %-14s %s\n",
		"ID", "NAME", "VERSION", "STATUS", "LAST LAUNCHED", "NOTES"))
	sb.WriteString(strings.Repeat("-", 92))
	sb.WriteString("\n")

	for _, rec := range sorted {
		status := "stopped"
		if running[rec.ID] {
			status = "running"
			if color {
				status = colorGreen + status + colorReset
			}
		}

		var notes []string
		if latest, ok := updates[rec.ID]; ok {
			note := "update " + latest
			if color {
				note = colorYellow + note + colorReset
			}
			notes = append(notes, note)
		}
		if rec.AutoDetected {
			note := "auto-detected"
			if color {
				note = colorGray + note + colorReset
			}
			notes = append(notes, note)
		}
		if rec.ExecutablePath == "" {
			notes = append(notes, "no executable")
		}

		sb.WriteString(fmt.Sprintf("%-18s %-24s %-12s %-10s %-14s %s\n",
			truncate(rec.ID, 18),
			truncate(rec.Name, 24),
			truncate(rec.InstalledVersion, 12),
			status,
			formatLaunched(rec.LastLaunched),
			strings.Join(notes, ", ")))
	}

	return sb.String()
}

func formatLaunched(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
