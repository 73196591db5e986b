package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
)

var (
	settingsInterval time.Duration
	settingsToken    string

	settingsCmd = &cobra.Command{
		Use:   "settings",
		Short: "Show or change persisted settings",
		Long: `Without flags, print the current settings. Flags persist new values: the
update check interval used by 'appdock watch', and a GitHub API token that
raises the anonymous rate limit (the APPDOCK_GITHUB_TOKEN and GITHUB_TOKEN
environment variables are honored as well).`,
		Example: `  # Show settings
  appdock settings

  # Check every 30 minutes from now on
  appdock settings --interval 30m`,
		RunE: runSettings,
	}
)

func init() {
	settingsCmd.Flags().DurationVar(&settingsInterval, "interval", 0, "persist a new update check interval")
	settingsCmd.Flags().StringVar(&settingsToken, "token", "", "persist a GitHub API token")
}

func runSettings(cmd *cobra.Command, args []string) error {
	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	settings, err := svc.store.GetSettings()
	if err != nil {
		return err
	}

	changed := false
	if settingsInterval > 0 {
		settings.UpdateIntervalMinutes = int(settingsInterval.Minutes())
		if settings.UpdateIntervalMinutes < 1 {
			settings.UpdateIntervalMinutes = 1
		}
		changed = true
	}
	if settingsToken != "" {
		settings.GitHubToken = settingsToken
		changed = true
	}

	if changed {
		if err := svc.store.SaveSettings(settings); err != nil {
			return err
		}
		// A running watch daemon re-reads the interval on its next start;
		// this process re-arms its own checker immediately.
		svc.checker.SetInterval(minutes(settings.UpdateIntervalMinutes))
	}

	fmt.Printf("Update check interval: %dm\n", settings.UpdateIntervalMinutes)
	if settings.GitHubToken != "" {
		fmt.Println("GitHub token: configured")
	} else {
		fmt.Println("GitHub token: not set (using environment if present)")
	}

	lastCheck, err := svc.store.LastUpdateCheck()
	if err == nil && !lastCheck.IsZero() {
		fmt.Printf("Last update check: %s\n", lastCheck.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
