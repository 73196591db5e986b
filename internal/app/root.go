package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/config"
	"github.com/blackwell-systems/appdock/internal/logging"
)

var (
	dbPath      string
	catalogPath string
	verbosity   int

	// RootCmd is the root command for appdock
	RootCmd = &cobra.Command{
		Use:   "appdock",
		Short: "Install, launch and update Windows apps from GitHub releases",
		Long: `appdock manages the full lifecycle of third-party Windows applications
distributed as GitHub release artifacts: it resolves the latest release,
downloads the installer, runs it silently, finds the executable the installer
actually produced, and keeps track of installs, running processes and updates.

Apps are described in a catalog file (apps.yaml in the config directory).
Installation needs no administrator privileges; installers that pick their
own destination are handled by a layered discovery heuristic with a manual
fallback.

Quick Start:
  1. Put your apps in ~/.config/appdock/apps.yaml
  2. appdock detect          # adopt apps that are already installed
  3. appdock install <id>
  4. appdock launch <id>
  5. appdock watch           # keep checking for updates`,
		Example: `  # Install the latest release of an app from the catalog
  appdock install obsidian

  # See everything appdock manages
  appdock list

  # Adopt installations made outside appdock
  appdock detect

  # Check all installed apps for updates once
  appdock check

  # Periodic update checking in the foreground
  appdock watch`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(verbosity, "")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("appdock: Windows app lifecycle manager for GitHub releases")
			fmt.Println()
			fmt.Println("Run 'appdock list' to see managed apps.")
			fmt.Println("Run 'appdock --help' for the full reference.")
			return nil
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.config/appdock/appdock.db)")
	RootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "catalog file path (default: ~/.config/appdock/apps.yaml)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug)")

	RootCmd.SuggestionsMinimumDistance = 2

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(uninstallCmd)
	RootCmd.AddCommand(launchCmd)
	RootCmd.AddCommand(killCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(detectCmd)
	RootCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(settingsCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}

	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(dir, "appdock.db"), nil
}

// getCatalogPath returns the catalog file path, using the flag value or default
func getCatalogPath() (string, error) {
	if catalogPath != "" {
		return catalogPath, nil
	}

	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "apps.yaml"), nil
}
