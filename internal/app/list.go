package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/output"
	"github.com/blackwell-systems/appdock/internal/release"
)

var (
	listLatest bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List managed apps with running state",
		Long: `Show every app appdock manages: installed version, whether a matching
process is currently running, when it was last launched, and whether it was
adopted by auto-detection.

With --latest the cached latest release version of each app is fetched and
apps with a newer version available are marked. The version cache bounds API
calls, so repeated listings within a few minutes cost nothing.`,
		Example: `  # Plain listing
  appdock list

  # Include update availability
  appdock list --latest`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listLatest, "latest", false, "fetch latest versions and mark available updates")
}

func runList(cmd *cobra.Command, args []string) error {
	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.store.ListApps()
	if err != nil {
		return err
	}

	running := make(map[string]bool)
	for id := range svc.launcher.DiscoverRunning(records) {
		running[id] = true
	}

	updatesAvail := make(map[string]string)
	if listLatest {
		defs, err := svc.loadCatalog()
		if err != nil {
			return err
		}
		for _, rec := range records {
			for _, def := range defs {
				if def.ID != rec.ID {
					continue
				}
				latest, err := svc.cache.LatestVersion(cmd.Context(), def.ID, def.Repo, def.Version)
				if err != nil {
					continue
				}
				if release.CompareVersions(latest, rec.InstalledVersion) > 0 {
					updatesAvail[rec.ID] = latest
				}
			}
		}
	}

	fmt.Print(output.RenderAppTable(records, running, updatesAvail))
	return nil
}
