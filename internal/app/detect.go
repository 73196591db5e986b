package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Adopt apps installed outside appdock",
	Long: `Walk the catalog and look for applications that are already installed but
not yet tracked: the registry and well-known install directories are probed
with several variations of each app's display name. Apps found this way are
recorded as auto-detected; apps that are simply not installed are not an
error.`,
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	defs, err := svc.loadCatalog()
	if err != nil {
		return err
	}

	report, err := svc.detector.Scan(defs)
	if err != nil {
		return err
	}

	for _, d := range report.Detected {
		fmt.Printf("Detected %s (%s) -> %s [matched %q]\n", d.Name, d.ID, d.Path, d.Variation)
	}
	for id, scanErr := range report.Errors {
		fmt.Printf("Error scanning %s: %v\n", id, scanErr)
	}

	fmt.Printf("\n%d detected, %d already tracked, %d errors (%d catalog entries)\n",
		len(report.Detected), len(report.Skipped), len(report.Errors), len(defs))
	return nil
}
