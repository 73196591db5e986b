package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check all installed apps for updates",
	Long: `Resolve the latest release of every installed app and report the ones with
a strictly newer version. This explicit check bypasses the version cache so
the answer is always fresh. Apps whose release source is unreachable are
skipped, not fatal.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	updates, err := svc.checker.Check(cmd.Context())
	if err != nil {
		return err
	}

	if len(updates) == 0 {
		fmt.Println("All apps are up to date.")
		return nil
	}

	for _, u := range updates {
		fmt.Printf("%s: %s -> %s\n", u.ID, u.Installed, u.Latest)
	}
	fmt.Printf("\n%d update(s) available. Run 'appdock install <id>' to update.\n", len(updates))
	return nil
}
