package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <id>",
	Short: "Remove an installed app",
	Long: `Run the app's vendor uninstaller silently when one can be found in the
recorded install directory, and remove the app from appdock either way. An
app without a clean vendor uninstall path is still dropped from the
dashboard; that is the user's intent.`,
	Args: cobra.ExactArgs(1),
	RunE: runUninstall,
}

func runUninstall(cmd *cobra.Command, args []string) error {
	id := args[0]

	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.installer.Uninstall(cmd.Context(), id); err != nil {
		return err
	}

	fmt.Printf("Uninstalled %s\n", id)
	return nil
}
