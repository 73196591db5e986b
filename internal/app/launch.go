package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/launcher"
)

var launchCmd = &cobra.Command{
	Use:   "launch <id>",
	Short: "Launch an installed app",
	Long: `Spawn the app's recorded executable detached from appdock, with standard
streams suppressed and launcher-internal environment variables stripped.
One running instance per app is enforced at this layer regardless of what
the program itself allows.`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

var killCmd = &cobra.Command{
	Use:   "kill <id>",
	Short: "Terminate a running app",
	Args:  cobra.ExactArgs(1),
	RunE:  runKill,
}

func runLaunch(cmd *cobra.Command, args []string) error {
	id := args[0]

	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	proc, err := svc.launcher.Launch(id)
	if err != nil {
		return err
	}

	fmt.Printf("Launched %s (pid %d)\n", id, proc.PID)
	return nil
}

func runKill(cmd *cobra.Command, args []string) error {
	id := args[0]

	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	err = svc.launcher.Kill(id)
	if errors.Is(err, launcher.ErrNotRunning) {
		// Nothing tracked in this process; fall back to a process-table scan
		// for the recorded executable.
		rec, recErr := svc.store.GetApp(id)
		if recErr != nil {
			return recErr
		}
		if rec == nil {
			return fmt.Errorf("%w: %s", launcher.ErrNotInstalled, id)
		}
		err = svc.launcher.KillByRecord(rec)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Killed %s\n", id)
	return nil
}
