package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/output"
)

var installCmd = &cobra.Command{
	Use:   "install <id>",
	Short: "Download and silently install an app from its latest release",
	Long: `Resolve the latest GitHub release for a catalog app, download the best
Windows asset (.exe, .msi or a zip), run the installer silently, and locate
the executable it produced.

Installers choose their own destination directory, so after the installer
exits appdock searches the registry and the well-known install roots for the
executable, retrying while the installer finishes its background work. If the
search comes up empty you are asked for the path; skipping the question still
records the install so update checks keep working.`,
	Example: `  # Install the latest release
  appdock install obsidian`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

func runInstall(cmd *cobra.Command, args []string) error {
	id := args[0]

	// The bar is created once the asset name is known; until then download
	// events are dropped.
	var bar *output.ByteProgress
	sink := events.SinkFunc(func(e events.Event) {
		if e.Kind == events.KindDownload && bar != nil {
			bar.Update(e.Received, e.Total, e.BytesPerSec)
		}
	})

	svc, err := openServices(sink)
	if err != nil {
		return err
	}
	defer svc.Close()

	def, err := svc.requireDefinition(id)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	rel, err := svc.resolver.Resolve(ctx, def.Repo)
	if err != nil {
		return fmt.Errorf("failed to resolve latest release for %s: %w", id, err)
	}
	if rel.Asset == nil {
		return fmt.Errorf("release %s of %s has no installable Windows asset", rel.Version, id)
	}

	fmt.Printf("Installing %s %s (%s)\n", def.Name, rel.Version, rel.Asset.Name)

	bar = output.NewByteProgress("downloading " + rel.Asset.Name)
	artifact, err := svc.downloads.Download(ctx, id, rel.Asset.DownloadURL)
	if err != nil {
		return err
	}
	bar.Finish()

	rec, err := svc.installer.Install(ctx, *def, artifact, rel.Version)
	if err != nil {
		return err
	}

	if rec.ExecutablePath != "" {
		fmt.Printf("Installed %s %s -> %s\n", def.Name, rel.Version, rec.ExecutablePath)
	} else {
		fmt.Printf("Installed %s %s (executable not located; use 'appdock detect' or reinstall)\n", def.Name, rel.Version)
	}
	return nil
}
