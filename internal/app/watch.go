package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/updates"
)

var (
	watchInterval time.Duration

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Run periodic update checks in the foreground",
		Long: `Keep appdock running and sweep all installed apps for updates on a timer
(default one hour, configurable with 'appdock settings --interval' or
--interval for this run only).

On startup the watcher also:
  • purges download temp files older than 24 hours
  • runs an auto-detection sweep to adopt apps installed outside appdock
  • watches the catalog file and picks up edits without a restart

Stop with Ctrl+C.`,
		Example: `  # Hourly checks (default)
  appdock watch

  # Check every 15 minutes
  appdock watch --interval 15m`,
		RunE: runWatchCmd,
	}
)

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "update check interval (overrides settings for this run)")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	log := logging.GetLogger("watch")

	svc, err := openServices(events.Discard)
	if err != nil {
		return err
	}
	defer svc.Close()

	if watchInterval > 0 {
		svc.checker.SetInterval(watchInterval)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Startup maintenance: bound the temp directory, then adopt anything
	// installed behind our back.
	if err := svc.downloads.CleanupStale(24 * time.Hour); err != nil {
		log.Warn().Err(err).Msg("temp file cleanup failed")
	}

	if defs, err := svc.loadCatalog(); err != nil {
		log.Warn().Err(err).Msg("catalog load failed, auto-detection skipped")
	} else if report, err := svc.detector.Scan(defs); err != nil {
		log.Warn().Err(err).Msg("auto-detection sweep failed")
	} else if len(report.Detected) > 0 {
		for _, d := range report.Detected {
			fmt.Printf("Adopted %s -> %s\n", d.ID, d.Path)
		}
	}

	// Catalog edits take effect on the next sweep; the checker re-reads the
	// file each time, the watch just surfaces feedback immediately.
	go func() {
		err := catalog.Watch(ctx, svc.catalogSrc, func() {
			if _, err := svc.loadCatalog(); err != nil {
				log.Warn().Err(err).Msg("catalog changed but does not parse")
				return
			}
			log.Info().Str("path", svc.catalogSrc).Msg("catalog reloaded")
		})
		if err != nil {
			log.Warn().Err(err).Msg("catalog watch unavailable")
		}
	}()

	go svc.checker.Run(ctx, func(found []updates.Update) {
		for _, u := range found {
			fmt.Printf("Update available: %s %s -> %s\n", u.ID, u.Installed, u.Latest)
		}
	})

	fmt.Printf("Watching for updates every %s (Ctrl+C to stop)\n", svc.checker.Interval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	select {
	case sig := <-sigCh:
		fmt.Fprintf(os.Stderr, "received signal %v, shutting down...\n", sig)
	case <-ctx.Done():
	}

	return nil
}
