// Package installer orchestrates silent installs, zip extractions, and
// uninstalls. Installers are uncooperative collaborators: they pick their own
// target directory, exit before their side effects are visible, and ship no
// machine-readable outcome, so every install ends with a polling executable
// search and, as a last resort, manual selection.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/locate"
	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/store"
)

var (
	ErrUnknownInstallerType = errors.New("unknown installer type")
	ErrAlreadyInstalling    = errors.New("install already in progress")
	ErrInstallationFailed   = errors.New("installation failed")
	ErrExtractionFailed     = errors.New("extraction failed")
)

// State names for the install state machine, published through the event
// sink as phases.
const (
	StatePreparing  = "preparing"
	StateInstalling = "installing"
	StateExtracting = "extracting"
	StateSearching  = "searching"
	StateCompleted  = "completed"
	StateError      = "error"
)

// settleDelay is the fixed wait after an installer process exits: exit code
// 0 does not guarantee the installer's background registration has finished.
const settleDelay = 2 * time.Second

// uninstallerNames is the known set of vendor uninstaller filenames probed
// inside a recorded install path.
var uninstallerNames = []string{"uninstall.exe", "unins000.exe", "uninst.exe"}

// ManualLocator is the interactive fallback when polling discovery fails.
// Returning an empty path with a nil error means the user cancelled.
type ManualLocator interface {
	Locate(def catalog.Definition) (string, error)
}

// Orchestrator runs installs and uninstalls with an at-most-one-per-app
// guarantee.
type Orchestrator struct {
	store      *store.Store
	locator    *locate.Locator
	manual     ManualLocator
	sink       events.Sink
	extractDir string
	settle     time.Duration

	mu    sync.Mutex
	tasks map[string]struct{}

	log zerolog.Logger
}

// New creates an orchestrator. extractDir is the user-writable base
// directory zip artifacts are extracted under, one subdirectory per app.
func New(st *store.Store, loc *locate.Locator, sink events.Sink, extractDir string) *Orchestrator {
	if sink == nil {
		sink = events.Discard
	}
	return &Orchestrator{
		store:      st,
		locator:    loc,
		sink:       sink,
		extractDir: extractDir,
		settle:     settleDelay,
		tasks:      make(map[string]struct{}),
		log:        logging.GetLogger("installer"),
	}
}

// SetManualLocator installs the interactive fallback. Without one, failed
// discovery degrades straight to a record with no executable path.
func (o *Orchestrator) SetManualLocator(m ManualLocator) {
	o.manual = m
}

// Install runs the artifact at artifactPath for def and persists the
// resulting AppRecord. The installer type is dispatched on the artifact's
// file extension. Fails fast with ErrAlreadyInstalling when an install or
// uninstall for this identity is active.
func (o *Orchestrator) Install(ctx context.Context, def catalog.Definition, artifactPath, version string) (*store.AppRecord, error) {
	if !o.acquire(def.ID) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInstalling, def.ID)
	}
	defer o.release(def.ID)

	o.publish(def.ID, StatePreparing, "")

	rec, err := o.install(ctx, def, artifactPath, version)
	if err != nil {
		o.publishErr(def.ID, err)
		return nil, err
	}

	o.publish(def.ID, StateCompleted, rec.ExecutablePath)
	return rec, nil
}

func (o *Orchestrator) install(ctx context.Context, def catalog.Definition, artifactPath, version string) (*store.AppRecord, error) {
	var exePath string
	var searchHint string
	var err error

	switch strings.ToLower(filepath.Ext(artifactPath)) {
	case ".exe", ".msi":
		o.publish(def.ID, StateInstalling, "")
		if err := o.runSilent(ctx, artifactPath); err != nil {
			return nil, err
		}

		// Give the installer's asynchronous registration a moment before
		// the first search attempt.
		select {
		case <-time.After(o.settle):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		o.publish(def.ID, StateSearching, "")
		exePath, err = o.locator.FindWithPolling(locate.Request{
			ID:      def.ID,
			Name:    def.Name,
			RepoURL: def.Repo,
		}, locate.InstallAttempts, locate.InstallDelay)

	case ".zip":
		o.publish(def.ID, StateExtracting, "")
		dir := filepath.Join(o.extractDir, def.ID)
		if err := extractZip(artifactPath, dir); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
		}
		searchHint = dir

		o.publish(def.ID, StateSearching, "")
		exePath, err = o.locator.FindWithPolling(locate.Request{
			ID:      def.ID,
			Name:    def.Name,
			Hint:    dir,
			RepoURL: def.Repo,
		}, locate.QuickAttempts, locate.QuickDelay)

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownInstallerType, filepath.Ext(artifactPath))
	}

	if err != nil {
		if !errors.Is(err, locate.ErrExecutableNotFound) {
			return nil, err
		}
		// Exhausted polling is not fatal: fall back to manual selection.
		// User cancellation still records the install, with no executable,
		// so retry and update flows stay coherent.
		exePath, err = o.locateManually(def)
		if err != nil {
			return nil, err
		}
	}

	rec := &store.AppRecord{
		ID:               def.ID,
		Name:             def.Name,
		InstalledVersion: version,
		ExecutablePath:   exePath,
		InstalledAt:      time.Now(),
	}
	if exePath != "" {
		// The authoritative install path is where the executable actually
		// is, never the original hint.
		rec.InstallPath = filepath.Dir(exePath)
	} else {
		rec.InstallPath = searchHint
	}

	if err := o.store.SaveApp(rec); err != nil {
		return nil, err
	}

	o.log.Info().Str("app", def.ID).Str("version", version).
		Str("exe", exePath).Msg("install recorded")
	return rec, nil
}

func (o *Orchestrator) locateManually(def catalog.Definition) (string, error) {
	if o.manual == nil {
		o.log.Warn().Str("app", def.ID).Msg("discovery exhausted and no manual locator wired, recording install without executable")
		return "", nil
	}

	path, err := o.manual.Locate(def)
	if err != nil {
		return "", err
	}
	if path == "" {
		o.log.Warn().Str("app", def.ID).Msg("manual selection cancelled, recording install without executable")
		return "", nil
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: selected path %s: %v", ErrInstallationFailed, path, err)
	}
	return path, nil
}

// runSilent spawns the installer with its silent flags and waits for exit.
// No install directory is forced: installers that relocate to AppData or
// Program Files on their own are common, and a forced path they ignore
// breaks discovery. MSI routes through the OS installer service; EXE is
// spawned directly with no shell wrapping. No timeout either: silent
// installers may legitimately run long.
func (o *Orchestrator) runSilent(ctx context.Context, artifactPath string) error {
	var cmd *exec.Cmd
	if strings.EqualFold(filepath.Ext(artifactPath), ".msi") {
		cmd = exec.CommandContext(ctx, "msiexec", "/i", artifactPath, "/quiet", "/norestart")
	} else {
		cmd = exec.CommandContext(ctx, artifactPath, "/S")
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s: %v (output: %s)", ErrInstallationFailed,
			filepath.Base(artifactPath), err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Uninstall runs the vendor uninstaller when one can be found and always
// removes the AppRecord: the user's intent to drop the app must succeed even
// when the vendor provided no clean uninstall path. Shares the per-identity
// lock with Install.
func (o *Orchestrator) Uninstall(ctx context.Context, id string) error {
	if !o.acquire(id) {
		return fmt.Errorf("%w: %s", ErrAlreadyInstalling, id)
	}
	defer o.release(id)

	rec, err := o.store.GetApp(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("app %s is not installed", id)
	}

	if rec.InstallPath != "" {
		if uninstaller := findUninstaller(rec.InstallPath); uninstaller != "" {
			cmd := exec.CommandContext(ctx, uninstaller, "/S")
			if output, err := cmd.CombinedOutput(); err != nil {
				o.log.Warn().Err(err).Str("app", id).Str("uninstaller", uninstaller).
					Str("output", strings.TrimSpace(string(output))).
					Msg("uninstaller failed, removing record anyway")
			}
		} else {
			o.log.Info().Str("app", id).Str("path", rec.InstallPath).
				Msg("no uninstaller found, removing record only")
		}
	}

	return o.store.DeleteApp(id)
}

func findUninstaller(installPath string) string {
	for _, name := range uninstallerNames {
		p := filepath.Join(installPath, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (o *Orchestrator) acquire(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.tasks[id]; exists {
		return false
	}
	o.tasks[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.tasks, id)
}

func (o *Orchestrator) publish(id, phase, message string) {
	o.sink.Publish(events.Event{Kind: events.KindInstall, AppID: id, Phase: phase, Message: message})
}

func (o *Orchestrator) publishErr(id string, err error) {
	o.sink.Publish(events.Event{Kind: events.KindInstall, AppID: id, Phase: StateError, Err: err})
}
