package locate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/release"
)

// ErrExecutableNotFound means every phase exhausted every root without a hit.
// It is recoverable: install flows degrade to manual selection instead of
// failing hard.
var ErrExecutableNotFound = errors.New("executable not found")

// Polling profiles. Installers may still be writing files or registering
// uninstall keys when their process exits, so a real install is retried
// patiently; a zip extraction is local and gets the impatient profile.
const (
	InstallAttempts = 10
	InstallDelay    = 3 * time.Second
	QuickAttempts   = 5
	QuickDelay      = 500 * time.Millisecond

	defaultMaxDepth = 3
)

// noiseWords mark executables that are almost never the application itself.
var noiseWords = []string{"setup", "install", "unins", "updater", "launcher"}

// Request identifies what to look for. Hint is advisory, not authoritative:
// installers frequently ignore it. RepoURL, when set, contributes the
// repository slug as an extra candidate name.
type Request struct {
	ID      string
	Name    string
	Hint    string
	RepoURL string
}

// Locator is the heuristic executable-discovery engine.
type Locator struct {
	registry RegistryView
	roots    []string
	maxDepth int
	log      zerolog.Logger
}

// New creates a locator over the system registry view and the well-known
// Windows install roots.
func New(reg RegistryView) *Locator {
	return &Locator{
		registry: reg,
		roots:    defaultRoots(),
		maxDepth: defaultMaxDepth,
		log:      logging.GetLogger("locate"),
	}
}

// defaultRoots lists the well-known parent directories installers put
// applications under. Roots whose environment variable is unset (e.g. on
// non-Windows hosts) are dropped.
func defaultRoots() []string {
	var roots []string
	add := func(p string) {
		if p != "" {
			roots = append(roots, p)
		}
	}

	add(os.Getenv("ProgramFiles"))
	add(os.Getenv("ProgramFiles(x86)"))
	local := os.Getenv("LOCALAPPDATA")
	add(local)
	add(os.Getenv("APPDATA"))
	if local != "" {
		add(filepath.Join(local, "Programs"))
	}
	return roots
}

// Find runs the full phase sequence once: registry probe, flat filesystem
// probe, then a depth-bounded recursive probe. Each phase is exhausted
// before the next begins.
func (l *Locator) Find(req Request) (string, error) {
	names := l.candidateNames(req)

	if path := l.probeRegistry(req, names); path != "" {
		return path, nil
	}

	dirs := l.candidateDirs(req, names)

	if path := l.probeFlat(req, dirs); path != "" {
		return path, nil
	}

	if path := l.probeRecursive(req, dirs); path != "" {
		return path, nil
	}

	return "", fmt.Errorf("%w: %s (probed %d directories)", ErrExecutableNotFound, req.ID, len(dirs))
}

// FindWithPolling retries the full phase sequence with a fixed delay.
// Installer exit code 0 does not imply filesystem or registry visibility,
// so callers poll after installs.
func (l *Locator) FindWithPolling(req Request, attempts int, delay time.Duration) (string, error) {
	if attempts < 1 {
		attempts = 1
	}

	var path string
	op := func() error {
		p, err := l.Find(req)
		if err != nil {
			return err
		}
		path = p
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1))
	if err := backoff.Retry(op, b); err != nil {
		return "", err
	}
	return path, nil
}

// candidateNames returns the deduplicated name candidates in match-priority
// order: display name, repository slug, identity.
func (l *Locator) candidateNames(req Request) []string {
	var names []string
	seen := make(map[string]struct{})
	add := func(n string) {
		n = strings.TrimSpace(n)
		if n == "" {
			return
		}
		key := strings.ToLower(n)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		names = append(names, n)
	}

	add(req.Name)
	add(release.RepoSlug(req.RepoURL))
	add(req.ID)
	return names
}

// candidateDirs cross-products every candidate name against every root,
// then appends the raw hint directory itself.
func (l *Locator) candidateDirs(req Request, names []string) []string {
	roots := l.roots
	if req.Hint != "" {
		roots = append([]string{req.Hint}, l.roots...)
	}

	var dirs []string
	seen := make(map[string]struct{})
	add := func(d string) {
		if d == "" {
			return
		}
		key := strings.ToLower(filepath.Clean(d))
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		dirs = append(dirs, d)
	}

	for _, name := range names {
		for _, root := range roots {
			add(filepath.Join(root, name))
		}
	}
	add(req.Hint)
	return dirs
}

// Phase 1: registry probe. Candidate names are substring-matched in either
// direction against each uninstall entry's display name; a hit yields either
// the entry's icon executable or the first executable in its recorded
// install location.
func (l *Locator) probeRegistry(req Request, names []string) string {
	entries, err := l.registry.UninstallEntries()
	if err != nil {
		l.log.Warn().Err(err).Str("app", req.ID).Msg("registry enumeration failed")
		return ""
	}
	if len(entries) == 0 {
		return ""
	}

	for _, name := range names {
		for _, entry := range entries {
			if !matchEitherWay(entry.DisplayName, name) {
				continue
			}

			if exe := exeFromIcon(entry.DisplayIcon); exe != "" {
				l.log.Debug().Str("app", req.ID).Str("match", entry.DisplayName).
					Str("path", exe).Msg("registry probe hit via display icon")
				return exe
			}
			if entry.InstallLocation != "" {
				if exe := firstExeIn(entry.InstallLocation); exe != "" {
					l.log.Debug().Str("app", req.ID).Str("match", entry.DisplayName).
						Str("path", exe).Msg("registry probe hit via install location")
					return exe
				}
			}
		}
	}
	return ""
}

// Phase 2: non-recursive filesystem probe. The first directory yielding a
// choice wins.
func (l *Locator) probeFlat(req Request, dirs []string) string {
	for _, dir := range dirs {
		exes, err := listExes(dir)
		if err != nil {
			l.log.Debug().Str("app", req.ID).Str("dir", dir).Msg("probe: directory absent")
			continue
		}
		l.log.Debug().Str("app", req.ID).Str("dir", dir).Strs("exes", exes).Msg("probe: directory listing")
		if len(exes) == 0 {
			continue
		}

		if choice := l.pickExecutable(req, dir, exes); choice != "" {
			return choice
		}
	}
	return ""
}

// pickExecutable chooses among the executables of one directory:
// (a) a filename whose normalized form equals or contains the normalized app
// name, else (b) the first one free of installer noise words, else (c) the
// first one found, with a warning.
func (l *Locator) pickExecutable(req Request, dir string, exes []string) string {
	want := normalizeName(req.Name)

	if want != "" {
		for _, exe := range exes {
			got := normalizeName(strings.TrimSuffix(exe, filepath.Ext(exe)))
			if got == want || strings.Contains(got, want) {
				return filepath.Join(dir, exe)
			}
		}
	}

	for _, exe := range exes {
		if !containsNoise(exe) {
			return filepath.Join(dir, exe)
		}
	}

	l.log.Warn().Str("app", req.ID).Str("dir", dir).Str("exe", exes[0]).
		Msg("no clean executable candidate, taking first found")
	return filepath.Join(dir, exes[0])
}

// Phase 3: recursive probe over the same directory set, depth-bounded. The
// first executable encountered in traversal order wins. Deliberately slower;
// only reached when phases 1-2 exhausted every root.
func (l *Locator) probeRecursive(req Request, dirs []string) string {
	for _, dir := range dirs {
		if found := l.walkForExe(req, dir); found != "" {
			return found
		}
	}
	return ""
}

func (l *Locator) walkForExe(req Request, root string) string {
	if _, err := os.Stat(root); err != nil {
		return ""
	}

	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if depthOf(root, path) >= l.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if isExe(d.Name()) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		l.log.Debug().Err(err).Str("app", req.ID).Str("root", root).Msg("recursive probe aborted")
	}
	if found != "" {
		l.log.Debug().Str("app", req.ID).Str("path", found).Msg("recursive probe hit")
	}
	return found
}

func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func isExe(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".exe")
}

// listExes returns the executable filenames directly inside dir, in
// directory order.
func listExes(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var exes []string
	for _, entry := range entries {
		if !entry.IsDir() && isExe(entry.Name()) {
			exes = append(exes, entry.Name())
		}
	}
	return exes, nil
}

func firstExeIn(dir string) string {
	exes, err := listExes(dir)
	if err != nil || len(exes) == 0 {
		return ""
	}
	return filepath.Join(dir, exes[0])
}

// exeFromIcon extracts an executable path from an uninstall entry's
// DisplayIcon value, which may be quoted and may carry an ",<index>" suffix.
func exeFromIcon(icon string) string {
	icon = strings.Trim(strings.TrimSpace(icon), `"`)
	if idx := strings.LastIndex(icon, ","); idx > 1 {
		icon = icon[:idx]
	}
	icon = strings.Trim(icon, `"`)
	if !isExe(icon) {
		return ""
	}
	if _, err := os.Stat(icon); err != nil {
		return ""
	}
	return icon
}

func matchEitherWay(a, b string) bool {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	if al == "" || bl == "" {
		return false
	}
	return strings.Contains(al, bl) || strings.Contains(bl, al)
}

// normalizeName case-folds and strips spaces so "MyApp Helper.exe" matches
// the app name "My App".
func normalizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

func containsNoise(name string) bool {
	lower := strings.ToLower(name)
	for _, word := range noiseWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
