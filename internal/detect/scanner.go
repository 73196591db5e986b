// Package detect adopts applications installed outside appdock. At startup
// it walks the catalog and attempts executable discovery for every entry not
// already backed by a verified record, widening the match surface with name
// variations. "Not found" is the normal outcome for most entries, never an
// error.
package detect

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/locate"
	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/store"
)

// Detection is one successful adoption, including the name variation that
// produced the hit for diagnostics.
type Detection struct {
	ID        string
	Name      string
	Path      string
	Variation string
}

// Report summarizes one scan sweep.
type Report struct {
	Detected []Detection
	Skipped  []string
	Errors   map[string]error
}

// Scanner attempts locator-based discovery for catalog entries.
type Scanner struct {
	store   *store.Store
	locator *locate.Locator
	sink    events.Sink
	log     zerolog.Logger
}

// New creates a scanner.
func New(st *store.Store, loc *locate.Locator, sink events.Sink) *Scanner {
	if sink == nil {
		sink = events.Discard
	}
	return &Scanner{
		store:   st,
		locator: loc,
		sink:    sink,
		log:     logging.GetLogger("detect"),
	}
}

// Scan walks the catalog. Entries with a verified record (executable still
// on disk) are skipped; records with a dead executable are purged on read
// and the entry re-attempted. Discovery uses global roots only (empty hint)
// and no polling: this is an opportunistic sweep, not a post-install search.
func (s *Scanner) Scan(defs []catalog.Definition) (*Report, error) {
	report := &Report{Errors: make(map[string]error)}

	for _, def := range defs {
		rec, err := s.store.VerifiedApp(def.ID)
		if err != nil {
			report.Errors[def.ID] = err
			continue
		}
		if rec != nil && rec.ExecutablePath != "" {
			report.Skipped = append(report.Skipped, def.ID)
			continue
		}

		detection, err := s.detect(def, rec)
		if err != nil {
			report.Errors[def.ID] = err
			continue
		}
		if detection != nil {
			report.Detected = append(report.Detected, *detection)
			s.sink.Publish(events.Event{
				Kind:    events.KindDetect,
				AppID:   def.ID,
				Message: detection.Path,
			})
		}
	}

	return report, nil
}

// detect attempts discovery for one entry. existing is the degraded install
// record (no executable path) when one exists: it keeps the version and
// flags recorded at install time, only the executable is filled in.
func (s *Scanner) detect(def catalog.Definition, existing *store.AppRecord) (*Detection, error) {
	for _, variation := range NameVariations(def.Name) {
		path, err := s.locator.Find(locate.Request{
			ID:      def.ID,
			Name:    variation,
			RepoURL: def.Repo,
		})
		if err != nil {
			if errors.Is(err, locate.ErrExecutableNotFound) {
				continue
			}
			return nil, err
		}

		if existing != nil {
			if err := s.store.SetExecutablePath(def.ID, path, filepath.Dir(path)); err != nil {
				return nil, err
			}
			s.log.Info().Str("app", def.ID).Str("variation", variation).
				Str("path", path).Msg("filled in executable for degraded install record")
		} else {
			rec := &store.AppRecord{
				ID:               def.ID,
				Name:             def.Name,
				InstalledVersion: def.Version,
				InstallPath:      filepath.Dir(path),
				ExecutablePath:   path,
				InstalledAt:      time.Now(),
				AutoDetected:     true,
			}
			if err := s.store.SaveApp(rec); err != nil {
				return nil, err
			}
			s.log.Info().Str("app", def.ID).Str("variation", variation).
				Str("path", path).Msg("adopted pre-existing installation")
		}

		return &Detection{ID: def.ID, Name: def.Name, Path: path, Variation: variation}, nil
	}

	return nil, nil
}

// NameVariations widens the match surface for display names that carry
// decorations installers drop: the literal name, the name with any
// parenthesized suffix removed, the name truncated at the first dash-like
// separator, and the first whitespace-delimited token.
func NameVariations(name string) []string {
	var variations []string
	seen := make(map[string]struct{})
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		variations = append(variations, v)
	}

	add(name)

	if idx := strings.Index(name, "("); idx > 0 {
		add(name[:idx])
	}

	for _, sep := range []string{" - ", " – ", " — ", ":", "-"} {
		if idx := strings.Index(name, sep); idx > 0 {
			add(name[:idx])
			break
		}
	}

	if fields := strings.Fields(name); len(fields) > 0 {
		add(strings.TrimRight(fields[0], ":-"))
	}

	return variations
}
