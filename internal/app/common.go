package app

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/config"
	"github.com/blackwell-systems/appdock/internal/detect"
	"github.com/blackwell-systems/appdock/internal/download"
	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/installer"
	"github.com/blackwell-systems/appdock/internal/launcher"
	"github.com/blackwell-systems/appdock/internal/locate"
	"github.com/blackwell-systems/appdock/internal/release"
	"github.com/blackwell-systems/appdock/internal/store"
	"github.com/blackwell-systems/appdock/internal/updates"
)

// services holds the wired-together service objects the commands use. They
// are explicit, independently constructible values assembled here at
// process start; there are no package-level mutable singletons.
type services struct {
	store      *store.Store
	resolver   *release.Resolver
	cache      *release.VersionCache
	downloads  *download.Manager
	locator    *locate.Locator
	installer  *installer.Orchestrator
	detector   *detect.Scanner
	launcher   *launcher.Service
	checker    *updates.Checker
	catalogSrc string
}

// openServices opens the store and wires every service. The caller must
// Close() the result.
func openServices(sink events.Sink) (*services, error) {
	dbFile, err := getDBPath()
	if err != nil {
		return nil, err
	}

	st, err := store.New(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create database schema: %w", err)
	}

	catalogFile, err := getCatalogPath()
	if err != nil {
		st.Close()
		return nil, err
	}

	dataDir, err := config.DataDir()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	downloads, err := download.NewManager(filepath.Join(dataDir, "downloads"), sink)
	if err != nil {
		st.Close()
		return nil, err
	}

	settings, err := st.GetSettings()
	if err != nil {
		st.Close()
		return nil, err
	}
	token := settings.GitHubToken
	if token == "" {
		token = config.GitHubToken()
	}

	resolver := release.NewResolver(token)
	loc := locate.New(locate.NewSystemRegistry())

	orch := installer.New(st, loc, sink, filepath.Join(dataDir, "apps"))
	orch.SetManualLocator(terminalLocator{})

	svc := &services{
		store:      st,
		resolver:   resolver,
		cache:      release.NewVersionCache(resolver),
		downloads:  downloads,
		locator:    loc,
		installer:  orch,
		detector:   detect.New(st, loc, sink),
		launcher:   launcher.New(st),
		catalogSrc: catalogFile,
	}
	svc.checker = updates.New(st, resolver, svc.loadCatalog)
	if settings.UpdateIntervalMinutes > 0 {
		svc.checker.SetInterval(minutes(settings.UpdateIntervalMinutes))
	}
	return svc, nil
}

func (s *services) Close() error {
	return s.store.Close()
}

func (s *services) loadCatalog() ([]catalog.Definition, error) {
	return catalog.Load(s.catalogSrc)
}

// requireDefinition loads the catalog and returns the entry for id.
func (s *services) requireDefinition(id string) (*catalog.Definition, error) {
	defs, err := s.loadCatalog()
	if err != nil {
		return nil, err
	}
	def := catalog.Find(defs, id)
	if def == nil {
		return nil, fmt.Errorf("app %q is not in the catalog (%s)", id, s.catalogSrc)
	}
	return def, nil
}

// terminalLocator is the interactive manual-selection fallback: when
// discovery exhausts its attempts the user is asked for the executable path.
// An empty answer cancels, which records the install without an executable.
type terminalLocator struct{}

func (terminalLocator) Locate(def catalog.Definition) (string, error) {
	fmt.Printf("Could not find the executable for %s automatically.\n", def.Name)
	fmt.Print("Enter the full path to the executable (empty to skip): ")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", nil
	}
	return strings.TrimSpace(line), nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
