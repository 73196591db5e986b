// Package updates sweeps installed applications against their latest
// releases and reports the ones with a strictly newer version available.
package updates

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/release"
	"github.com/blackwell-systems/appdock/internal/store"
)

// DefaultInterval is the periodic sweep interval before the user configures
// one.
const DefaultInterval = time.Hour

// Update describes one app with a newer release available.
type Update struct {
	ID        string
	Name      string
	Installed string
	Latest    string
}

// CatalogProvider supplies the current catalog; the daemon re-reads it when
// the catalog file changes.
type CatalogProvider func() ([]catalog.Definition, error)

// Checker runs update sweeps. Resolution goes straight to the release
// source, bypassing the version cache: an explicit check must be fresh.
type Checker struct {
	store    *store.Store
	source   release.Source
	catalog  CatalogProvider
	inFlight atomic.Bool

	mu         sync.Mutex
	interval   time.Duration
	intervalCh chan time.Duration

	log zerolog.Logger
}

// New creates a checker.
func New(st *store.Store, source release.Source, provider CatalogProvider) *Checker {
	return &Checker{
		store:      st,
		source:     source,
		catalog:    provider,
		interval:   DefaultInterval,
		intervalCh: make(chan time.Duration, 1),
		log:        logging.GetLogger("updates"),
	}
}

// Check sweeps every installed app once and returns the available updates.
// A sweep already in flight discards this request (nil, nil). Per-app
// resolution failures are logged and skipped: one unreachable source must
// not abort the sweep for other apps. The last-check timestamp is recorded
// even on partial completion.
func (c *Checker) Check(ctx context.Context) ([]Update, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.log.Debug().Msg("update check already running, discarding request")
		return nil, nil
	}
	defer c.inFlight.Store(false)

	records, err := c.store.ListApps()
	if err != nil {
		return nil, err
	}

	defs, err := c.catalog()
	if err != nil {
		return nil, err
	}

	var updates []Update
	for _, rec := range records {
		def := catalog.Find(defs, rec.ID)
		if def == nil {
			c.log.Debug().Str("app", rec.ID).Msg("installed app not in catalog, skipping")
			continue
		}

		rel, err := c.source.Resolve(ctx, def.Repo)
		if err != nil {
			c.log.Warn().Err(err).Str("app", rec.ID).Msg("update check failed for app, skipping")
			continue
		}

		if release.CompareVersions(rel.Version, rec.InstalledVersion) > 0 {
			updates = append(updates, Update{
				ID:        rec.ID,
				Name:      rec.Name,
				Installed: rec.InstalledVersion,
				Latest:    rel.Version,
			})
		}
	}

	if err := c.store.SetLastUpdateCheck(time.Now()); err != nil {
		c.log.Warn().Err(err).Msg("failed to record last update check")
	}

	c.log.Info().Int("installed", len(records)).Int("updates", len(updates)).Msg("update sweep complete")
	return updates, nil
}

// SetInterval changes the sweep interval and re-arms a running periodic
// loop.
func (c *Checker) SetInterval(d time.Duration) {
	if d <= 0 {
		d = DefaultInterval
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()

	select {
	case c.intervalCh <- d:
	default:
	}
}

// Interval returns the current sweep interval.
func (c *Checker) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Run performs periodic sweeps until ctx is cancelled. Sweep results are
// delivered through onUpdates, which may be nil. Errors never cross the
// timer boundary; they are logged and the loop continues.
func (c *Checker) Run(ctx context.Context, onUpdates func([]Update)) {
	timer := time.NewTimer(c.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.intervalCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d)
		case <-timer.C:
			updates, err := c.Check(ctx)
			if err != nil {
				c.log.Warn().Err(err).Msg("periodic update check failed")
			} else if onUpdates != nil && len(updates) > 0 {
				onUpdates(updates)
			}
			timer.Reset(c.Interval())
		}
	}
}
