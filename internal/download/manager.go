// Package download streams release artifacts to local temp files with
// progress reporting, redirect handling, cancellation, and an at-most-one
// active download per application guarantee.
package download

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/logging"
)

var (
	ErrAlreadyDownloading = errors.New("download already in progress")
	ErrDownloadFailed     = errors.New("download failed")
)

const (
	// progressInterval bounds the event rate so a fast transfer does not
	// flood the sink.
	progressInterval = 200 * time.Millisecond
	// inactivityTimeout aborts a transfer that has stopped making progress.
	inactivityTimeout = 30 * time.Second
	maxRedirects      = 5
	copyBufferSize    = 64 * 1024
)

type task struct {
	cancel context.CancelFunc
	dest   string
}

// Manager downloads URLs into a temp directory. At most one download per
// application identity is active at a time; a second request fails fast.
type Manager struct {
	dir        string
	client     *http.Client
	sink       events.Sink
	inactivity time.Duration

	mu    sync.Mutex
	tasks map[string]*task

	log zerolog.Logger
}

// NewManager creates a download manager rooted at dir. The directory is
// created if missing. Transfer progress is published through sink as
// download events.
func NewManager(dir string, sink events.Sink) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if sink == nil {
		sink = events.Discard
	}
	return &Manager{
		dir: dir,
		client: &http.Client{
			// Redirects are handled manually so the originally intended
			// filename survives host-side renames.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		sink:       sink,
		inactivity: inactivityTimeout,
		tasks:      make(map[string]*task),
		log:        logging.GetLogger("download"),
	}, nil
}

// Download streams rawurl into a deterministic temp file and returns its
// path. Rate-limited progress events, plus one final event carrying the
// complete byte count, are published to the sink. Fails immediately with
// ErrAlreadyDownloading when a transfer for id is active.
func (m *Manager) Download(ctx context.Context, id, rawurl string) (string, error) {
	dest, err := m.destPath(rawurl)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if _, exists := m.tasks[id]; exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrAlreadyDownloading, id)
	}
	m.tasks[id] = &task{cancel: cancel, dest: dest}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
	}()

	if err := m.fetch(ctx, id, rawurl, dest, 0); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// Cancel tears down an in-flight transfer and its partial file. It returns
// false when no transfer was active for id.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// destPath computes the deterministic temp filename for a URL: a short hash
// of the full URL plus its basename, so repeated downloads of the same URL
// land on the same path.
func (m *Manager) destPath(rawurl string) (string, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL %q: %v", ErrDownloadFailed, rawurl, err)
	}
	base := path.Base(u.Path)
	if base == "/" || base == "." || base == "" {
		base = "download"
	}
	sum := sha256.Sum256([]byte(rawurl))
	return filepath.Join(m.dir, fmt.Sprintf("%x-%s", sum[:6], base)), nil
}

func (m *Manager) fetch(ctx context.Context, id, rawurl, dest string, redirects int) error {
	if redirects > maxRedirects {
		return fmt.Errorf("%w: too many redirects for %s", ErrDownloadFailed, rawurl)
	}

	// The inactivity watchdog aborts through this context. The request must
	// be built with it, or cancelling would not reach the transport and a
	// Read blocked on a half-open connection would never return.
	ctx, abort := context.WithCancel(ctx)
	defer abort()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return m.stream(ctx, abort, id, resp, dest)
	case http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		target := resp.Header.Get("Location")
		if target == "" {
			return fmt.Errorf("%w: redirect without Location from %s", ErrDownloadFailed, rawurl)
		}
		if ref, err := resp.Request.URL.Parse(target); err == nil {
			target = ref.String()
		}
		// Restart on the redirect target; the destination filename derived
		// from the original URL is preserved.
		os.Remove(dest)
		m.log.Debug().Str("from", rawurl).Str("to", target).Msg("following redirect")
		return m.fetch(ctx, id, target, dest, redirects+1)
	default:
		return fmt.Errorf("%w: status %d from %s", ErrDownloadFailed, resp.StatusCode, rawurl)
	}
}

func (m *Manager) stream(ctx context.Context, abort context.CancelFunc, id string, resp *http.Response, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer f.Close()

	total := resp.ContentLength

	// Inactivity watchdog: a stalled transfer is aborted rather than left
	// hanging on a half-open connection.
	var lastActivity atomic.Int64
	lastActivity.Store(time.Now().UnixNano())

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	tick := time.Second
	if m.inactivity < tick {
		tick = m.inactivity / 2
	}
	go func() {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-ticker.C:
				idle := time.Since(time.Unix(0, lastActivity.Load()))
				if idle > m.inactivity {
					m.log.Warn().Str("dest", dest).Dur("idle", idle).Msg("download stalled, aborting")
					abort()
					return
				}
			}
		}
	}()

	var received int64
	start := time.Now()
	lastEmit := time.Time{}
	buf := make([]byte, copyBufferSize)

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrDownloadFailed, ctx.Err())
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("%w: %v", ErrDownloadFailed, writeErr)
			}
			received += int64(n)
			lastActivity.Store(time.Now().UnixNano())

			if time.Since(lastEmit) >= progressInterval {
				lastEmit = time.Now()
				m.publish(id, received, total, rate(received, start))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	finalTotal := total
	if finalTotal < 0 {
		finalTotal = received
	}
	m.publish(id, received, finalTotal, rate(received, start))

	m.log.Info().Str("dest", dest).Int64("bytes", received).Msg("download complete")
	return nil
}

func (m *Manager) publish(id string, received, total int64, bytesPerSec float64) {
	m.sink.Publish(events.Event{
		Kind:        events.KindDownload,
		AppID:       id,
		Received:    received,
		Total:       total,
		BytesPerSec: bytesPerSec,
	})
}

func rate(received int64, start time.Time) float64 {
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(received) / elapsed
}

// CleanupStale removes temp files older than maxAge from the download
// directory. Run at process startup to keep abandoned artifacts bounded.
func (m *Manager) CleanupStale(maxAge time.Duration) error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("failed to read download directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			p := filepath.Join(m.dir, entry.Name())
			if err := os.Remove(p); err != nil {
				m.log.Warn().Err(err).Str("path", p).Msg("failed to remove stale temp file")
				continue
			}
			m.log.Debug().Str("path", p).Msg("removed stale temp file")
		}
	}
	return nil
}

// Dir returns the download directory.
func (m *Manager) Dir() string { return m.dir }
