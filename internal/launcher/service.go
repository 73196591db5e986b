// Package launcher spawns installed applications and tracks the resulting
// OS processes. Liveness is a runtime-only fact: tracking entries are never
// persisted.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/blackwell-systems/appdock/internal/logging"
	"github.com/blackwell-systems/appdock/internal/store"
)

var (
	ErrNotInstalled      = errors.New("app is not installed")
	ErrExecutableMissing = errors.New("app has no usable executable")
	ErrAlreadyRunning    = errors.New("app is already running")
	ErrLaunchFailed      = errors.New("launch failed")
	ErrNotRunning        = errors.New("app is not running")
)

// Process is the in-memory tracking entry for one running application.
type Process struct {
	PID            int
	StartedAt      time.Time
	ExecutablePath string
}

// Service launches executables and enforces a single running instance per
// identity, independent of whether the program itself allows more.
type Service struct {
	store *store.Store

	mu      sync.Mutex
	running map[string]*Process

	log zerolog.Logger
}

// New creates a launcher service.
func New(st *store.Store) *Service {
	return &Service{
		store:   st,
		running: make(map[string]*Process),
		log:     logging.GetLogger("launcher"),
	}
}

// Launch starts the app's recorded executable, detached, with standard
// streams suppressed and a sanitized environment. It refuses when no record
// exists, the record has no executable, the binary is gone from disk (the
// stale record is purged), or the app is already tracked as running.
func (s *Service) Launch(id string) (*Process, error) {
	rec, err := s.store.GetApp(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, id)
	}
	if rec.ExecutablePath == "" {
		return nil, fmt.Errorf("%w: %s", ErrExecutableMissing, id)
	}
	// Self-healing: a record whose binary disappeared is purged, not
	// surfaced as a stale-path error on every retry.
	purged, err := s.store.PurgeIfMissing(rec)
	if err != nil {
		s.log.Warn().Err(err).Str("app", id).Msg("failed to purge stale record")
		return nil, fmt.Errorf("%w: %s: %s", ErrExecutableMissing, id, rec.ExecutablePath)
	}
	if purged {
		return nil, fmt.Errorf("%w: %s: %s", ErrExecutableMissing, id, rec.ExecutablePath)
	}

	s.mu.Lock()
	if existing, ok := s.running[id]; ok {
		if pidAlive(existing.PID) {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, id, existing.PID)
		}
		// The process died without the reaper noticing; drop the entry.
		delete(s.running, id)
	}
	s.mu.Unlock()

	// Tracking entries do not survive process restarts; the process table is
	// the cross-invocation source of truth.
	if found := s.DiscoverRunning([]*store.AppRecord{rec}); len(found) > 0 {
		existing := found[id]
		return nil, fmt.Errorf("%w: %s (pid %d)", ErrAlreadyRunning, id, existing.PID)
	}

	cmd := exec.Command(rec.ExecutablePath)
	cmd.Dir = rec.InstallPath
	cmd.Env = sanitizedEnv(os.Environ())
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachedProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLaunchFailed, id, err)
	}

	proc := &Process{
		PID:            cmd.Process.Pid,
		StartedAt:      time.Now(),
		ExecutablePath: rec.ExecutablePath,
	}

	s.mu.Lock()
	s.running[id] = proc
	s.mu.Unlock()

	// Reap on exit so the tracking entry does not outlive the process.
	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if current, ok := s.running[id]; ok && current.PID == proc.PID {
			delete(s.running, id)
		}
		s.mu.Unlock()
		s.log.Debug().Str("app", id).Int("pid", proc.PID).Err(err).Msg("process exited")
	}()

	if err := s.store.TouchLastLaunched(id, proc.StartedAt); err != nil {
		s.log.Warn().Err(err).Str("app", id).Msg("failed to record launch time")
	}

	s.log.Info().Str("app", id).Int("pid", proc.PID).Str("exe", rec.ExecutablePath).Msg("launched")
	return proc, nil
}

// Kill terminates a tracked process. The tracking entry is dropped whether
// or not the signal lands: a dead entry for an already-gone process must not
// linger.
func (s *Service) Kill(id string) error {
	s.mu.Lock()
	proc, ok := s.running[id]
	delete(s.running, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}

	p, err := os.FindProcess(proc.PID)
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		s.log.Debug().Err(err).Str("app", id).Int("pid", proc.PID).Msg("kill signal failed, entry dropped anyway")
	}
	return nil
}

// IsRunning reports whether the app is currently tracked and its process is
// alive. Entries for dead processes are dropped on query.
func (s *Service) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.running[id]
	if !ok {
		return false
	}
	if !pidAlive(proc.PID) {
		delete(s.running, id)
		return false
	}
	return true
}

// Running returns a snapshot of tracked processes keyed by identity.
func (s *Service) Running() map[string]Process {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]Process, len(s.running))
	for id, proc := range s.running {
		if pidAlive(proc.PID) {
			snapshot[id] = *proc
		} else {
			delete(s.running, id)
		}
	}
	return snapshot
}

func pidAlive(pid int) bool {
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}
