package launcher

import (
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/blackwell-systems/appdock/internal/store"
)

// DiscoverRunning scans the OS process table for processes whose executable
// matches an installed record. Tracking entries only survive within one
// appdock process, so callers that outlive or restart the launcher (the CLI,
// the watch daemon after a restart) use this to recover liveness facts.
func (s *Service) DiscoverRunning(records []*store.AppRecord) map[string]Process {
	byExe := make(map[string]string, len(records))
	for _, rec := range records {
		if rec.ExecutablePath != "" {
			byExe[normalizePath(rec.ExecutablePath)] = rec.ID
		}
	}
	if len(byExe) == 0 {
		return nil
	}

	procs, err := process.Processes()
	if err != nil {
		s.log.Debug().Err(err).Msg("process table scan failed")
		return nil
	}

	found := make(map[string]Process)
	for _, p := range procs {
		exe, err := p.Exe()
		if err != nil || exe == "" {
			continue
		}
		id, ok := byExe[normalizePath(exe)]
		if !ok {
			continue
		}
		if _, dup := found[id]; dup {
			continue
		}

		started := time.Time{}
		if ms, err := p.CreateTime(); err == nil {
			started = time.UnixMilli(ms)
		}
		found[id] = Process{
			PID:            int(p.Pid),
			StartedAt:      started,
			ExecutablePath: exe,
		}
	}
	return found
}

// KillByRecord terminates any process running the record's executable. Used
// when no in-memory tracking entry exists for the identity.
func (s *Service) KillByRecord(rec *store.AppRecord) error {
	found := s.DiscoverRunning([]*store.AppRecord{rec})
	proc, ok := found[rec.ID]
	if !ok {
		return ErrNotRunning
	}

	p, err := process.NewProcess(int32(proc.PID))
	if err != nil {
		return nil
	}
	if err := p.Kill(); err != nil {
		s.log.Debug().Err(err).Str("app", rec.ID).Int("pid", proc.PID).Msg("kill signal failed")
	}
	return nil
}

func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(p, `\`, `/`))
}
