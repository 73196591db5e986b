package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/blackwell-systems/appdock/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := st.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeApp writes a small executable script and records it as installed.
func fakeApp(t *testing.T, st *store.Store, id, script string) *store.AppRecord {
	t.Helper()
	dir := t.TempDir()
	exe := filepath.Join(dir, id+".exe")
	if err := os.WriteFile(exe, []byte("#!/bin/sh\n"+script+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	rec := &store.AppRecord{ID: id, Name: id, InstallPath: dir, ExecutablePath: exe}
	if err := st.SaveApp(rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func waitNotRunning(t *testing.T, s *Service, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.IsRunning(id) {
		if time.Now().After(deadline) {
			t.Fatalf("%s still tracked as running", id)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLaunch_NotInstalled(t *testing.T) {
	s := New(testStore(t))

	_, err := s.Launch("ghost")
	if !errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected ErrNotInstalled, got %v", err)
	}
}

func TestLaunch_NoExecutablePath(t *testing.T) {
	st := testStore(t)
	if err := st.SaveApp(&store.AppRecord{ID: "myapp", Name: "MyApp"}); err != nil {
		t.Fatal(err)
	}

	s := New(st)
	_, err := s.Launch("myapp")
	if !errors.Is(err, ErrExecutableMissing) {
		t.Errorf("expected ErrExecutableMissing, got %v", err)
	}
}

func TestLaunch_MissingBinaryPurgesRecord(t *testing.T) {
	st := testStore(t)
	if err := st.SaveApp(&store.AppRecord{
		ID: "myapp", Name: "MyApp",
		ExecutablePath: filepath.Join(t.TempDir(), "gone.exe"),
	}); err != nil {
		t.Fatal(err)
	}

	s := New(st)
	_, err := s.Launch("myapp")
	if !errors.Is(err, ErrExecutableMissing) {
		t.Fatalf("expected ErrExecutableMissing, got %v", err)
	}

	rec, err := st.GetApp("myapp")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Error("stale record should have been purged")
	}
}

func TestLaunch_TracksAndReaps(t *testing.T) {
	st := testStore(t)
	fakeApp(t, st, "quick", "exit 0")

	s := New(st)
	proc, err := s.Launch("quick")
	if err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	if proc.PID <= 0 {
		t.Errorf("bogus pid %d", proc.PID)
	}

	// The reaper drops the entry once the process exits.
	waitNotRunning(t, s, "quick")

	rec, err := st.GetApp("quick")
	if err != nil || rec == nil {
		t.Fatal(err)
	}
	if rec.LastLaunched.IsZero() {
		t.Error("launch time should be recorded")
	}
}

func TestLaunch_AlreadyRunning(t *testing.T) {
	st := testStore(t)
	fakeApp(t, st, "slow", "sleep 30")

	s := New(st)
	if _, err := s.Launch("slow"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}
	defer s.Kill("slow")

	_, err := s.Launch("slow")
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	running := s.Running()
	if _, ok := running["slow"]; !ok {
		t.Error("expected slow in the running snapshot")
	}
}

func TestKill(t *testing.T) {
	st := testStore(t)
	fakeApp(t, st, "slow", "sleep 30")

	s := New(st)
	if _, err := s.Launch("slow"); err != nil {
		t.Fatalf("Launch failed: %v", err)
	}

	if err := s.Kill("slow"); err != nil {
		t.Fatalf("Kill failed: %v", err)
	}
	waitNotRunning(t, s, "slow")

	if err := s.Kill("slow"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("second kill should report ErrNotRunning, got %v", err)
	}
}

func TestSanitizedEnv(t *testing.T) {
	in := []string{
		"PATH=/usr/bin",
		"ELECTRON_RUN_AS_NODE=1",
		"NODE_OPTIONS=--inspect",
		"APPDOCK_DB=/tmp/x.db",
		"HOME=/home/u",
		"malformed",
		"ELECTRON_NO_ATTACH_CONSOLE=true",
	}
	want := []string{"PATH=/usr/bin", "HOME=/home/u"}

	if got := sanitizedEnv(in); !reflect.DeepEqual(got, want) {
		t.Errorf("sanitizedEnv = %v, want %v", got, want)
	}
}
