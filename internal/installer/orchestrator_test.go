package installer

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/blackwell-systems/appdock/internal/catalog"
	"github.com/blackwell-systems/appdock/internal/events"
	"github.com/blackwell-systems/appdock/internal/locate"
	"github.com/blackwell-systems/appdock/internal/store"
)

type nopRegistry struct{}

func (nopRegistry) UninstallEntries() ([]locate.UninstallEntry, error) { return nil, nil }

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

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func testOrchestrator(t *testing.T, st *store.Store, sink events.Sink) *Orchestrator {
	t.Helper()
	o := New(st, locate.New(nopRegistry{}), sink, t.TempDir())
	o.settle = 0
	return o
}

func TestInstall_ZipEndToEnd(t *testing.T) {
	st := testStore(t)

	var phases []string
	sink := events.SinkFunc(func(e events.Event) {
		phases = append(phases, e.Phase)
	})

	o := testOrchestrator(t, st, sink)

	artifact := filepath.Join(t.TempDir(), "myapp-2.3.0.zip")
	writeZip(t, artifact, map[string]string{
		"MyApp/readme.txt": "hello",
		"MyApp/MyApp.exe":  "MZ",
	})

	def := catalog.Definition{ID: "myapp", Name: "MyApp", Repo: "https://github.com/acme/myapp"}
	rec, err := o.Install(context.Background(), def, artifact, "2.3.0")
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	if filepath.Base(rec.ExecutablePath) != "MyApp.exe" {
		t.Errorf("unexpected executable %q", rec.ExecutablePath)
	}
	if rec.InstallPath != filepath.Dir(rec.ExecutablePath) {
		t.Errorf("install path %q should be the executable's directory", rec.InstallPath)
	}
	if rec.InstalledVersion != "2.3.0" {
		t.Errorf("version = %q", rec.InstalledVersion)
	}

	// The record must be persisted, not just returned.
	saved, err := st.GetApp("myapp")
	if err != nil || saved == nil {
		t.Fatalf("expected persisted record, got (%v, %v)", saved, err)
	}
	if saved.ExecutablePath != rec.ExecutablePath {
		t.Errorf("persisted executable %q != returned %q", saved.ExecutablePath, rec.ExecutablePath)
	}

	wantPhases := []string{StatePreparing, StateExtracting, StateSearching, StateCompleted}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase[%d] = %q, want %q", i, phases[i], wantPhases[i])
		}
	}
}

func TestInstall_SecondRequestFailsFast(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)

	if !o.acquire("myapp") {
		t.Fatal("first acquire should succeed")
	}
	defer o.release("myapp")

	def := catalog.Definition{ID: "myapp", Name: "MyApp"}
	_, err := o.Install(context.Background(), def, "whatever.zip", "1.0.0")
	if !errors.Is(err, ErrAlreadyInstalling) {
		t.Errorf("expected ErrAlreadyInstalling, got %v", err)
	}

	if err := o.Uninstall(context.Background(), "myapp"); !errors.Is(err, ErrAlreadyInstalling) {
		t.Errorf("uninstall shares the lock, expected ErrAlreadyInstalling, got %v", err)
	}
}

func TestInstall_UnknownInstallerType(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)

	def := catalog.Definition{ID: "myapp", Name: "MyApp"}
	_, err := o.Install(context.Background(), def, "myapp-1.0.0.dmg", "1.0.0")
	if !errors.Is(err, ErrUnknownInstallerType) {
		t.Errorf("expected ErrUnknownInstallerType, got %v", err)
	}

	// Nothing is recorded on failure.
	if rec, _ := st.GetApp("myapp"); rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}
}

func TestInstall_CorruptZip(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)

	artifact := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(artifact, []byte("not a zip"), 0644); err != nil {
		t.Fatal(err)
	}

	def := catalog.Definition{ID: "myapp", Name: "MyApp"}
	_, err := o.Install(context.Background(), def, artifact, "1.0.0")
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("expected ErrExtractionFailed, got %v", err)
	}
}

type fixedLocator struct {
	path string
	err  error
}

func (f fixedLocator) Locate(def catalog.Definition) (string, error) { return f.path, f.err }

func TestInstall_ManualFallback(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)

	manualExe := filepath.Join(t.TempDir(), "Chosen.exe")
	if err := os.WriteFile(manualExe, []byte("MZ"), 0755); err != nil {
		t.Fatal(err)
	}
	o.SetManualLocator(fixedLocator{path: manualExe})

	// A zip with no executable inside exhausts discovery.
	artifact := filepath.Join(t.TempDir(), "myapp.zip")
	writeZip(t, artifact, map[string]string{"docs/readme.txt": "nothing here"})

	def := catalog.Definition{ID: "myapp", Name: "MyApp"}
	rec, err := o.Install(context.Background(), def, artifact, "1.0.0")
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if rec.ExecutablePath != manualExe {
		t.Errorf("expected manual selection %q, got %q", manualExe, rec.ExecutablePath)
	}
	if rec.InstallPath != filepath.Dir(manualExe) {
		t.Errorf("install path should follow the selected executable, got %q", rec.InstallPath)
	}
}

func TestInstall_ManualCancelledStillRecords(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)
	o.SetManualLocator(fixedLocator{})

	artifact := filepath.Join(t.TempDir(), "myapp.zip")
	writeZip(t, artifact, map[string]string{"docs/readme.txt": "nothing here"})

	def := catalog.Definition{ID: "myapp", Name: "MyApp"}
	rec, err := o.Install(context.Background(), def, artifact, "1.0.0")
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if rec.ExecutablePath != "" {
		t.Errorf("expected empty executable path, got %q", rec.ExecutablePath)
	}
	if rec.InstallPath == "" {
		t.Error("expected extraction dir as install path for launchless record")
	}

	if saved, _ := st.GetApp("myapp"); saved == nil {
		t.Error("cancelled manual selection must still persist the install")
	}
}

func TestUninstall_AlwaysRemovesRecord(t *testing.T) {
	st := testStore(t)
	o := testOrchestrator(t, st, events.Discard)

	// Install path with no vendor uninstaller inside.
	if err := st.SaveApp(&store.AppRecord{
		ID:          "myapp",
		Name:        "MyApp",
		InstallPath: t.TempDir(),
	}); err != nil {
		t.Fatal(err)
	}

	if err := o.Uninstall(context.Background(), "myapp"); err != nil {
		t.Fatalf("Uninstall failed: %v", err)
	}
	if rec, _ := st.GetApp("myapp"); rec != nil {
		t.Error("expected record removed")
	}

	if err := o.Uninstall(context.Background(), "myapp"); err == nil {
		t.Error("expected error uninstalling an app that is not installed")
	}
}

func TestExtractZip_RejectsEscapingEntries(t *testing.T) {
	artifact := filepath.Join(t.TempDir(), "evil.zip")
	writeZip(t, artifact, map[string]string{"../evil.exe": "MZ"})

	err := extractZip(artifact, filepath.Join(t.TempDir(), "out"))
	if err == nil {
		t.Fatal("expected error for entry escaping the extraction directory")
	}
}

func TestFindUninstaller(t *testing.T) {
	dir := t.TempDir()
	if findUninstaller(dir) != "" {
		t.Error("expected no uninstaller in empty dir")
	}

	want := filepath.Join(dir, "unins000.exe")
	if err := os.WriteFile(want, []byte("MZ"), 0755); err != nil {
		t.Fatal(err)
	}
	if got := findUninstaller(dir); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
