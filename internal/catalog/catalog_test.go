package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeCatalog(t, `
apps:
  - id: myapp
    name: MyApp
    repo: https://github.com/acme/myapp
    version: 1.0.0
    description: An app
  - id: other
    name: Other App
    repo: https://github.com/acme/other
    version: 0.2.0
`)

	defs, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	// File order is preserved.
	if defs[0].ID != "myapp" || defs[1].ID != "other" {
		t.Errorf("order not preserved: %+v", defs)
	}
	if defs[0].Repo != "https://github.com/acme/myapp" || defs[0].Version != "1.0.0" {
		t.Errorf("fields lost: %+v", defs[0])
	}
}

func TestLoad_DuplicateID(t *testing.T) {
	path := writeCatalog(t, `
apps:
  - id: myapp
    name: MyApp
  - id: myapp
    name: MyApp Again
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}

func TestLoad_MissingID(t *testing.T) {
	path := writeCatalog(t, `
apps:
  - name: Anonymous
`)

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "has no id") {
		t.Errorf("expected missing id error, got %v", err)
	}
}

func TestLoad_BadFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeCatalog(t, "apps: {not: a list}")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestFind(t *testing.T) {
	defs := []Definition{{ID: "a"}, {ID: "b"}}

	if def := Find(defs, "b"); def == nil || def.ID != "b" {
		t.Errorf("Find(b) = %+v", def)
	}
	if def := Find(defs, "z"); def != nil {
		t.Errorf("expected nil for unknown id, got %+v", def)
	}
}

func TestWatch_FiresOnChange(t *testing.T) {
	path := writeCatalog(t, "apps: []\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	go func() {
		Watch(ctx, path, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Let the watcher install before the write.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte("apps: []\n# edited\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("watch callback never fired")
	}
}
