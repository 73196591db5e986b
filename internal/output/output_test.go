package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/appdock/internal/store"
)

func TestByteProgress_KnownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewByteProgress("downloading app.exe")
	p.SetWriter(&buf)

	p.Update(13_500_000, 27_000_000, 3_400_000)
	out := buf.String()

	if !strings.Contains(out, "downloading app.exe") {
		t.Errorf("missing description: %q", out)
	}
	if !strings.Contains(out, "50%") {
		t.Errorf("expected 50%% at the halfway point: %q", out)
	}
	if !strings.Contains(out, "/s)") {
		t.Errorf("expected a rate: %q", out)
	}

	buf.Reset()
	p.Update(27_000_000, 27_000_000, 3_400_000)
	p.Finish()
	out = buf.String()
	if !strings.Contains(out, "100%") {
		t.Errorf("expected 100%% after Finish: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("Finish should end the line")
	}
}

func TestByteProgress_UnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewByteProgress("downloading")
	p.SetWriter(&buf)

	p.Update(1_200_000, -1, 600_000)
	out := buf.String()

	if strings.Contains(out, "%") {
		t.Errorf("no percentage without a total: %q", out)
	}
	if !strings.Contains(out, "1.2 MB") {
		t.Errorf("expected received bytes: %q", out)
	}
}

func TestRenderAppTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	records := []*store.AppRecord{
		{ID: "zeta", Name: "Zeta", InstalledVersion: "1.0.0"},
		{
			ID: "alpha", Name: "Alpha", InstalledVersion: "2.0.0",
			ExecutablePath: `C:\Apps\Alpha\alpha.exe`,
			LastLaunched:   time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
			AutoDetected:   true,
		},
	}

	out := RenderAppTable(records,
		map[string]bool{"alpha": true},
		map[string]string{"alpha": "2.1.0"})

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and two rows, got %d lines:\n%s", len(lines), out)
	}

	// Sorted by identity.
	if !strings.HasPrefix(lines[2], "alpha") || !strings.HasPrefix(lines[3], "zeta") {
		t.Errorf("rows not sorted:\n%s", out)
	}

	if !strings.Contains(lines[2], "running") {
		t.Errorf("alpha should be running:\n%s", out)
	}
	if !strings.Contains(lines[2], "update 2.1.0") {
		t.Errorf("alpha should show its update:\n%s", out)
	}
	if !strings.Contains(lines[2], "auto-detected") {
		t.Errorf("alpha should be flagged auto-detected:\n%s", out)
	}
	if !strings.Contains(lines[3], "stopped") || !strings.Contains(lines[3], "never") {
		t.Errorf("zeta should be stopped and never launched:\n%s", out)
	}
	if !strings.Contains(lines[3], "no executable") {
		t.Errorf("zeta has no executable path:\n%s", out)
	}
}

func TestRenderAppTable_Empty(t *testing.T) {
	if out := RenderAppTable(nil, nil, nil); out != "No applications installed.\n" {
		t.Errorf("unexpected empty rendering %q", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"a-very-long-identifier", 10, "a-very-..."},
		{"abc", 2, "ab"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
