package release

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource counts Resolve calls and serves a scripted response.
type fakeSource struct {
	calls   int
	version string
	err     error
}

func (f *fakeSource) Resolve(ctx context.Context, repoURL string) (*Release, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Release{Version: f.version}, nil
}

func testCache(src Source) (*VersionCache, *time.Time) {
	c := NewVersionCache(src)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLatestVersion_FreshHitSkipsSource(t *testing.T) {
	src := &fakeSource{version: "2.0.0"}
	c, now := testCache(src)

	v, err := c.LatestVersion(context.Background(), "app", "https://github.com/a/b", "1.0.0")
	if err != nil || v != "2.0.0" {
		t.Fatalf("first call: got (%q, %v)", v, err)
	}

	*now = now.Add(DefaultCacheTTL - time.Second)
	v, err = c.LatestVersion(context.Background(), "app", "https://github.com/a/b", "1.0.0")
	if err != nil || v != "2.0.0" {
		t.Fatalf("second call: got (%q, %v)", v, err)
	}
	if src.calls != 1 {
		t.Errorf("expected 1 resolve call, got %d", src.calls)
	}
}

func TestLatestVersion_ExpiresAtTTLBoundary(t *testing.T) {
	src := &fakeSource{version: "2.0.0"}
	c, now := testCache(src)

	if _, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0"); err != nil {
		t.Fatal(err)
	}

	// An entry aged exactly TTL is expired, not fresh.
	*now = now.Add(DefaultCacheTTL)
	if _, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("expected re-resolution at the TTL boundary, got %d calls", src.calls)
	}
}

func TestLatestVersion_StaleServedOnFailure(t *testing.T) {
	src := &fakeSource{version: "2.0.0"}
	c, now := testCache(src)

	if _, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0"); err != nil {
		t.Fatal(err)
	}

	src.err = errors.New("network down")
	*now = now.Add(time.Hour)

	v, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0")
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if v != "2.0.0" {
		t.Errorf("expected stale cached version 2.0.0, got %q", v)
	}
}

func TestLatestVersion_CatalogFallbackCachedBriefly(t *testing.T) {
	src := &fakeSource{err: errors.New("network down")}
	c, now := testCache(src)

	v, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0")
	if err != nil || v != "1.0.0" {
		t.Fatalf("got (%q, %v), want catalog fallback 1.0.0", v, err)
	}

	// Within the short fallback TTL the cached fallback answers without a retry.
	*now = now.Add(FallbackCacheTTL - time.Second)
	if _, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("expected fallback to be served from cache, got %d calls", src.calls)
	}

	// After it the source is retried.
	*now = now.Add(2 * time.Second)
	if _, err := c.LatestVersion(context.Background(), "app", "u", "1.0.0"); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("expected retry after fallback TTL, got %d calls", src.calls)
	}
}

func TestLatestVersion_ResolvedSupersedesFallback(t *testing.T) {
	src := &fakeSource{version: "3.1.0"}
	c, _ := testCache(src)

	v, err := c.LatestVersion(context.Background(), "app", "u", "9.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if v != "3.1.0" {
		t.Errorf("resolved version must win over the catalog's static one, got %q", v)
	}
}
