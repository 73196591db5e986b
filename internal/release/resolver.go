// Package release resolves the latest GitHub release for an application:
// version, downloadable Windows asset, and release metadata. It also owns
// the version comparator that every update decision in appdock goes through.
package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/blackwell-systems/appdock/internal/logging"
)

// Resolver error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidSourceURL  = errors.New("invalid release source URL")
	ErrNotFound          = errors.New("release not found")
	ErrRateLimited       = errors.New("release API rate limited")
	ErrTimeout           = errors.New("release API timeout")
	ErrMalformedResponse = errors.New("malformed release API response")
)

const (
	defaultAPIBase = "https://api.github.com"
	resolveTimeout = 15 * time.Second
)

// Asset is a downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
	Size        int64  `json:"size"`
}

// Release is the outcome of one resolution call. Asset is nil when the
// release carries nothing installable on Windows.
type Release struct {
	Version     string
	Asset       *Asset
	Assets      []Asset
	Name        string
	Notes       string
	PublishedAt time.Time
	URL         string
}

// Resolver talks to the GitHub releases API. A token raises the anonymous
// rate limit; its absence is not fatal, only throttling.
type Resolver struct {
	client  *http.Client
	apiBase string
	token   string
	log     zerolog.Logger
}

// NewResolver creates a resolver with a fixed request timeout. token may be
// empty.
func NewResolver(token string) *Resolver {
	return &Resolver{
		client:  &http.Client{Timeout: resolveTimeout},
		apiBase: defaultAPIBase,
		token:   token,
		log:     logging.GetLogger("release"),
	}
}

type apiRelease struct {
	TagName     string  `json:"tag_name"`
	Name        string  `json:"name"`
	Body        string  `json:"body"`
	PublishedAt string  `json:"published_at"`
	HTMLURL     string  `json:"html_url"`
	Assets      []Asset `json:"assets"`
}

// Resolve fetches the latest release for a repository URL of the form
// https://<host>/<owner>/<repo>/... and selects the best Windows asset.
func (r *Resolver) Resolve(ctx context.Context, repoURL string) (*Release, error) {
	owner, repo, err := parseRepo(repoURL)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.apiBase, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build release request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s/%s: %v", ErrTimeout, owner, repo, err)
		}
		return nil, fmt.Errorf("failed to query releases for %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, owner, repo)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s/%s", ErrRateLimited, owner, repo)
	default:
		return nil, fmt.Errorf("unexpected status %d querying releases for %s/%s", resp.StatusCode, owner, repo)
	}

	var raw apiRelease
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrMalformedResponse, owner, repo, err)
	}

	rel := &Release{
		Version: NormalizeVersion(raw.TagName),
		Assets:  raw.Assets,
		Name:    raw.Name,
		Notes:   raw.Body,
		URL:     raw.HTMLURL,
	}
	if raw.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, raw.PublishedAt); err == nil {
			rel.PublishedAt = t
		}
	}
	rel.Asset = selectAsset(raw.Assets)

	r.log.Debug().
		Str("repo", owner+"/"+repo).
		Str("version", rel.Version).
		Bool("asset", rel.Asset != nil).
		Msg("resolved latest release")

	return rel, nil
}

// parseRepo extracts owner and repo from a release-source URL.
func parseRepo(repoURL string) (owner, repo string, err error) {
	u, err := url.Parse(repoURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSourceURL, repoURL)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSourceURL, repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// RepoSlug returns the repository name from a release-source URL, or "" when
// the URL does not parse. Installers frequently name their target directory
// after the repository slug rather than the display name, so the locator
// uses it as an extra candidate.
func RepoSlug(repoURL string) string {
	_, repo, err := parseRepo(repoURL)
	if err != nil {
		return ""
	}
	return repo
}

// selectAsset picks the best Windows asset: .exe beats .msi beats a .zip
// whose name mentions "win". Returns nil when nothing matches.
func selectAsset(assets []Asset) *Asset {
	for i := range assets {
		if strings.HasSuffix(strings.ToLower(assets[i].Name), ".exe") {
			return &assets[i]
		}
	}
	for i := range assets {
		if strings.HasSuffix(strings.ToLower(assets[i].Name), ".msi") {
			return &assets[i]
		}
	}
	for i := range assets {
		name := strings.ToLower(assets[i].Name)
		if strings.HasSuffix(name, ".zip") && strings.Contains(name, "win") {
			return &assets[i]
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return true
	}
	return os.IsTimeout(err)
}
