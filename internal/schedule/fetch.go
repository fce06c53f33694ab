package schedule

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	appLog "schedwidget/internal/log"
)

// Source is one ICS timetable feed.
type Source struct {
	ID  string
	URL string
	// Group, if set, owns every lesson in the feed.
	Group string
}

// feed is the body of one source, fresh or from the disk cache.
type feed struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// cacheMeta holds HTTP validators for a cached feed.
type cacheMeta struct {
	URL          string    `yaml:"url"`
	ETag         string    `yaml:"etag,omitempty"`
	LastModified string    `yaml:"last_modified,omitempty"`
	UpdatedAt    time.Time `yaml:"updated_at"`
}

// Fetcher downloads feeds with conditional requests and keeps the last good
// body on disk so that an offline refresh still has data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir. A nil client gets a
// 15s timeout default.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// FetchAll fetches every source. Failures are logged, collected and do not
// stop the remaining sources.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]feed, []error) {
	feeds := make([]feed, 0, len(sources))
	var errs []error
	for _, src := range sources {
		fd, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule: fetch %s: %w", src.ID, err))
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		feeds = append(feeds, fd)
	}
	return feeds, errs
}

// FetchOne fetches src, honoring ETag/Last-Modified and falling back to the
// cached body on network errors and non-OK statuses.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (feed, error) {
	if src.URL == "" {
		return feed{}, errors.New("source URL is empty")
	}

	dir := f.cachePath(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return feed{}, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(reason error) (feed, error) {
		if len(cached) == 0 {
			return feed{}, reason
		}
		appLog.Warn("ics fetch failed, using cached body", "id", src.ID, "reason", reason)
		return feed{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return feed{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(err)
		}
		next := cacheMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("ics cache save failed", err, "id", src.ID)
		}
		appLog.Debug("ics fetched", "id", src.ID, "bytes", len(body))
		return feed{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return feed{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Debug("ics not modified; using cache", "id", src.ID)
		return feed{Source: src, Body: cached, FromCache: true}, nil

	default:
		return fallback(errors.New(resp.Status))
	}
}

func (f *Fetcher) cachePath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.yaml"))
	if err != nil {
		return meta, err
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	data, err := yaml.Marshal(&meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.yaml"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often carry tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
