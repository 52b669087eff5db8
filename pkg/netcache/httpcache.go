// Package netcache keeps remote templates and data files on disk and
// revalidates them with conditional requests.
package netcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Cache is a persistent HTTP cache with ETag/Last-Modified support.
type Cache struct {
	Dir    string
	Client *http.Client
	// Backoff is the delay before the second attempt; it doubles after that.
	Backoff time.Duration
}

const attempts = 3

// New returns a Cache storing files under dir.
func New(dir string) *Cache {
	return &Cache{
		Dir:     dir,
		Client:  &http.Client{Timeout: time.Minute},
		Backoff: 2 * time.Second,
	}
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// meta is the JSON sidecar stored next to each cached body.
type meta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	DataFile     string    `json:"data_file"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Get fetches url into the cache and returns the local file path and whether
// the cached copy was used. A stale copy is returned when revalidation fails.
func (c *Cache) Get(ctx context.Context, url string) (string, bool, error) {
	key := hash(url)
	mpath := filepath.Join(c.Dir, key+".json")

	if m, ok := c.readMeta(mpath, url); ok {
		cached := filepath.Join(c.Dir, m.DataFile)
		path, fresh, err := c.revalidate(ctx, url, key, mpath, m)
		if err == nil {
			return path, fresh, nil
		}
		slog.Warn("revalidation failed, using cached copy", "url", url, "error", err)
		return cached, true, nil
	}

	var lastErr error
	delay := c.Backoff
	for attempt := 1; attempt <= attempts; attempt++ {
		path, retry, err := c.fetch(ctx, url, key, mpath)
		if err == nil {
			return path, false, nil
		}
		lastErr = err
		if !retry || attempt == attempts {
			break
		}
		slog.Debug("retrying download", "url", url, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return "", false, lastErr
}

// ReadAll returns the body of url, from the cache when possible.
func (c *Cache) ReadAll(ctx context.Context, url string) ([]byte, error) {
	path, _, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (c *Cache) readMeta(mpath, url string) (meta, bool) {
	var m meta
	b, err := os.ReadFile(mpath)
	if err != nil {
		return m, false
	}
	if err := json.Unmarshal(b, &m); err != nil || m.URL != url || m.DataFile == "" {
		return m, false
	}
	return m, fileExists(filepath.Join(c.Dir, m.DataFile))
}

// revalidate issues a conditional GET for an entry we already hold.
func (c *Cache) revalidate(ctx context.Context, url, key, mpath string, m meta) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	if m.ETag != "" {
		req.Header.Set("If-None-Match", m.ETag)
	}
	if m.LastModified != "" {
		req.Header.Set("If-Modified-Since", m.LastModified)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return filepath.Join(c.Dir, m.DataFile), true, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, &StatusError{URL: url, Code: resp.StatusCode}
	}
	path, err := c.store(resp, url, key, mpath)
	return path, false, err
}

// fetch does one unconditional GET. retry reports whether the failure is
// worth another attempt.
func (c *Cache) fetch(ctx context.Context, url, key, mpath string) (path string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode >= 500, &StatusError{URL: url, Code: resp.StatusCode}
	}
	path, err = c.store(resp, url, key, mpath)
	return path, false, err
}

func (c *Cache) store(resp *http.Response, url, key, mpath string) (string, error) {
	dataFile := key + ".data"
	path := filepath.Join(c.Dir, dataFile)
	if err := streamToFile(resp.Body, path, 0o644); err != nil {
		return "", fmt.Errorf("caching %s: %w", url, err)
	}
	m := meta{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		DataFile:     dataFile,
		FetchedAt:    time.Now().UTC(),
	}
	if err := writeMeta(mpath, m); err != nil {
		return "", fmt.Errorf("caching %s: %w", url, err)
	}
	slog.Debug("cached", "url", url, "path", path)
	return path, nil
}

func streamToFile(r io.Reader, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func writeMeta(path string, m meta) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// IsNotFound reports whether err is an HTTP 404 from the cache.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}
