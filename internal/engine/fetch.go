package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultFetchTimeout bounds a whole weight download. The largest model is
// roughly 170 MB.
const DefaultFetchTimeout = 10 * time.Minute

// Fetcher downloads model weights over HTTP and optionally keeps them on disk.
type Fetcher struct {
	// Client performs the requests. A nil Client uses a client with
	// DefaultFetchTimeout.
	Client *http.Client

	// CacheDir, when set, stores downloaded weights under the SHA-256 of
	// their URL so later loads skip the network.
	CacheDir string

	Logger *slog.Logger
}

// NewFetcher returns a Fetcher caching into cacheDir ("" disables the cache).
func NewFetcher(cacheDir string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		Client:   &http.Client{Timeout: DefaultFetchTimeout},
		CacheDir: cacheDir,
		Logger:   logger,
	}
}

func (f *Fetcher) client() *http.Client {
	if f.Client != nil {
		return f.Client
	}
	return &http.Client{Timeout: DefaultFetchTimeout}
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// CachePath returns where the weights for url are cached, or "" when caching
// is disabled.
func (f *Fetcher) CachePath(url string) string {
	if f.CacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.CacheDir, hex.EncodeToString(sum[:])+".onnx")
}

// Fetch returns the bytes at url.
//
// Progress is reported as received/total using the Content-Length header;
// without it only the final 1 is reported. A cache hit reports 1 directly.
// Transport failures and non-2xx responses wrap ErrNetwork.
func (f *Fetcher) Fetch(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	log := f.logger().With("url", url)

	cachePath := f.CachePath(url)
	if cachePath != "" {
		data, err := os.ReadFile(cachePath)
		switch {
		case err == nil:
			log.Debug("weights served from cache", "path", cachePath, "bytes", len(data))
			report(progress, 1)
			return data, nil
		case !errors.Is(err, fs.ErrNotExist):
			log.Warn("failed to read cached weights", "path", cachePath, "error", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrNetwork, err)
	}

	resp, err := f.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %v", ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetching %s returned %s", ErrNetwork, url, resp.Status)
	}

	pr := &progressReader{r: resp.Body, total: resp.ContentLength, progress: progress}
	data, err := io.ReadAll(pr)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %v", ErrNetwork, url, err)
	}
	log.Debug("weights downloaded", "bytes", len(data))

	if cachePath != "" {
		if err := writeAtomic(cachePath, data); err != nil {
			log.Warn("failed to cache weights", "path", cachePath, "error", err)
		}
	}

	report(progress, 1)
	return data, nil
}

// progressReader reports received/total as bytes flow through it. Values
// never decrease and stay below 1; Fetch reports the final 1 itself.
type progressReader struct {
	r        io.Reader
	total    int64
	received int64
	last     float64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 && p.progress != nil {
		p.received += int64(n)
		frac := float64(p.received) / float64(p.total)
		if frac > p.last && frac < 1 {
			p.last = frac
			p.progress(frac)
		}
	}
	return n, err
}

// writeAtomic writes data next to path and renames it into place so readers
// never see a partial file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move weights into cache: %w", err)
	}
	return nil
}
