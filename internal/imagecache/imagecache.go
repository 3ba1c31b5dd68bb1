package imagecache

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"
	"github.com/takak2166/notionblog/internal/logger"
	"github.com/zeebo/blake3"
)

// maxImageSize caps a single download
const maxImageSize = 20 << 20

// Cache downloads remote images into a local directory and rewrites their URLs.
// Notion file URLs are signed and expire, so covers are stored locally at export time.
type Cache struct {
	fs           afero.Fs
	dir          string
	publicPrefix string
	httpClient   *http.Client
}

// New creates a Cache writing into dir on fs. Localized URLs are publicPrefix + "/" + file name.
func New(fs afero.Fs, dir, publicPrefix string, httpClient *http.Client) *Cache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Cache{
		fs:           fs,
		dir:          dir,
		publicPrefix: publicPrefix,
		httpClient:   httpClient,
	}
}

// Key returns the file name stem used for rawURL. The query string and fragment
// are ignored so re-signed URLs of the same file share a key.
func Key(rawURL string) string {
	stable := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		stable = u.Scheme + "://" + u.Host + u.EscapedPath()
	}
	sum := blake3.Sum256([]byte(stable))
	return hex.EncodeToString(sum[:16])
}

// Localize returns the public path of a local copy of rawURL.
// On any failure the original URL is returned unchanged.
func (c *Cache) Localize(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return ""
	}

	key := Key(rawURL)
	if name, ok := c.existing(key); ok {
		logger.Debug("Image already cached", logger.Fields{"url": rawURL, "file": name})
		return c.publicPath(name)
	}

	name, err := c.download(ctx, rawURL, key)
	if err != nil {
		logger.Warn("Failed to localize image", logger.Fields{"url": rawURL, "error": err.Error()})
		return rawURL
	}

	logger.Debug("Image cached", logger.Fields{"url": rawURL, "file": name})
	return c.publicPath(name)
}

func (c *Cache) existing(key string) (string, bool) {
	matches, err := afero.Glob(c.fs, filepath.Join(c.dir, key+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return filepath.Base(matches[0]), true
}

func (c *Cache) download(ctx context.Context, rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageSize {
		return "", fmt.Errorf("image exceeds %d bytes", maxImageSize)
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return "", fmt.Errorf("not an image")
	}

	if err := c.fs.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	name := key + "." + kind.Extension
	if err := c.write(name, data); err != nil {
		return "", err
	}

	return name, nil
}

// write stores data under a temporary name first so an interrupted write never
// leaves a truncated file that would be reused
func (c *Cache) write(name string, data []byte) error {
	tmp, err := afero.TempFile(c.fs, c.dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = c.fs.Rename(tmpName, filepath.Join(c.dir, name))
	}
	if err != nil {
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func (c *Cache) publicPath(name string) string {
	return path.Join(c.publicPrefix, name)
}
