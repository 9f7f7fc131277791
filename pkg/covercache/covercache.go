package covercache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hondanabooks/hondana/pkg/fetch"
	"github.com/pkg/errors"
)

// Cache is a content-addressable store for downloaded cover images. Entries
// are keyed by a hash of the source URL; a file's presence on disk is the
// index. Entries are never invalidated automatically, so a changed image at
// the same URL is not observed until the entry is cleared by hand.
type Cache struct {
	dir    string
	client *fetch.Client
}

func New(dir string, client *fetch.Client) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Cache{dir: dir, client: client}, nil
}

// Key returns the cache filename for a URL.
func Key(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// GetOrFetch returns the bytes for a cover URL, downloading and persisting
// them on first sight. Concurrent misses on the same URL may fetch twice,
// but the write is staged through a temp file and renamed so a reader never
// observes a partial entry.
func (c *Cache) GetOrFetch(ctx context.Context, url string) ([]byte, error) {
	path := filepath.Join(c.dir, Key(url))

	if b, err := os.ReadFile(path); err == nil {
		return b, nil
	}

	b, err := c.client.Get(ctx, url, nil)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(c.dir, fmt.Sprintf(".%s-*", Key(url)))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return nil, errors.WithStack(err)
	}
	if err := tmp.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, errors.WithStack(err)
	}

	return b, nil
}
