// Package attachments stores uploaded documents and hands out short-lived
// signed download URLs.
package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"estate/internal/cache"
)

var (
	ErrInvalidKey   = errors.New("invalid attachment key")
	ErrExpired      = errors.New("signed URL expired")
	ErrBadSignature = errors.New("signed URL signature mismatch")
)

// Store is implemented by the GCS and local-disk backends.
type Store interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds a collision-free key such as
// "bookings/<id>/<uuid>-contract.pdf".
func ObjectKey(ownerKind, ownerID, filename string) string {
	name := unsafeName.ReplaceAllString(path.Base(strings.ReplaceAll(filename, "\\", "/")), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return path.Join(ownerKind, ownerID, uuid.NewString()+"-"+name)
}

// ValidateKey rejects absolute keys and keys escaping the store root.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// CachedStore memoises signed URLs for half their lifetime so a cached URL
// always has time left when handed out. Callers use one TTL per process.
type CachedStore struct {
	Store
	urls *cache.LRUCache[string]
}

func NewCachedStore(store Store, urls *cache.LRUCache[string]) *CachedStore {
	return &CachedStore{Store: store, urls: urls}
}

func (c *CachedStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if url, ok := c.urls.Get(key); ok {
		return url, nil
	}
	url, err := c.Store.SignedURL(ctx, key, ttl)
	if err != nil {
		return "", err
	}
	c.urls.SetWithTTL(key, url, ttl/2)
	return url, nil
}

func (c *CachedStore) Delete(ctx context.Context, key string) error {
	if err := c.Store.Delete(ctx, key); err != nil {
		return err
	}
	c.urls.Delete(key)
	return nil
}
