package attachments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"estate/internal/log"
)

// LocalStore keeps attachments on disk and signs download URLs with
// HMAC-SHA256. Its Handler serves the files behind those URLs.
type LocalStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
	logger  *log.Logger
}

// NewLocalStore serves files under baseURL + "/files/".
func NewLocalStore(dir, baseURL string, secret []byte, logger *log.Logger) (*LocalStore, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	if logger == nil {
		logger = log.Default(log.ComponentAttachments)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentAttachments),
	}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *LocalStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", key, err)
	}

	// Write to a temp file first so readers never see a partial upload.
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("store %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "Attachment stored", "key", key, "bytes", n, "content_type", contentType)
	return n, nil
}

func (s *LocalStore) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStore) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("sig", s.sign(key, expires))
	return s.baseURL + "/files/" + key + "?" + q.Encode(), nil
}

// Verify checks a signature produced by SignedURL.
func (s *LocalStore) Verify(key, expiresParam, sig string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	expires, err := strconv.ParseInt(expiresParam, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(key, expires))) {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Handler serves GET /files/{key...} for valid, unexpired signatures.
func (s *LocalStore) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/files/")
		q := r.URL.Query()
		switch err := s.Verify(key, q.Get("expires"), q.Get("sig")); {
		case errors.Is(err, ErrExpired):
			http.Error(w, "link expired", http.StatusGone)
			return
		case err != nil:
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		f, err := os.Open(s.path(key))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "private, no-store")
		http.ServeContent(w, r, filepath.Base(key), info.ModTime(), f)
	})
}
