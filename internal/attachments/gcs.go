package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"estate/internal/log"
)

// GCSStore keeps attachments in a Google Cloud Storage bucket and signs V4
// GET URLs for downloads.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger *log.Logger
}

// NewGCSStore uses explicit service-account JSON when given, application
// default credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON string, logger *log.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.New("GCS bucket is required")
	}
	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	if logger == nil {
		logger = log.Default(log.ComponentAttachments)
	}
	return &GCSStore{client: client, bucket: bucket, logger: logger.WithComponent(log.ComponentAttachments)}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}

	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	n, err := io.Copy(wc, r)
	if err != nil {
		wc.Close()
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return 0, fmt.Errorf("finalize upload %s: %w", key, err)
	}

	s.logger.InfoContext(ctx, "Attachment uploaded", "bucket", s.bucket, "key", key, "bytes", n)
	return n, nil
}

func (s *GCSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(key, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", key, err)
	}
	return url, nil
}

func (s *GCSStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
