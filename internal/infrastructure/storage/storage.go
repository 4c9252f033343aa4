package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"starauto-backend/internal/config"
)

var ErrNotConfigured = errors.New("storage: not configured")

// BlobStore is the public object store that holds listing photos.
type BlobStore interface {
	// Put upserts data at path and returns its public URL.
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	// Remove deletes paths in one call. Missing objects are not an error.
	Remove(ctx context.Context, paths ...string) error
}

// New builds the configured BlobStore.
func New(cfg *config.Config) (BlobStore, error) {
	switch cfg.StorageDriver {
	case "", config.StorageSupabase:
		if cfg.SupabaseURL == "" || cfg.SupabaseSecretKey == "" {
			return nil, fmt.Errorf("%w: SUPABASE_URL and SUPABASE_SECRET_KEY are required", ErrNotConfigured)
		}
		return &Supabase{
			BaseURL:   cfg.SupabaseURL,
			SecretKey: cfg.SupabaseSecretKey,
			Bucket:    cfg.StorageBucket,
			Client:    &http.Client{Timeout: 30 * time.Second},
		}, nil
	case config.StorageMinIO:
		m, err := NewMinIO(MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			UseSSL:    cfg.MinIOUseSSL,
			Bucket:    cfg.StorageBucket,
			PublicURL: cfg.PublicStorageURL,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.StorageMemory:
		return NewMemory(cfg.PublicStorageURL, cfg.StorageBucket), nil
	default:
		return nil, fmt.Errorf("%w: unknown STORAGE_DRIVER %q", ErrNotConfigured, cfg.StorageDriver)
	}
}

// publicURL is the URL shape every driver hands out.
func publicURL(base, bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", base, bucket, path)
}
