package app

import (
	"context"
	"fmt"

	"github.com/noodle-soup/noodle/internal/platform/storage"
)

// NewStore opens the file content backend selected by STORAGE_BACKEND.
func NewStore(ctx context.Context, cfg *Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "", "local":
		local, err := storage.NewLocal(cfg.MediaPath)
		if err != nil {
			return nil, err
		}
		return local, nil
	case "s3":
		bucket, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return bucket, nil
	}
	return nil, fmt.Errorf("app: unknown storage backend %q", cfg.StorageBackend)
}
