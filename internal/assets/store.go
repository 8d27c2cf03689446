package assets

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"pantry/internal/config"
	"pantry/internal/services"
)

// ImagePrefix is the key namespace for item photos.
const ImagePrefix = "images/"

// Store uploads and deletes blobs by key.
type Store interface {
	// Upload writes data under key, replacing any existing blob, and returns
	// the blob's public URL.
	Upload(ctx context.Context, key string, data []byte) (string, error)
	// Delete removes the blob at key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error
}

// ImageKey returns the asset key for an item's photo.
func ImageKey(name string) string {
	return ImagePrefix + name
}

// New builds the backend selected by cfg.Assets.Backend.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "assets", "init", "configuration unavailable", nil)
	}
	switch strings.ToLower(cfg.Assets.Backend) {
	case "", config.AssetBackendFS:
		return NewFileStore(cfg.Assets.Dir, cfg.Assets.BaseURL, logger)
	case config.AssetBackendS3:
		return NewS3Store(ctx, cfg.Assets.S3Bucket, cfg.Assets.S3Region, cfg.Assets.PublicURL, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "assets", "init",
			fmt.Sprintf("unsupported backend %q", cfg.Assets.Backend), nil)
	}
}

// escapeKeyPath escapes each "/"-separated segment of key for use in a URL path.
func escapeKeyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
