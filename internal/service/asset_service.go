package service

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/motionforge/api/internal/client"
	"go.uber.org/zap"
)

const (
	assetKeyPrefix   = "uploads"
	maxFilenameRunes = 100
)

// StoredAsset is a source image written to the asset store
type StoredAsset struct {
	Key string
	URL string
}

// AssetService writes source images to the asset store under time-based keys.
// Two uploads with the same filename in the same millisecond share a key;
// the later write wins.
type AssetService struct {
	store  client.StorageClient
	logger *zap.Logger
	now    func() time.Time
}

// NewAssetService creates an asset service on top of store
func NewAssetService(store client.StorageClient, logger *zap.Logger) *AssetService {
	return &AssetService{
		store:  store,
		logger: logger.With(zap.String("component", "asset-service")),
		now:    time.Now,
	}
}

// Put stores data and returns its key and public URL
func (s *AssetService) Put(ctx context.Context, filename string, data []byte, contentType string) (*StoredAsset, error) {
	key := s.Key(filename)

	url, err := s.store.Upload(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return nil, &StorageError{Key: key, Err: err}
	}

	s.logger.Info("asset stored",
		zap.String("key", key),
		zap.Int("bytes", len(data)),
		zap.String("content_type", contentType),
	)
	return &StoredAsset{Key: key, URL: url}, nil
}

// Discard removes a stored asset
func (s *AssetService) Discard(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return &StorageError{Key: key, Err: err}
	}
	return nil
}

// Key derives the storage key for filename: uploads/<unix-millis>-<name>
func (s *AssetService) Key(filename string) string {
	return fmt.Sprintf("%s/%d-%s", assetKeyPrefix, s.now().UnixMilli(), sanitizeFilename(filename))
}

// sanitizeFilename keeps the base name and replaces anything outside
// [A-Za-z0-9._-] so keys are safe as URL path segments.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))

	var b strings.Builder
	runes := 0
	for _, r := range name {
		if runes == maxFilenameRunes {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
		runes++
	}

	out := strings.Trim(b.String(), ".-")
	if out == "" {
		return "image"
	}
	return out
}
