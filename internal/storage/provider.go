// Package storage selects the blob store that scrape reports are written to.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/cvmfs-scraper/internal/storage/gcs"
	"github.com/JakeFAU/cvmfs-scraper/internal/storage/local"
	"github.com/JakeFAU/cvmfs-scraper/internal/storage/memory"
)

// Backend names.
const (
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// BlobStore writes one object and returns a URI for it.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
}

// Open builds the configured blob store. The returned close function must be
// called when the store is no longer needed.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (BlobStore, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		return memory.NewBlobStore(), func() {}, nil
	case BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, nil, fmt.Errorf("open local blob store: %w", err)
		}
		return store, func() {}, nil
	case BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("failed to close gcs client", zap.Error(err))
			}
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Bucket})
		if err != nil {
			closeFn()
			return nil, nil, fmt.Errorf("open gcs blob store: %w", err)
		}
		return store, closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
