package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BlobStore persists encoded reports.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher announces stored reports.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Hasher produces a content digest for an encoded report.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock supplies the notification timestamp.
type Clock interface {
	Now() time.Time
}

// WriterConfig controls where reports go.
type WriterConfig struct {
	Prefix string
	Format Format
	Topic  string
}

// Writer stores a report and publishes a pointer to it.
type Writer struct {
	store     BlobStore
	publisher Publisher
	hasher    Hasher
	clock     Clock
	cfg       WriterConfig
	logger    *zap.Logger
}

// Result describes a stored report.
type Result struct {
	URI       string
	Path      string
	Hash      string
	MessageID string
}

// NewWriter wires a Writer. publisher may be nil, in which case nothing is
// announced.
func NewWriter(
	store BlobStore,
	publisher Publisher,
	hasher Hasher,
	clock Clock,
	cfg WriterConfig,
	logger *zap.Logger,
) (*Writer, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:     store,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Write encodes the report, stores it at <prefix>/<run_id>/<hash>.<ext> and
// publishes a notification when a topic is configured.
func (w *Writer) Write(ctx context.Context, r Report) (Result, error) {
	data, err := Encode(r, w.cfg.Format)
	if err != nil {
		return Result{}, err
	}
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return Result{}, fmt.Errorf("hash report: %w", err)
	}

	blobPath := buildBlobPath(w.cfg.Prefix, r.RunID, digest, w.cfg.Format)
	uri, err := w.store.PutObject(ctx, blobPath, w.cfg.Format.ContentType(), bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("store report: %w", err)
	}
	res := Result{URI: uri, Path: blobPath, Hash: digest}
	w.logger.Info("report stored",
		zap.String("run_id", r.RunID),
		zap.String("uri", uri),
		zap.Int("bytes", len(data)))

	id, err := w.publish(ctx, r, res)
	if err != nil {
		return res, err
	}
	res.MessageID = id
	return res, nil
}

func (w *Writer) publish(ctx context.Context, r Report, res Result) (string, error) {
	if w.publisher == nil || strings.TrimSpace(w.cfg.Topic) == "" {
		return "", nil
	}
	payload := map[string]any{
		"run_id":    r.RunID,
		"blob_uri":  res.URI,
		"hash":      res.Hash,
		"attempted": r.Attempted,
		"succeeded": r.Succeeded,
		"failed":    r.Failed,
		"timestamp": w.clock.Now().UTC().Format(time.RFC3339),
	}
	id, err := w.publisher.Publish(ctx, w.cfg.Topic, payload)
	if err != nil {
		return "", fmt.Errorf("publish report notification: %w", err)
	}
	w.logger.Debug("report notification published",
		zap.String("topic", w.cfg.Topic),
		zap.String("message_id", id))
	return id, nil
}

func buildBlobPath(prefix, runID, digest string, format Format) string {
	name := fmt.Sprintf("%s.%s", digest, format.Extension())
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return path.Join(runID, name)
	}
	return path.Join(prefix, runID, name)
}
