// Package writer stores one issue: upload the document, upsert the row, then
// refresh its search entry. Each step runs only when the previous one succeeded,
// so a row never exists without its uploaded document.
package writer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/metrics"
)

// DefaultExtension is used when the source URL carries no usable extension.
const DefaultExtension = "pdf"

var (
	// ErrUpload marks a failed document upload. Nothing else was written.
	ErrUpload = errors.New("document upload failed")
	// ErrOrphanedObject marks a document that was uploaded but has no row.
	// The next successful run overwrites the object and inserts the row.
	ErrOrphanedObject = errors.New("document uploaded without metadata row")
	// ErrStaleIndex marks a stored row whose search entry could not be refreshed.
	ErrStaleIndex = errors.New("search entry not refreshed")
)

// Config controls object layout and step timeouts.
type Config struct {
	Prefix        string
	UploadTimeout time.Duration
	DBTimeout     time.Duration
}

// Writer implements the three-step store sequence.
type Writer struct {
	cfg     Config
	objects archive.ObjectStore
	issues  archive.IssueStore
	index   archive.Indexer
	hasher  archive.Hasher
	logger  *zap.Logger
}

// New wires a Writer.
func New(
	cfg Config,
	objects archive.ObjectStore,
	issues archive.IssueStore,
	index archive.Indexer,
	hasher archive.Hasher,
	logger *zap.Logger,
) (*Writer, error) {
	if objects == nil || issues == nil || index == nil {
		return nil, fmt.Errorf("object store, issue store and indexer are required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 2 * time.Minute
	}
	if cfg.DBTimeout <= 0 {
		cfg.DBTimeout = 30 * time.Second
	}
	return &Writer{
		cfg:     cfg,
		objects: objects,
		issues:  issues,
		index:   index,
		hasher:  hasher,
		logger:  logger.Named("writer"),
	}, nil
}

// DocumentKey returns the object key for id, `<prefix>/<id>.<ext>`.
func (w *Writer) DocumentKey(id, sourceURL string) string {
	return DocumentKey(w.cfg.Prefix, id, Extension(sourceURL))
}

// DocumentKey joins prefix, id and ext into an object key.
func DocumentKey(prefix, id, ext string) string {
	name := id + "." + ext
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// Extension returns the lower-cased extension of the URL path without the dot.
func Extension(sourceURL string) string {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

// Write stores the document and its row. issue.ID, Title, PublicationDate,
// ExtractedText and SourceURL must be set; the document key, hash, size and
// summary are filled in here. The returned issue is what was persisted.
func (w *Writer) Write(ctx context.Context, issue archive.Issue, data []byte) (archive.Outcome, archive.Issue, error) {
	ext := Extension(issue.SourceURL)
	issue.DocumentKey = DocumentKey(w.cfg.Prefix, issue.ID, ext)
	issue.DocumentSize = int64(len(data))
	if issue.Summary == "" {
		issue.Summary = issue.Title
	}
	digest, err := w.hasher.Hash(data)
	if err != nil {
		return archive.OutcomeFailedWrite, issue, fmt.Errorf("hash document: %w", err)
	}
	issue.DocumentHash = digest

	logger := w.logger.With(zap.String("id", issue.ID), zap.String("key", issue.DocumentKey))

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	start := time.Now()
	uploadCtx, cancel := context.WithTimeout(ctx, w.cfg.UploadTimeout)
	err = w.objects.Put(uploadCtx, issue.DocumentKey, contentType, data)
	cancel()
	metrics.ObserveStep("upload", time.Since(start))
	if err != nil {
		logger.Warn("Document upload failed", zap.Error(err))
		return archive.OutcomeFailedWrite, issue, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	start = time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, w.cfg.DBTimeout)
	defer cancel()
	created, err := w.issues.Upsert(dbCtx, issue)
	metrics.ObserveStep("upsert", time.Since(start))
	if err != nil {
		metrics.ObserveOrphanedObject()
		logger.Warn("Uploaded document has no metadata row; next run will repair it", zap.Error(err))
		return archive.OutcomeFailedWrite, issue, fmt.Errorf("%w: %w", ErrOrphanedObject, err)
	}

	start = time.Now()
	err = w.index.Refresh(dbCtx, issue)
	metrics.ObserveStep("index", time.Since(start))
	if err != nil {
		logger.Warn("Search entry is stale", zap.Error(err))
		return archive.OutcomeFailedWrite, issue, fmt.Errorf("%w: %w", ErrStaleIndex, err)
	}

	if created {
		return archive.OutcomeCreated, issue, nil
	}
	return archive.OutcomeUpdated, issue, nil
}
