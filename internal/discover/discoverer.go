package discover

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

// ErrDiscovery marks failures that abort an ingestion run before any issue work.
var ErrDiscovery = errors.New("archive discovery failed")

// PageSource returns the markup of the archive index page.
type PageSource interface {
	FetchPage(ctx context.Context, pageURL string) (string, error)
}

// Discoverer fetches the archive page and extracts document candidates.
type Discoverer struct {
	pages     PageSource
	extension string
	logger    *zap.Logger
}

// New constructs a Discoverer for documents ending in extension.
func New(pages PageSource, extension string, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extension == "" {
		extension = ".pdf"
	}
	return &Discoverer{pages: pages, extension: extension, logger: logger}
}

// Discover returns the candidates linked from pageURL. Every error wraps ErrDiscovery.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) ([]archive.Candidate, error) {
	html, err := d.pages.FetchPage(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	candidates, err := ParseLinks(pageURL, html, d.extension)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}
	d.logger.Info("archive page parsed",
		zap.String("url", pageURL),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}
