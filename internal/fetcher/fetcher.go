// Package fetcher downloads issue documents into a local staging directory.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/metrics"
)

// ErrTooLarge is returned when a document exceeds Config.MaxBytes.
var ErrTooLarge = errors.New("document exceeds size limit")

// StatusError reports a non-2xx response from the document host.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Waiter throttles requests per host.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls download behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

// Result describes a completed fetch.
type Result struct {
	Skipped     bool
	Bytes       int64
	ContentType string
}

// Fetcher streams documents to disk.
type Fetcher struct {
	client  *http.Client
	cfg     Config
	limiter Waiter
	logger  *zap.Logger
}

// New constructs a Fetcher. limiter may be nil.
func New(cfg Config, limiter Waiter, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:  &http.Client{Transport: newHTTPTransport()},
		cfg:     cfg,
		limiter: limiter,
		logger:  logger,
	}
}

// Fetch downloads documentURL to stagingPath. When stagingPath already exists
// nothing is downloaded and the result is marked Skipped. A failed download
// never leaves a file at stagingPath.
func (f *Fetcher) Fetch(ctx context.Context, documentURL, stagingPath string) (Result, error) {
	if info, err := os.Stat(stagingPath); err == nil && !info.IsDir() {
		f.logger.Debug("document already staged", zap.String("path", stagingPath))
		return Result{Skipped: true, Bytes: info.Size()}, nil
	}
	if err := os.MkdirAll(filepath.Dir(stagingPath), 0o750); err != nil {
		return Result{}, fmt.Errorf("create staging dir: %w", err)
	}
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, documentURL); err != nil {
			return Result{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, documentURL, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("GET %s: %w", documentURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.Error(cerr))
		}
	}()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{}, &StatusError{URL: documentURL, Code: resp.StatusCode}
	}

	n, err := f.writeStaged(resp.Body, stagingPath)
	if err != nil {
		return Result{}, err
	}
	metrics.ObserveFetch(documentURL, n)
	return Result{Bytes: n, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (f *Fetcher) writeStaged(body io.Reader, stagingPath string) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(stagingPath), filepath.Base(stagingPath)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	src := body
	if f.cfg.MaxBytes > 0 {
		src = io.LimitReader(body, f.cfg.MaxBytes+1)
	}
	n, err = io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("stream document: %w", err)
	}
	if f.cfg.MaxBytes > 0 && n > f.cfg.MaxBytes {
		return 0, ErrTooLarge
	}
	if err = tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), stagingPath); err != nil {
		return 0, fmt.Errorf("move staged document: %w", err)
	}
	return n, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
