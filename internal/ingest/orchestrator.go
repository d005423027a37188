// Package ingest runs the archive ingestion pipeline. One worker walks the
// discovered candidates in order: infer the identifier, fetch the document,
// extract its text and store it. Per-issue failures are recorded in the run
// report and never abort the run; only discovery failure does.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/extract"
	"github.com/JakeFAU/magazine-archive/internal/fetcher"
	"github.com/JakeFAU/magazine-archive/internal/infer"
	"github.com/JakeFAU/magazine-archive/internal/metrics"
	"github.com/JakeFAU/magazine-archive/internal/writer"
)

var tracer = otel.Tracer("github.com/JakeFAU/magazine-archive/internal/ingest")

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Discoverer lists the document candidates on the archive page.
type Discoverer interface {
	Discover(ctx context.Context, pageURL string) ([]archive.Candidate, error)
}

// DocumentFetcher downloads a document to a staging path.
type DocumentFetcher interface {
	Fetch(ctx context.Context, documentURL, stagingPath string) (fetcher.Result, error)
}

// IssueWriter uploads a document and persists its row and search entry.
type IssueWriter interface {
	Write(ctx context.Context, issue archive.Issue, data []byte) (archive.Outcome, archive.Issue, error)
}

// Config controls a run.
type Config struct {
	ArchiveURL     string
	StagingDir     string
	SkipExisting   bool
	ExtractTimeout time.Duration
	RunsTopic      string
	IssuesTopic    string
}

// Dependencies groups the collaborators of an Orchestrator.
type Dependencies struct {
	Discoverer Discoverer
	Fetcher    DocumentFetcher
	Extractor  archive.TextExtractor
	Writer     IssueWriter
	Issues     archive.IssueStore
	Objects    archive.ObjectStore
	Publisher  archive.Publisher
	Clock      archive.Clock
	IDs        archive.IDGenerator
}

// Orchestrator sequences ingestion runs and reconciliation scans.
type Orchestrator struct {
	cfg     Config
	deps    Dependencies
	logger  *zap.Logger
	running sync.Mutex
}

// New validates deps and returns an Orchestrator.
func New(cfg Config, deps Dependencies, logger *zap.Logger) (*Orchestrator, error) {
	if cfg.ArchiveURL == "" {
		return nil, fmt.Errorf("archive url is required")
	}
	if cfg.StagingDir == "" {
		return nil, fmt.Errorf("staging dir is required")
	}
	if deps.Discoverer == nil || deps.Fetcher == nil || deps.Writer == nil {
		return nil, fmt.Errorf("discoverer, fetcher and writer are required")
	}
	if deps.Issues == nil || deps.Objects == nil {
		return nil, fmt.Errorf("issue store and object store are required")
	}
	if deps.Clock == nil || deps.IDs == nil {
		return nil, fmt.Errorf("clock and id generator are required")
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.Noop{}
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger.Named("ingest")}, nil
}

// Run executes one ingestion run. The returned error is non-nil only when the
// run could not start or discovery failed; the report is populated either way.
// Cancellation is honored between issues: the issue in flight finishes, the
// rest are counted as not processed and the report is marked canceled.
func (o *Orchestrator) Run(ctx context.Context) (archive.RunReport, error) {
	if !o.running.TryLock() {
		return archive.RunReport{}, ErrRunInProgress
	}
	defer o.running.Unlock()

	runID, err := o.deps.IDs.NewID()
	if err != nil {
		return archive.RunReport{}, fmt.Errorf("generate run id: %w", err)
	}
	return o.run(ctx, runID)
}

// Start begins a run in the background and returns its ID once the run holds
// the run lock. The channel receives the report when the run ends.
func (o *Orchestrator) Start(ctx context.Context) (string, <-chan archive.RunReport, error) {
	if !o.running.TryLock() {
		return "", nil, ErrRunInProgress
	}
	runID, err := o.deps.IDs.NewID()
	if err != nil {
		o.running.Unlock()
		return "", nil, fmt.Errorf("generate run id: %w", err)
	}
	done := make(chan archive.RunReport, 1)
	go func() {
		report, _ := o.run(ctx, runID) //nolint:errcheck // discovery failures are logged by run
		o.running.Unlock()
		done <- report
		close(done)
	}()
	return runID, done, nil
}

func (o *Orchestrator) run(ctx context.Context, runID string) (archive.RunReport, error) {
	ctx, span := tracer.Start(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("archive.url", o.cfg.ArchiveURL),
	))
	defer span.End()

	report := archive.RunReport{
		RunID:      runID,
		ArchiveURL: o.cfg.ArchiveURL,
		StartedAt:  o.deps.Clock.Now(),
		Failures:   []archive.Failure{},
	}
	logger := o.logger.With(zap.String("run_id", runID))
	logger.Info("Ingestion run started", zap.String("archive_url", o.cfg.ArchiveURL))

	start := time.Now()
	candidates, err := o.deps.Discoverer.Discover(ctx, o.cfg.ArchiveURL)
	metrics.ObserveStep("discover", time.Since(start))
	if err != nil {
		report.FinishedAt = o.deps.Clock.Now()
		metrics.ObserveRun("discovery_failed")
		logger.Error("Archive discovery failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		o.publish(ctx, o.cfg.RunsTopic, report)
		return report, err
	}
	report.Counters.Discovered = len(candidates)
	span.SetAttributes(attribute.Int("run.discovered", len(candidates)))

	for i, candidate := range candidates {
		if ctx.Err() != nil {
			report.Canceled = true
			report.Counters.NotProcessed = len(candidates) - i
			break
		}
		res := o.processOne(ctx, logger, candidate)
		report.Counters.Record(res.outcome)
		if res.extractionFailed {
			report.Counters.ExtractionFailures++
		}
		metrics.ObserveIssue(string(res.outcome))
		if res.err != nil {
			report.Failures = append(report.Failures, archive.Failure{
				ID:          res.issue.ID,
				Title:       candidate.Title,
				DocumentURL: candidate.DocumentURL,
				Outcome:     res.outcome,
				Error:       res.err.Error(),
			})
		}
		o.publish(ctx, o.cfg.IssuesTopic, archive.IssueEvent{
			RunID:       runID,
			IssueID:     res.issue.ID,
			Title:       candidate.Title,
			DocumentKey: res.issue.DocumentKey,
			Outcome:     res.outcome,
			OccurredAt:  o.deps.Clock.Now(),
		})
	}

	report.FinishedAt = o.deps.Clock.Now()
	status := "completed"
	if report.Canceled {
		status = "canceled"
	}
	metrics.ObserveRun(status)
	c := report.Counters
	logger.Info("Ingestion run finished",
		zap.String("status", status),
		zap.Int("discovered", c.Discovered),
		zap.Int("created", c.Created),
		zap.Int("updated", c.Updated),
		zap.Int("skipped_existing", c.Skipped),
		zap.Int("failed_download", c.FailedDownload),
		zap.Int("failed_write", c.FailedWrite),
		zap.Int("extraction_failures", c.ExtractionFailures),
		zap.Int("not_processed", c.NotProcessed),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	// Publishing must not be cut short by the cancellation that ended the run.
	o.publish(context.WithoutCancel(ctx), o.cfg.RunsTopic, report)
	return report, nil
}

type issueResult struct {
	issue            archive.Issue
	outcome          archive.Outcome
	extractionFailed bool
	err              error
}

func (o *Orchestrator) processOne(ctx context.Context, logger *zap.Logger, c archive.Candidate) (res issueResult) {
	id, date := infer.Infer(c.Title)
	ctx, span := tracer.Start(ctx, "ingest.issue", trace.WithAttributes(
		attribute.String("issue.id", id),
		attribute.String("issue.url", c.DocumentURL),
	))
	defer func() {
		span.SetAttributes(attribute.String("issue.outcome", string(res.outcome)))
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, string(res.outcome))
		}
		span.End()
	}()
	issue := archive.Issue{
		ID:              id,
		Title:           c.Title,
		PublicationDate: date,
		Summary:         c.Title,
		SourceURL:       c.DocumentURL,
	}
	logger = logger.With(zap.String("id", id), zap.String("url", c.DocumentURL))
	stagingPath := filepath.Join(o.cfg.StagingDir, id+"."+writer.Extension(c.DocumentURL))

	if o.cfg.SkipExisting && fileExists(stagingPath) {
		if existing, err := o.deps.Issues.Get(ctx, id); err == nil {
			logger.Debug("Issue already ingested; skipping")
			return issueResult{issue: existing, outcome: archive.OutcomeSkipped}
		}
	}

	start := time.Now()
	fetched, err := o.deps.Fetcher.Fetch(ctx, c.DocumentURL, stagingPath)
	metrics.ObserveStep("fetch", time.Since(start))
	if err != nil {
		logger.Warn("Document download failed", zap.Error(err))
		return issueResult{issue: issue, outcome: archive.OutcomeFailedDownload, err: err}
	}
	data, err := os.ReadFile(stagingPath) //nolint:gosec // path is built from a sanitized slug
	if err != nil {
		err = fmt.Errorf("read staged document: %w", err)
		logger.Warn("Staged document unreadable", zap.Error(err))
		return issueResult{issue: issue, outcome: archive.OutcomeFailedDownload, err: err}
	}
	logger.Debug("Document staged", zap.Bool("reused", fetched.Skipped), zap.Int("bytes", len(data)))

	text, extractionFailed := o.extractText(ctx, logger, stagingPath)
	issue.ExtractedText = text

	outcome, stored, err := o.deps.Writer.Write(ctx, issue, data)
	if err != nil {
		return issueResult{issue: stored, outcome: outcome, extractionFailed: extractionFailed, err: err}
	}
	logger.Info("Issue stored", zap.String("outcome", string(outcome)), zap.String("key", stored.DocumentKey))
	return issueResult{issue: stored, outcome: outcome, extractionFailed: extractionFailed}
}

// extractText never fails the issue: errors are logged and yield "".
func (o *Orchestrator) extractText(ctx context.Context, logger *zap.Logger, path string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ExtractTimeout)
	defer cancel()

	start := time.Now()
	text, err := o.deps.Extractor.Extract(ctx, path)
	metrics.ObserveStep("extract", time.Since(start))
	if err != nil {
		metrics.ObserveExtraction("failed")
		logger.Warn("Text extraction failed; storing without text", zap.Error(err))
		return "", true
	}
	text = extract.Sanitize(text)
	if text == "" {
		metrics.ObserveExtraction("empty")
	} else {
		metrics.ObserveExtraction("ok")
	}
	return text, false
}

func (o *Orchestrator) publish(ctx context.Context, topic string, payload any) {
	if o.deps.Publisher == nil || topic == "" {
		return
	}
	if _, err := o.deps.Publisher.Publish(ctx, topic, payload); err != nil {
		o.logger.Warn("Publish notification failed", zap.String("topic", topic), zap.Error(err))
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
