// Package app wires configuration into the stores, services and pipeline
// that the CLI commands run.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/api"
	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/clock/system"
	"github.com/JakeFAU/magazine-archive/internal/config"
	"github.com/JakeFAU/magazine-archive/internal/discover"
	"github.com/JakeFAU/magazine-archive/internal/extract"
	"github.com/JakeFAU/magazine-archive/internal/fetcher"
	"github.com/JakeFAU/magazine-archive/internal/hash/sha256"
	"github.com/JakeFAU/magazine-archive/internal/id/uuid"
	"github.com/JakeFAU/magazine-archive/internal/ingest"
	"github.com/JakeFAU/magazine-archive/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/magazine-archive/internal/publisher/pubsub"
	"github.com/JakeFAU/magazine-archive/internal/query"
	"github.com/JakeFAU/magazine-archive/internal/search/bleveindex"
	"github.com/JakeFAU/magazine-archive/internal/storage/gcs"
	"github.com/JakeFAU/magazine-archive/internal/storage/local"
	"github.com/JakeFAU/magazine-archive/internal/storage/memory"
	"github.com/JakeFAU/magazine-archive/internal/storage/minio"
	"github.com/JakeFAU/magazine-archive/internal/storage/postgres"
	"github.com/JakeFAU/magazine-archive/internal/writer"
)

// pingStore is an issue store that can report its health.
type pingStore interface {
	archive.IssueStore
	Ping(ctx context.Context) error
}

// App holds the wired components for one process.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Objects      archive.ObjectStore
	Issues       archive.IssueStore
	Query        *query.Service
	Reconciler   *ingest.Reconciler
	Orchestrator *ingest.Orchestrator

	ready   pingStore
	closers []func() error
}

// New builds every component selected by cfg. The orchestrator is nil when
// no archive URL is configured; the query side and reconciliation still work.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("Failed to release partially built app", zap.Error(closeErr))
		}
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	objects, err := a.buildObjectStore(ctx)
	if err != nil {
		return err
	}
	a.Objects = objects

	issues, err := a.buildIssueStore(ctx)
	if err != nil {
		return err
	}
	a.Issues = issues
	a.ready = issues

	a.Reconciler, err = ingest.NewReconciler(issues, objects, a.Logger)
	if err != nil {
		return fmt.Errorf("build reconciler: %w", err)
	}

	indexer, searcher, err := a.buildIndex(ctx, issues)
	if err != nil {
		return err
	}

	a.Query, err = query.New(issues, searcher, a.Config.Search.SnippetRunes, a.Logger)
	if err != nil {
		return fmt.Errorf("build query service: %w", err)
	}

	if a.Config.Archive.URL == "" {
		a.Logger.Info("No archive url configured; ingestion disabled")
		return nil
	}
	return a.buildOrchestrator(ctx, objects, issues, indexer)
}

func (a *App) buildObjectStore(ctx context.Context) (archive.ObjectStore, error) {
	cfg := a.Config.Storage
	switch cfg.Backend {
	case config.BackendGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("create gcs store: %w", err)
		}
		return store, nil
	case config.BackendMinio:
		store, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Region:    cfg.Minio.Region,
			Secure:    cfg.Minio.Secure,
			Bucket:    cfg.Minio.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("create minio store: %w", err)
		}
		return store, nil
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("create local store: %w", err)
		}
		return store, nil
	case config.BackendMemory:
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
	}
}

func (a *App) buildIssueStore(ctx context.Context) (pingStore, error) {
	cfg := a.Config.DB
	if cfg.DSN == "" {
		a.Logger.Warn("No db.dsn configured; issues are kept in memory")
		return memory.NewIssueStore(), nil
	}
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.DSN, a.Logger); err != nil {
			return nil, err
		}
	}
	store, err := postgres.New(ctx, postgres.Config{
		DSN:             cfg.DSN,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		MaxConnLifetime: config.Seconds(cfg.MaxConnLifetimeMinutes * 60),
	})
	if err != nil {
		return nil, fmt.Errorf("connect issue store: %w", err)
	}
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return store, nil
}

func (a *App) buildIndex(ctx context.Context, issues pingStore) (archive.Indexer, archive.Searcher, error) {
	switch a.Config.Search.Backend {
	case config.BackendPostgres, config.BackendMemory:
		both, ok := issues.(interface {
			archive.Indexer
			archive.Searcher
		})
		if !ok {
			return nil, nil, fmt.Errorf("search backend %q does not match the issue store", a.Config.Search.Backend)
		}
		return both, both, nil
	case config.BackendBleve:
		idx, err := bleveindex.Open(a.Config.Search.BlevePath, issues, a.Logger)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, idx.Close)
		n, err := idx.Rebuild(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("rebuild search index: %w", err)
		}
		a.Logger.Info("Search index rebuilt", zap.Int("issues", n))
		return idx, idx, nil
	default:
		return nil, nil, fmt.Errorf("unsupported search backend %q", a.Config.Search.Backend)
	}
}

func (a *App) buildOrchestrator(
	ctx context.Context,
	objects archive.ObjectStore,
	issues archive.IssueStore,
	indexer archive.Indexer,
) error {
	cfg := a.Config
	w, err := writer.New(writer.Config{
		Prefix:        cfg.Storage.Prefix,
		UploadTimeout: config.Seconds(cfg.Ingest.UploadTimeoutSeconds),
		DBTimeout:     config.Seconds(cfg.Ingest.DBTimeoutSeconds),
	}, objects, issues, indexer, sha256.New(), a.Logger)
	if err != nil {
		return fmt.Errorf("build writer: %w", err)
	}

	pages := discover.NewPageFetcher(discover.PageConfig{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.Archive.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
	})
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.HTTP.RatePerSecond, DefaultBurst: cfg.HTTP.Burst})
	docs := fetcher.New(fetcher.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
		MaxBytes:  cfg.HTTP.MaxBytes,
	}, limiter, a.Logger)

	deps := ingest.Dependencies{
		Discoverer: discover.New(pages, cfg.Archive.Extension, a.Logger),
		Fetcher:    docs,
		Extractor:  BuildExtractor(cfg.Extract, config.Seconds(cfg.Ingest.ExtractTimeoutSeconds)),
		Writer:     w,
		Issues:     issues,
		Objects:    objects,
		Clock:      system.New(),
		IDs:        uuid.New(),
	}
	if cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("create pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client, cfg.PubSub.RunsTopic)
		a.closers = append(a.closers, client.Close, func() error {
			pub.Close()
			return nil
		})
		deps.Publisher = pub
	}

	a.Orchestrator, err = ingest.New(ingest.Config{
		ArchiveURL:     cfg.Archive.URL,
		StagingDir:     cfg.Ingest.StagingDir,
		SkipExisting:   cfg.Ingest.SkipExisting,
		ExtractTimeout: config.Seconds(cfg.Ingest.ExtractTimeoutSeconds),
		RunsTopic:      cfg.PubSub.RunsTopic,
		IssuesTopic:    cfg.PubSub.IssuesTopic,
	}, deps, a.Logger)
	if err != nil {
		return fmt.Errorf("build orchestrator: %w", err)
	}
	return nil
}

// BuildExtractor assembles the configured extractors: the external command
// first, then the native PDF reader. With neither, text is left empty.
func BuildExtractor(cfg config.ExtractConfig, timeout time.Duration) archive.TextExtractor {
	var chain extract.Chain
	if len(cfg.Command) > 0 && cfg.Command[0] != "" {
		chain = append(chain, &extract.Command{
			Name:    cfg.Command[0],
			Args:    append([]string(nil), cfg.Command[1:]...),
			Timeout: timeout,
		})
	}
	if cfg.Native {
		chain = append(chain, extract.PDF{})
	}
	if len(chain) == 0 {
		return extract.Noop{}
	}
	return chain
}

// Ping reports whether the issue store is reachable.
func (a *App) Ping(ctx context.Context) error {
	if a.ready == nil {
		return errors.New("issue store not initialized")
	}
	return a.ready.Ping(ctx)
}

// Server returns the HTTP API over the wired components. Ingestion started
// over HTTP runs on baseCtx.
func (a *App) Server(baseCtx context.Context) *api.Server {
	deps := api.Dependencies{Catalog: a.Query, Ready: a}
	if a.Orchestrator != nil {
		deps.Ingest = a.Orchestrator
	}
	return api.NewServer(baseCtx, deps, a.Config, a.Logger)
}

// Close releases clients in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
