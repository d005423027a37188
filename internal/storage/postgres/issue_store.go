// Package postgres persists issues and their full-text search entries in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/search"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

const issueColumns = `id, title, publication_date, document_key, extracted_text, summary,
	cover_image_url, source_url, document_hash, document_size, created_at, updated_at`

// upsertIssueSQL leaves id, document_key, cover_image_url and created_at
// untouched on conflict; covers are curated outside the pipeline.
const upsertIssueSQL = `
INSERT INTO issues (
	id, title, publication_date, document_key, extracted_text, summary,
	cover_image_url, source_url, document_hash, document_size, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	publication_date = EXCLUDED.publication_date,
	extracted_text = EXCLUDED.extracted_text,
	summary = EXCLUDED.summary,
	source_url = EXCLUDED.source_url,
	document_hash = EXCLUDED.document_hash,
	document_size = EXCLUDED.document_size,
	updated_at = now()
RETURNING (xmax = 0) AS created`

const refreshSearchSQL = `
INSERT INTO issue_search (id, title_norm, body_norm, refreshed_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
	title_norm = EXCLUDED.title_norm,
	body_norm = EXCLUDED.body_norm,
	refreshed_at = now()`

const searchSQL = `
SELECT i.id, i.title, i.publication_date, i.document_key, i.extracted_text, i.summary,
	i.cover_image_url, i.source_url, i.document_hash, i.document_size, i.created_at, i.updated_at,
	(s.title_norm LIKE $1 ESCAPE '\') AS title_match
FROM issue_search s
JOIN issues i ON i.id = s.id
WHERE s.title_norm LIKE $1 ESCAPE '\' OR s.body_norm LIKE $1 ESCAPE '\'
ORDER BY title_match DESC, i.publication_date DESC, i.title ASC, i.id ASC`

// IssueStore implements archive.IssueStore, archive.Indexer and archive.Searcher on Postgres.
type IssueStore struct {
	pool pool
}

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*IssueStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &IssueStore{pool: p}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*IssueStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &IssueStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *IssueStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks connectivity.
func (s *IssueStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Upsert inserts or updates the issue row in one statement. id, document_key and
// created_at are never rewritten by the update branch.
func (s *IssueStore) Upsert(ctx context.Context, issue archive.Issue) (bool, error) {
	if issue.ID == "" {
		return false, fmt.Errorf("issue id is required")
	}
	var created bool
	err := s.pool.QueryRow(ctx, upsertIssueSQL,
		issue.ID,
		issue.Title,
		issue.PublicationDate,
		issue.DocumentKey,
		issue.ExtractedText,
		issue.Summary,
		coverValue(issue.CoverImageURL),
		issue.SourceURL,
		issue.DocumentHash,
		issue.DocumentSize,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("upsert issue %s: %w", issue.ID, err)
	}
	return created, nil
}

// Get returns the issue with id or archive.ErrNotFound.
func (s *IssueStore) Get(ctx context.Context, id string) (archive.Issue, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+issueColumns+" FROM issues WHERE id = $1", id)
	issue, err := scanIssue(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return archive.Issue{}, archive.ErrNotFound
	}
	if err != nil {
		return archive.Issue{}, fmt.Errorf("get issue %s: %w", id, err)
	}
	return issue, nil
}

// List returns every issue, newest first.
func (s *IssueStore) List(ctx context.Context) ([]archive.Issue, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+issueColumns+" FROM issues ORDER BY publication_date DESC, title ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	issues := make([]archive.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

// Refresh rewrites the issue_search entry for issue.
func (s *IssueStore) Refresh(ctx context.Context, issue archive.Issue) error {
	_, err := s.pool.Exec(ctx, refreshSearchSQL,
		issue.ID,
		search.NormalizeText(issue.Title),
		search.NormalizeText(issue.ExtractedText),
	)
	if err != nil {
		return fmt.Errorf("refresh search entry %s: %w", issue.ID, err)
	}
	return nil
}

// Search returns issues whose normalized title or body contains the query phrase.
func (s *IssueStore) Search(ctx context.Context, query string) ([]archive.SearchHit, error) {
	phrase := search.NormalizeQuery(query)
	if phrase == "" {
		return []archive.SearchHit{}, nil
	}
	rows, err := s.pool.Query(ctx, searchSQL, "%"+escapeLike(phrase)+"%")
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	defer rows.Close()

	hits := make([]archive.SearchHit, 0)
	for rows.Next() {
		var (
			hit   archive.SearchHit
			cover string
		)
		if err := rows.Scan(
			&hit.Issue.ID,
			&hit.Issue.Title,
			&hit.Issue.PublicationDate,
			&hit.Issue.DocumentKey,
			&hit.Issue.ExtractedText,
			&hit.Issue.Summary,
			&cover,
			&hit.Issue.SourceURL,
			&hit.Issue.DocumentHash,
			&hit.Issue.DocumentSize,
			&hit.Issue.CreatedAt,
			&hit.Issue.UpdatedAt,
			&hit.TitleMatch,
		); err != nil {
			return nil, fmt.Errorf("scan search hit: %w", err)
		}
		hit.Issue.CoverImageURL = coverPointer(cover)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	return hits, nil
}

func scanIssue(row pgx.Row) (archive.Issue, error) {
	var (
		issue archive.Issue
		cover string
	)
	err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.PublicationDate,
		&issue.DocumentKey,
		&issue.ExtractedText,
		&issue.Summary,
		&cover,
		&issue.SourceURL,
		&issue.DocumentHash,
		&issue.DocumentSize,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	)
	if err != nil {
		return archive.Issue{}, err //nolint:wrapcheck
	}
	issue.CoverImageURL = coverPointer(cover)
	return issue, nil
}

func coverValue(cover *string) string {
	if cover == nil {
		return ""
	}
	return *cover
}

func coverPointer(cover string) *string {
	if cover == "" {
		return nil
	}
	return &cover
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
