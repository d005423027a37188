// Package bleveindex keeps the issue full-text index in a Bleve index, as an
// alternative to the Postgres issue_search table. Matching is token based:
// a query matches when its tokens appear as a phrase in the title or body.
package bleveindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/search"
)

const (
	analyzerName = "magazine"
	fieldTitle   = "title"
	fieldBody    = "body"
)

// Index implements archive.Indexer and archive.Searcher. Hits are hydrated
// from the issue store so results always reflect the stored rows.
type Index struct {
	index  bleve.Index
	issues archive.IssueStore
	logger *zap.Logger
}

// Open opens the index at path, creating it when missing. An empty path keeps
// the index in memory.
func Open(path string, issues archive.IssueStore, logger *zap.Logger) (*Index, error) {
	if issues == nil {
		return nil, fmt.Errorf("issue store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Index{index: idx, issues: issues, logger: logger.Named("bleve")}, nil
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(analyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = analyzerName
	textField.Store = false
	textField.IncludeTermVectors = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt(fieldTitle, textField)
	docMapping.AddFieldMappingsAt(fieldBody, textField)
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = analyzerName
	return indexMapping, nil
}

// Close closes the index.
func (i *Index) Close() error {
	if err := i.index.Close(); err != nil {
		return fmt.Errorf("close bleve index: %w", err)
	}
	return nil
}

// Refresh replaces the index document for issue.
func (i *Index) Refresh(_ context.Context, issue archive.Issue) error {
	doc := map[string]interface{}{
		fieldTitle: issue.Title,
		fieldBody:  issue.ExtractedText,
	}
	if err := i.index.Index(issue.ID, doc); err != nil {
		return fmt.Errorf("index issue %s: %w", issue.ID, err)
	}
	return nil
}

// Rebuild indexes every stored issue in a single batch.
func (i *Index) Rebuild(ctx context.Context) (int, error) {
	issues, err := i.issues.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list issues: %w", err)
	}
	batch := i.index.NewBatch()
	for _, issue := range issues {
		doc := map[string]interface{}{
			fieldTitle: issue.Title,
			fieldBody:  issue.ExtractedText,
		}
		if err := batch.Index(issue.ID, doc); err != nil {
			return 0, fmt.Errorf("batch index %s: %w", issue.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}
	i.logger.Info("Rebuilt search index", zap.Int("issues", len(issues)))
	return len(issues), nil
}

// Search returns issues whose title or body contains the query tokens as a phrase.
func (i *Index) Search(ctx context.Context, query string) ([]archive.SearchHit, error) {
	phrase := search.NormalizeQuery(query)
	if phrase == "" {
		return []archive.SearchHit{}, nil
	}
	titleIDs, err := i.matchField(ctx, fieldTitle, phrase)
	if err != nil {
		return nil, err
	}
	bodyIDs, err := i.matchField(ctx, fieldBody, phrase)
	if err != nil {
		return nil, err
	}

	titleMatch := make(map[string]bool, len(titleIDs)+len(bodyIDs))
	order := make([]string, 0, len(titleIDs)+len(bodyIDs))
	for _, id := range titleIDs {
		titleMatch[id] = true
		order = append(order, id)
	}
	for _, id := range bodyIDs {
		if _, seen := titleMatch[id]; !seen {
			titleMatch[id] = false
			order = append(order, id)
		}
	}

	hits := make([]archive.SearchHit, 0, len(order))
	for _, id := range order {
		issue, err := i.issues.Get(ctx, id)
		if errors.Is(err, archive.ErrNotFound) {
			i.logger.Warn("Index entry without issue row", zap.String("id", id))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load issue %s: %w", id, err)
		}
		hits = append(hits, archive.SearchHit{Issue: issue, TitleMatch: titleMatch[id]})
	}
	search.Sort(hits)
	return hits, nil
}

func (i *Index) matchField(ctx context.Context, field, phrase string) ([]string, error) {
	count, err := i.index.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	q := bleve.NewMatchPhraseQuery(phrase)
	q.SetField(field)
	q.Analyzer = analyzerName
	req := bleve.NewSearchRequestOptions(q, int(count), 0, false)
	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", field, err)
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
