// Package query serves read operations over the issue store: listing, phrase
// search with highlighted snippets, and identifier lookup with fallbacks.
// Nothing here takes a lock, so queries run safely alongside ingestion.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/metrics"
	"github.com/JakeFAU/magazine-archive/internal/search"
)

// Lookup stages, reported to metrics.
const (
	StageExact = "exact"
	StageSlug  = "slug"
	StageFuzzy = "fuzzy"
	StageMiss  = "miss"
)

// Result is a search hit with its rendered snippet.
type Result struct {
	Issue   archive.Issue
	Snippet string
}

// Service implements List, Search and GetByIdentifier.
type Service struct {
	issues   archive.IssueStore
	searcher archive.Searcher
	radius   int
	logger   *zap.Logger
}

// New wires a Service. radius <= 0 uses search.DefaultRadius.
func New(issues archive.IssueStore, searcher archive.Searcher, radius int, logger *zap.Logger) (*Service, error) {
	if issues == nil || searcher == nil {
		return nil, fmt.Errorf("issue store and searcher are required")
	}
	if radius <= 0 {
		radius = search.DefaultRadius
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{issues: issues, searcher: searcher, radius: radius, logger: logger.Named("query")}, nil
}

// List returns every issue ordered by publication date desc, then title.
func (s *Service) List(ctx context.Context) ([]archive.Issue, error) {
	issues, err := s.issues.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	search.SortIssues(issues)
	return issues, nil
}

// Search returns issues matching q with a highlighted snippet each. A blank
// query returns an empty, non-nil slice.
func (s *Service) Search(ctx context.Context, q string) ([]Result, error) {
	results := make([]Result, 0)
	if search.NormalizeQuery(q) == "" {
		return results, nil
	}
	hits, err := s.searcher.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}
	search.Sort(hits)
	for _, hit := range hits {
		results = append(results, Result{
			Issue:   hit.Issue,
			Snippet: search.Snippet(hit.Issue.Title, hit.Issue.ExtractedText, q, s.radius),
		})
	}
	return results, nil
}

// GetByIdentifier resolves key by exact id, then canonical slug, then fuzzy
// alphanumeric containment. archive.ErrNotFound is returned when all fail.
func (s *Service) GetByIdentifier(ctx context.Context, key string) (archive.Issue, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		metrics.ObserveLookupStage(StageMiss)
		return archive.Issue{}, archive.ErrNotFound
	}

	issue, err := s.issues.Get(ctx, key)
	switch {
	case err == nil:
		metrics.ObserveLookupStage(StageExact)
		return issue, nil
	case !errors.Is(err, archive.ErrNotFound):
		return archive.Issue{}, fmt.Errorf("get issue %s: %w", key, err)
	}

	all, err := s.issues.List(ctx)
	if err != nil {
		return archive.Issue{}, fmt.Errorf("list issues: %w", err)
	}

	if issue, ok := matchSlug(key, all); ok {
		metrics.ObserveLookupStage(StageSlug)
		return issue, nil
	}
	if issue, ok := matchFuzzy(key, all); ok {
		metrics.ObserveLookupStage(StageFuzzy)
		s.logger.Debug("Resolved identifier by fuzzy match", zap.String("key", key), zap.String("id", issue.ID))
		return issue, nil
	}
	metrics.ObserveLookupStage(StageMiss)
	return archive.Issue{}, archive.ErrNotFound
}

// CanonicalSlug folds separator conventions so legacy identifiers compare
// equal: lower case, `_`, space and `.` become `-`, `-online-` segments are
// dropped and hyphen runs collapse.
func CanonicalSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '_', ' ', '.':
			return '-'
		}
		return r
	}, s)
	s = collapseHyphens(s)
	for strings.Contains(s, "-online-") {
		s = strings.ReplaceAll(s, "-online-", "-")
	}
	return strings.Trim(s, "-")
}

// Alphanumeric lower-cases s and drops everything but letters and digits.
func Alphanumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseHyphens(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prev := false
	for _, r := range s {
		if r == '-' {
			if prev {
				continue
			}
			prev = true
		} else {
			prev = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// matchSlug prefers an id already in canonical form, then the smallest id.
func matchSlug(key string, issues []archive.Issue) (archive.Issue, bool) {
	want := CanonicalSlug(key)
	if want == "" {
		return archive.Issue{}, false
	}
	var matches []archive.Issue
	for _, issue := range issues {
		if CanonicalSlug(issue.ID) == want {
			matches = append(matches, issue)
		}
	}
	if len(matches) == 0 {
		return archive.Issue{}, false
	}
	sort.SliceStable(matches, func(i, j int) bool {
		ci, cj := matches[i].ID == want, matches[j].ID == want
		if ci != cj {
			return ci
		}
		return matches[i].ID < matches[j].ID
	})
	return matches[0], true
}

// matchFuzzy accepts a stored id or title whose alphanumeric form contains, or
// is contained in, the key's. Ties go to the shortest normalized title, then
// the smallest id.
func matchFuzzy(key string, issues []archive.Issue) (archive.Issue, bool) {
	want := Alphanumeric(key)
	if want == "" {
		return archive.Issue{}, false
	}
	var (
		best      archive.Issue
		bestTitle string
		found     bool
	)
	for _, issue := range issues {
		id := Alphanumeric(issue.ID)
		title := Alphanumeric(issue.Title)
		if !overlaps(id, want) && !overlaps(title, want) {
			continue
		}
		if !found ||
			len(title) < len(bestTitle) ||
			(len(title) == len(bestTitle) && issue.ID < best.ID) {
			best, bestTitle, found = issue, title, true
		}
	}
	return best, found
}

func overlaps(stored, want string) bool {
	if stored == "" {
		return false
	}
	return strings.Contains(stored, want) || strings.Contains(want, stored)
}
