package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/search"
)

type indexEntry struct {
	title string
	body  string
}

// IssueStore keeps issue rows and their search entries in maps. Rows and index
// entries are updated separately, mirroring the relational backend.
type IssueStore struct {
	mu     sync.RWMutex
	issues map[string]archive.Issue
	index  map[string]indexEntry
	now    func() time.Time
}

// NewIssueStore creates an empty store.
func NewIssueStore() *IssueStore {
	return &IssueStore{
		issues: make(map[string]archive.Issue),
		index:  make(map[string]indexEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upsert inserts the issue or updates its mutable fields. The document key,
// cover image and creation time of an existing row are kept.
func (s *IssueStore) Upsert(_ context.Context, issue archive.Issue) (bool, error) {
	if strings.TrimSpace(issue.ID) == "" {
		return false, fmt.Errorf("issue id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.issues[issue.ID]
	if ok {
		issue.DocumentKey = existing.DocumentKey
		issue.CoverImageURL = existing.CoverImageURL
		issue.CreatedAt = existing.CreatedAt
	} else {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	s.issues[issue.ID] = cloneIssue(issue)
	return !ok, nil
}

// Get returns the issue with id or archive.ErrNotFound.
func (s *IssueStore) Get(_ context.Context, id string) (archive.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[id]
	if !ok {
		return archive.Issue{}, archive.ErrNotFound
	}
	return cloneIssue(issue), nil
}

// List returns every issue, newest first.
func (s *IssueStore) List(_ context.Context) ([]archive.Issue, error) {
	s.mu.RLock()
	out := make([]archive.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		out = append(out, cloneIssue(issue))
	}
	s.mu.RUnlock()
	search.SortIssues(out)
	return out, nil
}

// Refresh replaces the search entry for issue.
func (s *IssueStore) Refresh(_ context.Context, issue archive.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index[issue.ID] = indexEntry{
		title: search.NormalizeText(issue.Title),
		body:  search.NormalizeText(issue.ExtractedText),
	}
	return nil
}

// Search matches the query phrase against index entries.
func (s *IssueStore) Search(_ context.Context, query string) ([]archive.SearchHit, error) {
	phrase := search.NormalizeQuery(query)
	if phrase == "" {
		return []archive.SearchHit{}, nil
	}
	s.mu.RLock()
	hits := make([]archive.SearchHit, 0)
	for id, entry := range s.index {
		titleMatch := strings.Contains(entry.title, phrase)
		if !titleMatch && !strings.Contains(entry.body, phrase) {
			continue
		}
		issue, ok := s.issues[id]
		if !ok {
			continue
		}
		hits = append(hits, archive.SearchHit{Issue: cloneIssue(issue), TitleMatch: titleMatch})
	}
	s.mu.RUnlock()
	search.Sort(hits)
	return hits, nil
}

// Ping always succeeds.
func (s *IssueStore) Ping(context.Context) error {
	return nil
}

func cloneIssue(issue archive.Issue) archive.Issue {
	if issue.CoverImageURL != nil {
		cover := *issue.CoverImageURL
		issue.CoverImageURL = &cover
	}
	return issue
}
