package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

func TestIssueStoreUpsertCreatesThenUpdates(t *testing.T) {
	t.Parallel()

	store := NewIssueStore()
	ctx := context.Background()
	issue := archive.Issue{ID: "spring-1995", Title: "Spring 1995", DocumentKey: "magazines/spring-1995.pdf"}

	created, err := store.Upsert(ctx, issue)
	require.NoError(t, err)
	require.True(t, created)
	first, err := store.Get(ctx, "spring-1995")
	require.NoError(t, err)

	issue.ExtractedText = "new text"
	created, err = store.Upsert(ctx, issue)
	require.NoError(t, err)
	require.False(t, created)

	got, err := store.Get(ctx, "spring-1995")
	require.NoError(t, err)
	require.Equal(t, "new text", got.ExtractedText)
	require.Equal(t, first.CreatedAt, got.CreatedAt)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestIssueStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewIssueStore().Get(context.Background(), "nope")
	require.ErrorIs(t, err, archive.ErrNotFound)
}

func TestIssueStoreSearchUsesIndexEntries(t *testing.T) {
	t.Parallel()

	store := NewIssueStore()
	ctx := context.Background()
	issue := archive.Issue{
		ID:              "spring-1995",
		Title:           "Spring 1995",
		PublicationDate: time.Date(1995, 3, 21, 0, 0, 0, 0, time.UTC),
		ExtractedText:   "kosher vegan ethics",
	}
	_, err := store.Upsert(ctx, issue)
	require.NoError(t, err)

	hits, err := store.Search(ctx, "vegan")
	require.NoError(t, err)
	require.Empty(t, hits, "rows are invisible to search until the index entry is refreshed")

	require.NoError(t, store.Refresh(ctx, issue))
	hits, err = store.Search(ctx, "VEGAN")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.False(t, hits[0].TitleMatch)

	issue.ExtractedText = "meat and potatoes"
	_, err = store.Upsert(ctx, issue)
	require.NoError(t, err)
	require.NoError(t, store.Refresh(ctx, issue))

	hits, err = store.Search(ctx, "vegan")
	require.NoError(t, err)
	require.Empty(t, hits, "stale content must not match after refresh")

	hits, err = store.Search(ctx, "")
	require.NoError(t, err)
	require.NotNil(t, hits)
	require.Empty(t, hits)
}

func TestIssueStoreUpdateKeepsKeyAndCover(t *testing.T) {
	t.Parallel()

	store := NewIssueStore()
	ctx := context.Background()
	cover := "https://cdn.example/covers/spring-1995.jpg"
	_, err := store.Upsert(ctx, archive.Issue{
		ID:            "spring-1995",
		Title:         "Spring 1995",
		DocumentKey:   "magazines/spring-1995.pdf",
		CoverImageURL: &cover,
	})
	require.NoError(t, err)

	created, err := store.Upsert(ctx, archive.Issue{
		ID:            "spring-1995",
		Title:         "Spring 1995 (revised)",
		DocumentKey:   "magazines/spring-1995.djvu",
		ExtractedText: "kosher vegan ethics",
	})
	require.NoError(t, err)
	require.False(t, created)

	got, err := store.Get(ctx, "spring-1995")
	require.NoError(t, err)
	require.Equal(t, "magazines/spring-1995.pdf", got.DocumentKey)
	require.NotNil(t, got.CoverImageURL)
	require.Equal(t, cover, *got.CoverImageURL)
	require.Equal(t, "Spring 1995 (revised)", got.Title)
	require.Equal(t, "kosher vegan ethics", got.ExtractedText)
}
