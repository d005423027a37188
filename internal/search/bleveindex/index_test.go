package bleveindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/storage/memory"
)

func seed(t *testing.T, store *memory.IssueStore, issues ...archive.Issue) {
	t.Helper()
	for _, issue := range issues {
		_, err := store.Upsert(context.Background(), issue)
		require.NoError(t, err)
	}
}

func TestSearchRanksTitleMatchesFirst(t *testing.T) {
	t.Parallel()

	store := memory.NewIssueStore()
	a := archive.Issue{
		ID:              "vegan-special-1990",
		Title:           "Vegan Special",
		PublicationDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	b := archive.Issue{
		ID:              "spring-1995",
		Title:           "Spring 1995",
		PublicationDate: time.Date(1995, 3, 21, 0, 0, 0, 0, time.UTC),
		ExtractedText:   "Essays on kosher Vegan ethics.",
	}
	c := archive.Issue{
		ID:              "winter-1994",
		Title:           "Winter 1994",
		PublicationDate: time.Date(1994, 12, 21, 0, 0, 0, 0, time.UTC),
		ExtractedText:   "Nothing relevant.",
	}
	seed(t, store, a, b, c)

	idx, err := Open("", store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	n, err := idx.Rebuild(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)

	hits, err := idx.Search(context.Background(), "VEGAN")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "vegan-special-1990", hits[0].Issue.ID)
	require.True(t, hits[0].TitleMatch)
	require.Equal(t, "spring-1995", hits[1].Issue.ID)

	hits, err = idx.Search(context.Background(), "kosher vegan")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	hits, err = idx.Search(context.Background(), " ")
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestRefreshReplacesDocument(t *testing.T) {
	t.Parallel()

	store := memory.NewIssueStore()
	issue := archive.Issue{ID: "fall-2001", Title: "Fall 2001", ExtractedText: "tofu recipes"}
	seed(t, store, issue)

	idx, err := Open("", store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	require.NoError(t, idx.Refresh(context.Background(), issue))
	hits, err := idx.Search(context.Background(), "tofu")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	issue.ExtractedText = "tempeh recipes"
	seed(t, store, issue)
	require.NoError(t, idx.Refresh(context.Background(), issue))

	hits, err = idx.Search(context.Background(), "tofu")
	require.NoError(t, err)
	require.Empty(t, hits)
	hits, err = idx.Search(context.Background(), "tempeh")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestOpenPersistsOnDisk(t *testing.T) {
	t.Parallel()

	path := t.TempDir() + "/issues.bleve"
	store := memory.NewIssueStore()
	issue := archive.Issue{ID: "summer-1999", Title: "Summer 1999", ExtractedText: "seitan"}
	seed(t, store, issue)

	idx, err := Open(path, store, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Refresh(context.Background(), issue))
	require.NoError(t, idx.Close())

	reopened, err := Open(path, store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	hits, err := reopened.Search(context.Background(), "seitan")
	require.NoError(t, err)
	require.Len(t, hits, 1)
}
