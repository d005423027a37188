package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/magazine-archive/internal/archive"
	"github.com/JakeFAU/magazine-archive/internal/storage/memory"
)

func TestReconcilerNeedsOnlyStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	issues := memory.NewIssueStore()
	objects := memory.NewBlobStore()

	for _, id := range []string{"spring-1995", "fall-1995"} {
		key := "magazines/" + id + ".pdf"
		_, err := issues.Upsert(ctx, archive.Issue{ID: id, Title: id, DocumentKey: key})
		require.NoError(t, err)
	}
	require.NoError(t, objects.Put(ctx, "magazines/spring-1995.pdf", "application/pdf", []byte("%PDF-1.4")))

	r, err := NewReconciler(issues, objects, nil)
	require.NoError(t, err)

	report, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.Checked)
	require.Equal(t, []archive.MissingObject{{IssueID: "fall-1995", DocumentKey: "magazines/fall-1995.pdf"}}, report.Missing)
}

func TestReconcilerStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	issues := memory.NewIssueStore()
	_, err := issues.Upsert(context.Background(), archive.Issue{ID: "spring-1995", DocumentKey: "magazines/spring-1995.pdf"})
	require.NoError(t, err)

	r, err := NewReconciler(issues, memory.NewBlobStore(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Reconcile(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewReconcilerRequiresStores(t *testing.T) {
	t.Parallel()

	_, err := NewReconciler(nil, memory.NewBlobStore(), nil)
	require.Error(t, err)
	_, err = NewReconciler(memory.NewIssueStore(), nil, nil)
	require.Error(t, err)
}
