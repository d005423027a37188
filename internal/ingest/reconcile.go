package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/magazine-archive/internal/archive"
)

// Reconciler checks stored issues against object storage. It needs only the
// two stores, so it runs without an archive page configured.
type Reconciler struct {
	issues  archive.IssueStore
	objects archive.ObjectStore
	logger  *zap.Logger
}

// NewReconciler returns a Reconciler over issues and objects.
func NewReconciler(issues archive.IssueStore, objects archive.ObjectStore, logger *zap.Logger) (*Reconciler, error) {
	if issues == nil || objects == nil {
		return nil, fmt.Errorf("issue store and object store are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{issues: issues, objects: objects, logger: logger.Named("reconcile")}, nil
}

// Reconcile checks that every stored issue has its document in object
// storage. Missing objects are reported, never repaired or deleted.
func (r *Reconciler) Reconcile(ctx context.Context) (archive.ReconcileReport, error) {
	report := archive.ReconcileReport{Missing: []archive.MissingObject{}}
	issues, err := r.issues.List(ctx)
	if err != nil {
		return report, fmt.Errorf("list issues: %w", err)
	}
	for _, issue := range issues {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("reconcile canceled: %w", err)
		}
		ok, err := r.objects.Exists(ctx, issue.DocumentKey)
		if err != nil {
			return report, fmt.Errorf("check object %s: %w", issue.DocumentKey, err)
		}
		report.Checked++
		if !ok {
			r.logger.Warn("Issue row has no stored document",
				zap.String("id", issue.ID),
				zap.String("key", issue.DocumentKey),
			)
			report.Missing = append(report.Missing, archive.MissingObject{
				IssueID:     issue.ID,
				DocumentKey: issue.DocumentKey,
			})
		}
	}
	r.logger.Info("Reconciliation finished",
		zap.Int("checked", report.Checked),
		zap.Int("missing", len(report.Missing)),
	)
	return report, nil
}

// Reconcile runs a reconciliation scan over the orchestrator's stores.
func (o *Orchestrator) Reconcile(ctx context.Context) (archive.ReconcileReport, error) {
	r, err := NewReconciler(o.deps.Issues, o.deps.Objects, o.logger)
	if err != nil {
		return archive.ReconcileReport{}, err
	}
	return r.Reconcile(ctx)
}
