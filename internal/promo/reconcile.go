package promo

import (
	"context"

	"ticketing/internal/logger"
)

// ReconcileStore recomputes every promo's used_count from the count of
// non-cancelled tickets referencing it, returning how many rows changed.
type ReconcileStore interface {
	RecomputePromoUsage(ctx context.Context) (int64, error)
}

// Reconciler is a supplementary safety net against counter drift. The
// counter itself is maintained transactionally; this sweep only repairs
// damage from out-of-band writes.
type Reconciler struct {
	store ReconcileStore
	log   *logger.Logger
}

func NewReconciler(store ReconcileStore, log *logger.Logger) *Reconciler {
	return &Reconciler{store: store, log: log}
}

func (r *Reconciler) Run(ctx context.Context) error {
	changed, err := r.store.RecomputePromoUsage(ctx)
	if err != nil {
		r.log.Error("PROMO", "usage reconciliation failed: "+err.Error())
		return err
	}
	if changed > 0 {
		r.log.Warn("PROMO", "usage reconciliation corrected drifted counters")
	}
	return nil
}
