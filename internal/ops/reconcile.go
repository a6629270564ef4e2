package ops

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/ledger"
	"github.com/hpungsan/sideclip/internal/metrics"
)

// ReconcileOutput reports what one reconcile pass removed.
type ReconcileOutput struct {
	Trimmed int `json:"trimmed"`
	Orphans int `json:"orphans"`
	Evicted int `json:"evicted"`
}

// Reconcile brings both collections back under their caps and publishes if anything changed.
//
// Blob retention follows the ledger: payloads no entry references are pruned once they are
// older than the orphan grace window, then the blob store is hard-capped at MaxItems.
func (h *History) Reconcile(ctx context.Context) (*ReconcileOutput, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out, err := h.reconcileOnce(ctx)
	if err != nil {
		return nil, err
	}
	if out.Trimmed+out.Orphans+out.Evicted > 0 {
		h.publishLocked(ctx, ReasonReconcile)
	}
	return out, nil
}

// reconcileLocked runs after every capture. Failures are logged; the capture already succeeded.
func (h *History) reconcileLocked(ctx context.Context) {
	if _, err := h.reconcileOnce(ctx); err != nil {
		h.log.WithFields(logrus.Fields{"error": err}).Warn("reconcile failed")
	}
}

func (h *History) reconcileOnce(ctx context.Context) (*ReconcileOutput, error) {
	out := &ReconcileOutput{}

	trimmed, err := h.ledger.Trim(ctx)
	if err != nil {
		return nil, err
	}
	out.Trimmed = trimmed

	refs, err := h.ledger.PayloadRefs(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := h.now().Add(-h.cfg.OrphanGrace())
	orphans, err := h.blobs.PruneUnreferenced(ctx, refs, cutoff)
	if err != nil {
		return nil, err
	}
	out.Orphans = orphans

	maxItems := h.cfg.MaxItems
	if maxItems <= 0 {
		maxItems = ledger.DefaultMaxItems
	}
	evicted, err := h.blobs.EvictOldest(ctx, maxItems)
	if err != nil {
		return nil, err
	}
	out.Evicted = evicted

	h.metrics.AddEvictions(metrics.ReasonOrphan, orphans)
	h.metrics.AddEvictions(metrics.ReasonCap, evicted)
	h.refreshCountsLocked(ctx)

	if out.Trimmed+out.Orphans+out.Evicted > 0 {
		h.log.WithFields(logrus.Fields{
			"trimmed": out.Trimmed,
			"orphans": out.Orphans,
			"evicted": out.Evicted,
		}).Debug("reconciled")
	}
	return out, nil
}
