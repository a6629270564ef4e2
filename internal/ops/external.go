package ops

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultExternalSyncInterval is how often WatchExternal checks for writes from other processes.
const DefaultExternalSyncInterval = time.Second

// SyncExternal publishes the current history if the ledger changed since this History
// last published, which happens when another process (a CLI copy, an MCP server) writes
// to the same database. It reports whether a snapshot was published.
func (h *History) SyncExternal(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	gen, err := h.ledger.Generation(ctx)
	if err != nil {
		return false, err
	}
	if gen == h.generation {
		return false, nil
	}
	h.refreshCountsLocked(ctx)
	h.publishLocked(ctx, ReasonExternal)
	return true, nil
}

// WatchExternal calls SyncExternal every interval until ctx is done.
func (h *History) WatchExternal(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultExternalSyncInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := h.SyncExternal(ctx); err != nil && ctx.Err() == nil {
				h.log.WithFields(logrus.Fields{"error": err}).Debug("external change check failed")
			}
		}
	}
}
