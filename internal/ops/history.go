package ops

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/mergeview"
)

// HistoryOptions controls CombinedHistory.
type HistoryOptions = mergeview.Options

// CombinedHistory returns ledger entries joined with their image payloads, newest first.
func (h *History) CombinedHistory(ctx context.Context, opts HistoryOptions) ([]clip.DisplayEntry, error) {
	return h.view.CombinedHistory(ctx, opts)
}

// ListInput filters List. Zero values mean every kind and no limit.
type ListInput struct {
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ListOutput is one page of the combined history.
type ListOutput struct {
	Items []clip.DisplayEntry `json:"items"`
	Total int                 `json:"total"`
}

// List returns the metadata-only combined history, optionally filtered by kind.
// Total counts matching entries before the limit is applied.
func (h *History) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	if input.Kind != "" && !clip.Kind(input.Kind).Valid() {
		return nil, errors.NewInvalidRequest("kind must be text or image")
	}
	if input.Limit < 0 {
		return nil, errors.NewInvalidRequest("limit must be >= 0")
	}

	entries, err := h.view.CombinedHistory(ctx, mergeview.Options{})
	if err != nil {
		return nil, err
	}

	items := make([]clip.DisplayEntry, 0, len(entries))
	for _, e := range entries {
		if input.Kind == "" || string(e.Kind) == input.Kind {
			items = append(items, e)
		}
	}
	total := len(items)
	if input.Limit > 0 && input.Limit < len(items) {
		items = items[:input.Limit]
	}
	return &ListOutput{Items: items, Total: total}, nil
}

// Entry returns the display form of one entry, with its image bytes when available.
func (h *History) Entry(ctx context.Context, id string) (*clip.DisplayEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	entry, err := h.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var images []clip.ImageRecord
	if entry.PayloadRef != nil {
		rec, err := h.blobs.Get(ctx, *entry.PayloadRef)
		switch {
		case err == nil:
			images = append(images, *rec)
		case errors.Is(err, errors.ErrNotFound):
			// Dangling reference; rendered as unavailable.
		default:
			return nil, err
		}
	}

	d := mergeview.Combine([]clip.Entry{*entry}, images)[0]
	return &d, nil
}

// Image returns the stored payload for an image entry.
// Text entries and ghosts return NOT_FOUND.
func (h *History) Image(ctx context.Context, entryID string) (*clip.ImageRecord, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	entry, err := h.ledger.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Kind != clip.KindImage || entry.PayloadRef == nil {
		return nil, errors.NewNotFound(entryID)
	}
	rec, err := h.blobs.Get(ctx, *entry.PayloadRef)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewNotFound(entryID)
		}
		return nil, err
	}
	return rec, nil
}

// DeleteOutput reports what DeleteEntry removed.
type DeleteOutput struct {
	ID           string `json:"id"`
	Deleted      bool   `json:"deleted"`
	ImageDeleted bool   `json:"image_deleted,omitempty"`
}

// DeleteEntry removes one ledger entry and then, best-effort, its image payload.
// Deleting an absent id is not an error.
func (h *History) DeleteEntry(ctx context.Context, id string) (*DeleteOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	removed, err := h.ledger.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &DeleteOutput{ID: id, Deleted: removed != nil}
	if removed == nil {
		return out, nil
	}

	if removed.PayloadRef != nil {
		if err := h.blobs.Delete(ctx, *removed.PayloadRef); err != nil {
			// The orphaned payload is pruned by the next reconcile.
			h.log.WithFields(logrus.Fields{"id": id, "image_id": *removed.PayloadRef, "error": err}).Warn("image payload not deleted")
		} else {
			out.ImageDeleted = true
		}
	}

	h.refreshCountsLocked(ctx)
	h.publishLocked(ctx, ReasonDelete)
	h.log.WithFields(logrus.Fields{"id": id, "kind": removed.Kind}).Info("entry deleted")
	return out, nil
}

// ClearOutput reports what a clear operation removed.
type ClearOutput struct {
	Entries int `json:"entries"`
	Images  int `json:"images"`
}

// ClearAll empties both the ledger and the blob store.
func (h *History) ClearAll(ctx context.Context) (*ClearOutput, error) {
	return h.clear(ctx, clip.All, ReasonClearAll)
}

// ClearImagesOnly removes every image entry and every image payload. Text entries stay.
func (h *History) ClearImagesOnly(ctx context.Context) (*ClearOutput, error) {
	return h.clear(ctx, clip.IsImage, ReasonClearImages)
}

func (h *History) clear(ctx context.Context, pred clip.Predicate, reason string) (*ClearOutput, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	images, err := h.blobs.Count(ctx)
	if err != nil {
		return nil, err
	}
	n, err := h.ledger.Clear(ctx, pred)
	if err != nil {
		return nil, err
	}
	// Text entries never reference payloads, so both clears empty the blob store.
	if err := h.blobs.Clear(ctx); err != nil {
		h.publishLocked(ctx, reason)
		return nil, err
	}

	h.refreshCountsLocked(ctx)
	h.publishLocked(ctx, reason)
	h.log.WithFields(logrus.Fields{"reason": reason, "entries": n, "images": images}).Info("history cleared")
	return &ClearOutput{Entries: n, Images: images}, nil
}
