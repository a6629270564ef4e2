package ops

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/metrics"
)

// CaptureOutput describes the entry a capture produced.
type CaptureOutput struct {
	Entry *clip.Entry `json:"entry"`

	// Ghost is true when the image payload could not be stored and the entry has no payload ref.
	Ghost bool `json:"ghost,omitempty"`

	// ImageID is the blob id of a stored image payload.
	ImageID string `json:"image_id,omitempty"`
}

// Capture dispatches a capture event by kind.
func (h *History) Capture(ctx context.Context, ev clip.Event) (*CaptureOutput, error) {
	switch ev.Kind {
	case clip.KindText:
		return h.CaptureText(ctx, ev.Text)
	case clip.KindImage:
		return h.CaptureImage(ctx, ev.Bytes, ev.MimeType, ev.SourceURL)
	default:
		return nil, errors.NewInvalidPayload(fmt.Sprintf("unknown capture kind: %q", ev.Kind))
	}
}

// CaptureText records copied text. Blank text returns EMPTY_INPUT and changes nothing.
func (h *History) CaptureText(ctx context.Context, text string) (*CaptureOutput, error) {
	start := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, err := h.ledger.RecordText(ctx, text)
	if err != nil {
		h.observeFailure(string(clip.KindText), err, start)
		return nil, err
	}

	h.reconcileLocked(ctx)
	h.publishLocked(ctx, ReasonCapture)
	h.metrics.ObserveCapture(string(clip.KindText), metrics.OutcomeRecorded, time.Since(start))
	h.log.WithFields(logrus.Fields{"id": entry.ID, "kind": entry.Kind, "chars": len([]rune(text))}).Debug("text captured")

	return &CaptureOutput{Entry: entry}, nil
}

// CaptureImage records a copied image in two explicit steps:
// the payload goes to the blob store first, then the ledger records an entry.
// A blob store failure never blocks the ledger write; the entry is recorded as a ghost instead.
func (h *History) CaptureImage(ctx context.Context, data []byte, mimeType, sourceURL string) (*CaptureOutput, error) {
	start := time.Now()
	kind := string(clip.KindImage)

	if err := h.validateImage(data, &mimeType); err != nil {
		h.observeFailure(kind, err, start)
		return nil, err
	}
	size := int64(len(data))

	h.mu.Lock()
	defer h.mu.Unlock()

	// Step 1: blob store, best-effort.
	var ref *string
	rec, err := h.blobs.Put(ctx, data, mimeType, sourceURL)
	if err != nil {
		h.log.WithFields(logrus.Fields{
			"size_bytes": size,
			"mime_type":  mimeType,
			"source_url": sourceURL,
			"error":      err,
		}).Warn("image payload not stored, recording ghost entry")
	} else {
		ref = &rec.ID
	}

	// Step 2: ledger, independent of step 1.
	entry, err := h.ledger.RecordImageWithMime(ctx, ref, size, mimeType, sourceURL)
	if err != nil {
		if rec != nil {
			// The payload would be an orphan; reconcile would prune it later anyway.
			_ = h.blobs.Delete(ctx, rec.ID)
		}
		h.observeFailure(kind, err, start)
		return nil, err
	}

	h.reconcileLocked(ctx)
	h.publishLocked(ctx, ReasonCapture)

	out := &CaptureOutput{Entry: entry, Ghost: ref == nil}
	outcome := metrics.OutcomeRecorded
	if out.Ghost {
		outcome = metrics.OutcomeGhost
	} else {
		out.ImageID = rec.ID
	}
	h.metrics.ObserveCapture(kind, outcome, time.Since(start))
	h.log.WithFields(logrus.Fields{"id": entry.ID, "kind": entry.Kind, "size_bytes": size, "ghost": out.Ghost}).Debug("image captured")

	return out, nil
}

// CaptureImageFile reads an image from an allowed path and captures it.
func (h *History) CaptureImageFile(ctx context.Context, path string) (*CaptureOutput, error) {
	data, err := ReadImageFile(path, h.cfg)
	if err != nil {
		h.observeFailure(string(clip.KindImage), err, time.Now())
		return nil, err
	}
	return h.CaptureImage(ctx, data, "", FileURL(path))
}

// validateImage rejects empty, oversized and non-image payloads, resolving an empty mime type by sniffing.
func (h *History) validateImage(data []byte, mimeType *string) error {
	if len(data) == 0 {
		return errors.NewInvalidPayload("image bytes are empty")
	}
	if limit := h.cfg.MaxImageBytes; limit > 0 && int64(len(data)) > limit {
		return errors.NewImageTooLarge(limit, int64(len(data)))
	}
	*mimeType = clip.DetectMime(data, *mimeType)
	if !clip.IsImageMime(*mimeType) {
		return errors.NewInvalidPayload(fmt.Sprintf("payload is not an image: %s", *mimeType))
	}
	return nil
}

// observeFailure logs and counts a capture that produced no entry.
// EMPTY_INPUT is a no-op, not a failure, and is only logged at debug.
func (h *History) observeFailure(kind string, err error, start time.Time) {
	fields := logrus.Fields{"kind": kind, "error": err}
	switch {
	case errors.Is(err, errors.ErrEmptyInput):
		h.metrics.ObserveCapture(kind, metrics.OutcomeEmpty, time.Since(start))
		h.log.WithFields(fields).Debug("empty capture ignored")
	case errors.Is(err, errors.ErrInvalidPayload), errors.Is(err, errors.ErrInvalidRequest), errors.Is(err, errors.ErrFileNotFound):
		h.metrics.ObserveCapture(kind, metrics.OutcomeInvalid, time.Since(start))
		h.log.WithFields(fields).Info("capture dropped")
	default:
		h.metrics.ObserveCapture(kind, metrics.OutcomeFailed, time.Since(start))
		h.log.WithFields(fields).Error("capture failed")
	}
}
