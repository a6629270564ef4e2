// Package mergeview joins ledger entries with blob payloads into the display sequence.
package mergeview

import (
	"context"

	"github.com/hpungsan/sideclip/internal/clip"
)

// Combine projects entries onto display entries in ledger order.
// Image entries whose ref does not resolve against images are kept and marked Unavailable.
func Combine(entries []clip.Entry, images []clip.ImageRecord) []clip.DisplayEntry {
	byID := make(map[string]*clip.ImageRecord, len(images))
	for i := range images {
		byID[images[i].ID] = &images[i]
	}

	out := make([]clip.DisplayEntry, 0, len(entries))
	for _, e := range entries {
		d := clip.DisplayEntry{
			ID:         e.ID,
			Kind:       e.Kind,
			CreatedAt:  e.CreatedAt,
			Preview:    e.Preview,
			Text:       e.Text,
			PayloadRef: e.PayloadRef,
			SourceURL:  e.SourceURL,
		}

		if e.Kind == clip.KindImage {
			var rec *clip.ImageRecord
			if e.PayloadRef != nil {
				rec = byID[*e.PayloadRef]
			}
			if rec != nil {
				d.Resolved = true
				d.PayloadSize = rec.SizeBytes
				d.PayloadMime = rec.MimeType
				d.Size = clip.FormatSize(rec.SizeBytes)
				d.Bytes = rec.Bytes
				if d.SourceURL == "" {
					d.SourceURL = rec.SourceURL
				}
			} else {
				d.Unavailable = true
			}
		}

		out = append(out, d)
	}
	return out
}

// EntrySource is the ledger side of the join.
type EntrySource interface {
	GetAll(ctx context.Context) ([]clip.Entry, error)
}

// ImageSource is the blob side of the join.
type ImageSource interface {
	GetAll(ctx context.Context) ([]clip.ImageRecord, error)
	GetAllMeta(ctx context.Context) ([]clip.ImageRecord, error)
}

// Options controls what CombinedHistory loads.
type Options struct {
	// WithBytes attaches image payloads; otherwise only metadata is joined.
	WithBytes bool
}

// View reads both collections and combines them. It holds no state between calls.
type View struct {
	entries EntrySource
	images  ImageSource
}

// New returns a View over entries and images.
func New(entries EntrySource, images ImageSource) *View {
	return &View{entries: entries, images: images}
}

// CombinedHistory returns the current merged sequence.
func (v *View) CombinedHistory(ctx context.Context, opts Options) ([]clip.DisplayEntry, error) {
	entries, err := v.entries.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var images []clip.ImageRecord
	if opts.WithBytes {
		images, err = v.images.GetAll(ctx)
	} else {
		images, err = v.images.GetAllMeta(ctx)
	}
	if err != nil {
		return nil, err
	}

	return Combine(entries, images), nil
}
