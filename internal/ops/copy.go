package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/errors"
)

// CopyOutput describes an entry placed back on the system clipboard.
type CopyOutput struct {
	ID    string    `json:"id"`
	Kind  clip.Kind `json:"kind"`
	Chars int       `json:"chars"`
}

// CopyToClipboard writes a text entry back to the system clipboard.
// Image entries return INVALID_REQUEST: the system clipboard only carries text here.
func (h *History) CopyToClipboard(ctx context.Context, id string) (*CopyOutput, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	entry, err := h.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Kind != clip.KindText || entry.Text == nil {
		return nil, errors.NewInvalidRequest("image entries cannot be copied to the system clipboard; save the image instead")
	}

	if err := h.writeClipboard(*entry.Text); err != nil {
		if errors.As(err).Code != errors.ErrInternal {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("clipboard write: %w", err))
	}

	chars := len([]rune(*entry.Text))
	h.log.WithFields(logrus.Fields{"id": id, "chars": chars}).Debug("copied to clipboard")
	return &CopyOutput{ID: id, Kind: entry.Kind, Chars: chars}, nil
}

// writeSystemClipboard writes text with the platform clipboard tools.
func writeSystemClipboard(text string) error {
	if clipboard.Unsupported {
		return errors.NewInvalidRequest("system clipboard is not supported on this platform")
	}
	return clipboard.WriteAll(text)
}
