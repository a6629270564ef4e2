package clip

import (
	"encoding/base64"
	"time"
)

// DisplayEntry is the read-side join of a ledger entry with its (optional) image payload.
type DisplayEntry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
	Preview    string    `json:"preview"`
	Text       *string   `json:"text,omitempty"`
	PayloadRef *string   `json:"payload_ref,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`

	// Resolved is true when PayloadRef matched a stored image.
	Resolved bool `json:"resolved"`

	// Unavailable marks a ghost: an image entry whose payload could not be joined.
	Unavailable bool `json:"unavailable,omitempty"`

	// Payload fields, empty unless Resolved.
	PayloadSize int64  `json:"payload_size,omitempty"`
	PayloadMime string `json:"payload_mime,omitempty"`
	Size        string `json:"size,omitempty"`
	Bytes       []byte `json:"-"`
}

// DataURL returns the payload as a data: URL, or "" when no bytes are attached.
func (d *DisplayEntry) DataURL() string {
	if len(d.Bytes) == 0 {
		return ""
	}
	return "data:" + d.PayloadMime + ";base64," + base64.StdEncoding.EncodeToString(d.Bytes)
}
