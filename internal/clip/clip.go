package clip

import "time"

// Kind distinguishes text entries from image entries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// Entry is one lightweight row of the history ledger.
// Entries are created on capture and only ever removed, never edited in place.
type Entry struct {
	// ID is a ULID that uniquely identifies this entry
	ID string `json:"id"`

	// Seq is the ledger insertion counter; higher is newer. Ordering uses Seq, never CreatedAt.
	Seq int64 `json:"seq"`

	// Kind is text or image
	Kind Kind `json:"kind"`

	// CreatedAt is non-decreasing across insertions
	CreatedAt time.Time `json:"created_at"`

	// Preview is a short display string (truncated text, or "Image (12 KiB)")
	Preview string `json:"preview"`

	// PayloadRef points at an ImageRecord for image entries. Nil for text and for ghosts.
	PayloadRef *string `json:"payload_ref,omitempty"`

	// Text is the full captured string for text entries
	Text *string `json:"text,omitempty"`

	// SizeBytes is the captured image size, kept on the entry so ghosts can describe themselves
	SizeBytes int64 `json:"size_bytes,omitempty"`

	// MimeType is the captured image mime type
	MimeType string `json:"mime_type,omitempty"`

	// SourceURL is where an image was captured from (may be empty)
	SourceURL string `json:"source_url,omitempty"`
}

// IsGhost reports whether e is an image entry without a payload reference.
func (e *Entry) IsGhost() bool {
	return e.Kind == KindImage && e.PayloadRef == nil
}

// ImageRecord is a binary image payload held by the blob store.
type ImageRecord struct {
	ID        string    `json:"id"`
	Bytes     []byte    `json:"-"`
	SizeBytes int64     `json:"size_bytes"`
	MimeType  string    `json:"mime_type"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Predicate selects ledger entries, e.g. for Clear.
type Predicate func(Entry) bool

// All matches every entry.
func All(Entry) bool { return true }

// IsImage matches image entries.
func IsImage(e Entry) bool { return e.Kind == KindImage }

// IsText matches text entries.
func IsText(e Entry) bool { return e.Kind == KindText }
