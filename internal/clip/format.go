package clip

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
)

// Ellipsis is appended to truncated previews.
const Ellipsis = "..."

// TextPreview truncates text to maxChars runes, appending Ellipsis when it was cut.
func TextPreview(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars]) + Ellipsis
}

// FormatSize renders a byte count as a human-readable IEC string ("1.5 KiB").
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

// ImagePreview is the preview string for an image entry.
func ImagePreview(sizeBytes int64) string {
	return fmt.Sprintf("Image (%s)", FormatSize(sizeBytes))
}

// IsBlank reports whether s has no visible content.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// DetectMime returns mimeType if set, otherwise sniffs it from data.
func DetectMime(data []byte, mimeType string) string {
	if mt := strings.TrimSpace(mimeType); mt != "" {
		return mt
	}
	mt := http.DetectContentType(data)
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// IsImageMime reports whether mimeType is an image/* type.
func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}

// NewID generates a ULID: millisecond timestamp prefix plus random suffix.
func NewID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
