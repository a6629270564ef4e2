package ops

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/metrics"
)

const (
	defaultDownloadTimeout = 30 * time.Second
	maxDownloadRedirects   = 5
	downloadUserAgent      = "sideclip"
)

// newDownloadClient returns a client bounded by timeout with a short redirect chain.
func newDownloadClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxDownloadRedirects {
				return fmt.Errorf("stopped after %d redirects", maxDownloadRedirects)
			}
			return nil
		},
	}
}

// CaptureImageURL downloads an image and captures it with the URL as its source.
//
// A failed download still records an entry: a ghost carrying the URL, the same
// degraded form as a blob store failure. Payloads that arrive but are not acceptable
// images (too large, wrong type) are dropped with INVALID_PAYLOAD.
func (h *History) CaptureImageURL(ctx context.Context, rawURL string) (*CaptureOutput, error) {
	start := time.Now()
	kind := string(clip.KindImage)

	src, err := ValidateImageURL(rawURL)
	if err != nil {
		h.observeFailure(kind, err, start)
		return nil, err
	}

	data, mimeType, err := h.download(ctx, src)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidPayload) {
			h.observeFailure(kind, err, start)
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, errors.NewInternal(ctx.Err())
		}
		return h.recordGhost(ctx, src, err, start)
	}
	return h.CaptureImage(ctx, data, mimeType, src)
}

// ValidateImageURL accepts absolute http and https URLs and returns them normalized.
func ValidateImageURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.NewInvalidRequest("url is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid url: %v", err))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", errors.NewInvalidRequest("url must use http or https")
	}
	if u.Host == "" {
		return "", errors.NewInvalidRequest("url must include a host")
	}
	return u.String(), nil
}

// download fetches src, reading at most MaxImageBytes. It returns the body and the
// response media type.
func (h *History) download(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", downloadUserAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	limit := h.cfg.MaxImageBytes
	if limit > 0 && resp.ContentLength > limit {
		return nil, "", errors.NewImageTooLarge(limit, resp.ContentLength)
	}

	body := io.Reader(resp.Body)
	if limit > 0 {
		body = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, "", errors.NewImageTooLarge(limit, int64(len(data)))
	}

	// Only an image/* header is trusted; anything else is sniffed from the bytes.
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !clip.IsImageMime(mediaType) {
		mediaType = ""
	}
	return data, mediaType, nil
}

// recordGhost records an image entry with no payload for a capture whose bytes never arrived.
func (h *History) recordGhost(ctx context.Context, sourceURL string, cause error, start time.Time) (*CaptureOutput, error) {
	kind := string(clip.KindImage)

	h.mu.Lock()
	defer h.mu.Unlock()

	entry, err := h.ledger.RecordImageWithMime(ctx, nil, 0, "", sourceURL)
	if err != nil {
		h.observeFailure(kind, err, start)
		return nil, err
	}

	h.reconcileLocked(ctx)
	h.publishLocked(ctx, ReasonCapture)
	h.metrics.ObserveCapture(kind, metrics.OutcomeGhost, time.Since(start))
	h.log.WithFields(logrus.Fields{
		"id":         entry.ID,
		"source_url": sourceURL,
		"error":      cause,
	}).Warn("image download failed, recording ghost entry")

	return &CaptureOutput{Entry: entry, Ghost: true}, nil
}
