package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/notify"
	"github.com/hpungsan/sideclip/internal/ops"
)

// defaultHeartbeat is how often an idle event stream sends a keep-alive comment.
const defaultHeartbeat = 25 * time.Second

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	history   *ops.History
	renderer  *Renderer
	log       *logrus.Logger
	heartbeat time.Duration

	done     chan struct{}
	doneOnce sync.Once
}

// NewHandlers creates handlers over history.
func NewHandlers(history *ops.History, renderer *Renderer, logger *logrus.Logger) *Handlers {
	return &Handlers{
		history:   history,
		renderer:  renderer,
		log:       logger,
		heartbeat: defaultHeartbeat,
		done:      make(chan struct{}),
	}
}

// closeStreams ends every open /events stream.
func (h *Handlers) closeStreams() {
	h.doneOnce.Do(func() { close(h.done) })
}

// HandleList handles GET /history, the side panel list, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := listInput(r)
	result, err := h.history.List(r.Context(), input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := ListPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
		},
		Items:    result.Items,
		Kind:     input.Kind,
		Total:    result.Total,
		MaxItems: h.history.Config().MaxItems,
	}

	// Live refresh swaps only the item list
	if r.Header.Get("HX-Target") == "history-list" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "history-items", data)
		return
	}

	h.renderer.renderPage(w, r, "list", data)
}

// HandleAPIHistory handles GET /api/history, the combined history as JSON.
func (h *Handlers) HandleAPIHistory(w http.ResponseWriter, r *http.Request) {
	result, err := h.history.List(r.Context(), listInput(r))
	if err != nil {
		h.renderer.renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// listInput reads the kind and limit query parameters.
func listInput(r *http.Request) ops.ListInput {
	return ops.ListInput{
		Kind:  r.URL.Query().Get("kind"),
		Limit: max(parseIntParam(r, "limit", 0), 0),
	}
}

// HandleDetail handles GET /history/{id}, a single entry with its full content.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	entry, err := h.history.Entry(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, entry)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   entry.Preview,
			Version: h.renderer.version,
		},
		Entry: entry,
	}
	if entry.Text != nil {
		data.RenderedHTML = renderMarkdown(*entry.Text)
		data.Chars = len([]rune(*entry.Text))
	}
	if entry.Resolved {
		// Payload mime types are validated as image/* at capture time.
		data.ImageURL = template.URL(entry.DataURL())
	}

	h.renderer.renderPage(w, r, "detail", data)
}

// HandleImage handles GET /images/{id}, the stored payload of an image entry.
func (h *Handlers) HandleImage(w http.ResponseWriter, r *http.Request) {
	rec, err := h.history.Image(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", rec.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(int64(len(rec.Bytes)), 10))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rec.Bytes)
}

// HandleDelete handles DELETE /history/{id}. Deleting an unknown id succeeds.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("entry ID is required"))
		return
	}

	result, err := h.history.DeleteEntry(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/history", http.StatusFound)
}

// HandleCopy handles POST /history/{id}/copy, writing a text entry to the server's clipboard.
func (h *Handlers) HandleCopy(w http.ResponseWriter, r *http.Request) {
	result, err := h.history.CopyToClipboard(r.Context(), r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<span class="copy-result">Copied</span>`))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleClear handles POST /history/clear, emptying both collections.
func (h *Handlers) HandleClear(w http.ResponseWriter, r *http.Request) {
	h.handleClear(w, r, h.history.ClearAll)
}

// HandleClearImages handles POST /history/clear-images, removing every image and its payload.
func (h *Handlers) HandleClearImages(w http.ResponseWriter, r *http.Request) {
	h.handleClear(w, r, h.history.ClearImagesOnly)
}

func (h *Handlers) handleClear(w http.ResponseWriter, r *http.Request, op func(context.Context) (*ops.ClearOutput, error)) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	result, err := op(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	// HTMX request: return HTML fragment
	if r.Header.Get("HX-Request") == "true" {
		msg := fmt.Sprintf("Removed %d entries and %d images", result.Entries, result.Images)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<div class="clear-result">` + template.HTMLEscapeString(msg) + `</div>`))
		return
	}

	// JSON request
	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	// Default: redirect
	http.Redirect(w, r, "/history", http.StatusFound)
}

// HandleEvents handles GET /events, a server-sent event stream of history snapshots.
// The current history is sent on connect, then one "history" event per change.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("streaming unsupported")))
		return
	}

	// Subscribe before reading the initial state so no change falls in between.
	sub := h.history.Subscribe()
	defer sub.Close()

	entries, err := h.history.CombinedHistory(r.Context(), ops.HistoryOptions{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, notify.Snapshot{Reason: "initial", Entries: entries}); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case snap, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				h.log.WithError(err).Debug("event stream write failed")
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one snapshot as a "history" server-sent event.
func writeEvent(w http.ResponseWriter, snap notify.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: history\ndata: %s\n\n", snap.Version, payload)
	return err
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
