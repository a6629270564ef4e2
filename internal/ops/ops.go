// Package ops implements the history store operations shared by the CLI, MCP server, web UI and capture pipeline.
package ops

import (
	"context"
	"database/sql"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/blobstore"
	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/config"
	"github.com/hpungsan/sideclip/internal/ledger"
	"github.com/hpungsan/sideclip/internal/mergeview"
	"github.com/hpungsan/sideclip/internal/metrics"
	"github.com/hpungsan/sideclip/internal/notify"
)

// Notification reasons.
const (
	ReasonCapture     = "capture"
	ReasonDelete      = "delete"
	ReasonClearAll    = "clear_all"
	ReasonClearImages = "clear_images"
	ReasonReconcile   = "reconcile"
	ReasonExternal    = "external"
)

// BlobStore is the image payload collection.
type BlobStore interface {
	Put(ctx context.Context, data []byte, mimeType, sourceURL string) (*clip.ImageRecord, error)
	GetAll(ctx context.Context) ([]clip.ImageRecord, error)
	GetAllMeta(ctx context.Context) ([]clip.ImageRecord, error)
	Get(ctx context.Context, id string) (*clip.ImageRecord, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	EvictOldest(ctx context.Context, maxItems int) (int, error)
	PruneUnreferenced(ctx context.Context, referenced map[string]bool, olderThan time.Time) (int, error)
}

// Ledger is the ordered entry collection.
type Ledger interface {
	RecordText(ctx context.Context, text string) (*clip.Entry, error)
	RecordImageWithMime(ctx context.Context, payloadRef *string, sizeBytes int64, mimeType, sourceURL string) (*clip.Entry, error)
	Remove(ctx context.Context, id string) (*clip.Entry, error)
	Clear(ctx context.Context, pred clip.Predicate) (int, error)
	GetAll(ctx context.Context) ([]clip.Entry, error)
	Get(ctx context.Context, id string) (*clip.Entry, error)
	Count(ctx context.Context) (int, error)
	PayloadRefs(ctx context.Context) (map[string]bool, error)
	Trim(ctx context.Context) (int, error)
	Generation(ctx context.Context) (int64, error)
}

// Options carries the optional collaborators of a History.
type Options struct {
	Config  *config.Config
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	Broker  *notify.Broker
	Now     func() time.Time

	// ClipboardWriter replaces the system clipboard for CopyToClipboard.
	ClipboardWriter func(text string) error

	// HTTPClient downloads images for CaptureImageURL.
	// Defaults to a client bounded by the configured download timeout.
	HTTPClient *http.Client
}

// History owns the blob store, the ledger and the change broker.
// All mutations are serialized; reads go straight to storage.
type History struct {
	mu      sync.Mutex
	blobs   BlobStore
	ledger  Ledger
	view    *mergeview.View
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Metrics
	broker  *notify.Broker
	now     func() time.Time

	writeClipboard func(string) error
	httpClient     *http.Client

	// generation is the ledger generation last published by this process.
	generation int64
}

// NewHistory wires a History from its parts. Missing options get defaults.
func NewHistory(blobs BlobStore, led Ledger, opts Options) *History {
	h := &History{
		blobs:   blobs,
		ledger:  led,
		view:    mergeview.New(led, blobs),
		cfg:     opts.Config,
		log:     opts.Logger,
		metrics: opts.Metrics,
		broker:  opts.Broker,
		now:     opts.Now,

		writeClipboard: opts.ClipboardWriter,
		httpClient:     opts.HTTPClient,
	}
	if h.cfg == nil {
		h.cfg = config.DefaultConfig()
	}
	if h.log == nil {
		h.log = logrus.StandardLogger()
	}
	if h.broker == nil {
		h.broker = notify.NewBroker()
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.writeClipboard == nil {
		h.writeClipboard = writeSystemClipboard
	}
	if h.httpClient == nil {
		h.httpClient = newDownloadClient(h.cfg.DownloadTimeout())
	}
	return h
}

// Open builds a History over an initialized database using the SQLite-backed stores.
func Open(database *sql.DB, opts Options) *History {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		opts.Config = cfg
	}
	blobs := blobstore.New(database)
	led := ledger.New(database,
		ledger.WithMaxItems(cfg.MaxItems),
		ledger.WithPreviewChars(cfg.PreviewChars),
	)
	return NewHistory(blobs, led, opts)
}

// Config returns the effective configuration.
func (h *History) Config() *config.Config {
	return h.cfg
}

// Subscribe attaches a listener that receives the full ordered history after every mutation.
func (h *History) Subscribe() *notify.Subscription {
	return h.broker.Subscribe()
}

// Close ends all subscriptions. The underlying database is owned by the caller.
func (h *History) Close() {
	h.broker.Close()
}

// publishLocked pushes the current metadata-only view to subscribers.
func (h *History) publishLocked(ctx context.Context, reason string) {
	entries, err := h.view.CombinedHistory(ctx, mergeview.Options{})
	if err != nil {
		h.log.WithFields(logrus.Fields{"reason": reason, "error": err}).Warn("change notification skipped")
		return
	}
	if gen, err := h.ledger.Generation(ctx); err == nil {
		h.generation = gen
	}
	version := h.broker.Publish(reason, entries)
	h.metrics.IncNotifications()
	h.log.WithFields(logrus.Fields{"reason": reason, "version": version, "entries": len(entries)}).Debug("history changed")
}

// refreshCountsLocked updates the size gauges. Errors only cost accuracy of the gauges.
func (h *History) refreshCountsLocked(ctx context.Context) {
	if h.metrics == nil {
		return
	}
	entries, err := h.ledger.Count(ctx)
	if err != nil {
		return
	}
	blobs, err := h.blobs.Count(ctx)
	if err != nil {
		return
	}
	h.metrics.SetCounts(entries, blobs)
}
