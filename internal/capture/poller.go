package capture

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/clip"
)

// DefaultPollInterval is used when the configured interval is not positive.
const DefaultPollInterval = 500 * time.Millisecond

// ClipboardPoller emits a text event whenever the system clipboard changes.
type ClipboardPoller struct {
	read     func() (string, error)
	interval time.Duration
	log      *logrus.Logger
	native   bool
}

// PollerOption configures a ClipboardPoller.
type PollerOption func(*ClipboardPoller)

// WithReader replaces the system clipboard reader.
func WithReader(fn func() (string, error)) PollerOption {
	return func(p *ClipboardPoller) {
		p.read = fn
		p.native = false
	}
}

// NewClipboardPoller returns a poller reading the system clipboard every interval.
func NewClipboardPoller(interval time.Duration, logger *logrus.Logger, opts ...PollerOption) *ClipboardPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	p := &ClipboardPoller{
		read:     clipboard.ReadAll,
		interval: interval,
		log:      logger,
		native:   true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether the poller can read a clipboard on this machine.
func (p *ClipboardPoller) Available() bool {
	return !p.native || !clipboard.Unsupported
}

// Run polls until ctx is done. Content present at startup is not captured.
// Without a usable clipboard it logs a warning and returns nil so other sources keep running.
func (p *ClipboardPoller) Run(ctx context.Context, out chan<- clip.Event) error {
	if !p.Available() {
		p.log.Warn("system clipboard is not supported on this platform, clipboard capture disabled")
		return nil
	}

	last, err := p.read()
	if err != nil {
		p.log.WithFields(logrus.Fields{"error": err}).Debug("initial clipboard read failed")
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			text, err := p.read()
			if err != nil {
				p.log.WithFields(logrus.Fields{"error": err}).Debug("clipboard read failed")
				continue
			}
			if text == last {
				continue
			}
			last = text
			if clip.IsBlank(text) {
				continue
			}
			if !send(ctx, out, clip.TextEvent(text)) {
				return nil
			}
		}
	}
}
