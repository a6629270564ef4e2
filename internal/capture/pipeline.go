// Package capture turns clipboard activity into capture events and feeds them to the history store.
package capture

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/sideclip/internal/clip"
	"github.com/hpungsan/sideclip/internal/errors"
	"github.com/hpungsan/sideclip/internal/ops"
)

// Capturer stores one capture event. *ops.History implements it.
type Capturer interface {
	Capture(ctx context.Context, ev clip.Event) (*ops.CaptureOutput, error)
}

// Source produces capture events until ctx is done.
type Source interface {
	Run(ctx context.Context, out chan<- clip.Event) error
}

// Pipeline processes events strictly one at a time, in arrival order.
type Pipeline struct {
	target Capturer
	log    *logrus.Logger
}

// NewPipeline returns a pipeline writing to target.
func NewPipeline(target Capturer, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{target: target, log: logger}
}

// Run consumes events until the channel closes or ctx is done.
// A failed capture never stops the loop.
func (p *Pipeline) Run(ctx context.Context, events <-chan clip.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle processes a single event and reports whether an entry was recorded.
func (p *Pipeline) Handle(ctx context.Context, ev clip.Event) bool {
	out, err := p.target.Capture(ctx, ev)
	if err != nil {
		if !errors.Is(err, errors.ErrEmptyInput) {
			p.log.WithFields(logrus.Fields{"kind": ev.Kind, "error": err}).Debug("capture event not recorded")
		}
		return false
	}
	p.log.WithFields(logrus.Fields{"kind": ev.Kind, "id": out.Entry.ID, "ghost": out.Ghost}).Info("captured")
	return true
}

// RunSources runs every source into one channel drained by the pipeline.
// A failing source is logged and the others keep running; it returns when ctx is done.
func RunSources(ctx context.Context, p *Pipeline, sources ...Source) error {
	events := make(chan clip.Event, 16)
	g, gctx := errgroup.WithContext(ctx)

	for _, src := range sources {
		g.Go(func() error {
			if err := src.Run(gctx, events); err != nil && gctx.Err() == nil {
				p.log.WithFields(logrus.Fields{"source": fmt.Sprintf("%T", src), "error": err}).Error("capture source stopped")
			}
			return nil
		})
	}
	g.Go(func() error {
		return p.Run(gctx, events)
	})

	err := g.Wait()
	if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// send delivers ev unless ctx finishes first.
func send(ctx context.Context, out chan<- clip.Event, ev clip.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
