// Package sweep runs the periodic reconcile job for long-running modes.
package sweep

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/sideclip/internal/ops"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 5 * time.Minute

// JobName identifies the reconcile job in the scheduler.
const JobName = "history-reconcile"

// Reconciler is satisfied by *ops.History.
type Reconciler interface {
	Reconcile(ctx context.Context) (*ops.ReconcileOutput, error)
}

// Sweeper schedules Reconcile on a fixed interval.
type Sweeper struct {
	scheduler gocron.Scheduler
	target    Reconciler
	interval  time.Duration
	log       *logrus.Logger
	job       gocron.Job
	runs      atomic.Int64
}

// New creates a stopped sweeper.
func New(target Reconciler, interval time.Duration, logger *logrus.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Sweeper{
		scheduler: scheduler,
		target:    target,
		interval:  interval,
		log:       logger,
	}, nil
}

// Start registers the reconcile job and starts the scheduler.
func (s *Sweeper) Start() error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.run),
		gocron.WithName(JobName),
		// A slow pass is never overlapped by the next tick.
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile: %w", err)
	}
	s.job = job
	s.scheduler.Start()

	s.log.WithFields(logrus.Fields{"interval": s.interval.String()}).Info("sweeper started")
	return nil
}

// RunNow triggers the job immediately, outside its schedule.
func (s *Sweeper) RunNow() error {
	if s.job == nil {
		return fmt.Errorf("sweeper not started")
	}
	return s.job.RunNow()
}

// Runs returns how many passes have completed.
func (s *Sweeper) Runs() int64 {
	return s.runs.Load()
}

// Stop shuts the scheduler down, waiting for a running pass to finish.
func (s *Sweeper) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.log.Info("sweeper stopped")
	return nil
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	out, err := s.target.Reconcile(ctx)
	s.runs.Add(1)
	if err != nil {
		s.log.WithFields(logrus.Fields{"error": err}).Warn("scheduled reconcile failed")
		return
	}
	s.log.WithFields(logrus.Fields{
		"trimmed": out.Trimmed,
		"orphans": out.Orphans,
		"evicted": out.Evicted,
	}).Debug("scheduled reconcile")
}
