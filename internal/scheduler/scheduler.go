// Package scheduler fires due campaigns. The schedule lives entirely in the
// store as scheduled campaign rows, so a process restart loses nothing and a
// due campaign fires on the first poll after startup.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mailfold/mailfold/internal/campaign"
	"github.com/mailfold/mailfold/internal/metrics"
	"github.com/mailfold/mailfold/internal/models"
)

// DueLister returns scheduled campaigns whose time has come.
type DueLister interface {
	ListScheduledDue(now time.Time) ([]models.Campaign, error)
}

// Executor starts a campaign run.
type Executor interface {
	Execute(ctx context.Context, id string) error
}

// Scheduler polls the store for due campaigns and executes them.
type Scheduler struct {
	due      DueLister
	executor Executor
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(due DueLister, executor Executor, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		due:      due,
		executor: executor,
		interval: interval,
		metrics:  m,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start begins polling. It returns immediately; the loop runs until Stop.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.logger.Info("scheduler started", "poll_interval", s.interval)
}

// Stop cancels the poll loop and waits for it to exit. In-flight campaign
// executions are not interrupted; they are drained by the campaign service.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// First pass right away so due campaigns do not wait a full interval
	// after startup.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick executes every due campaign once. Losing the execution claim is not
// an error here: it means someone else (an operator, a concurrent tick)
// already started the campaign, and the scheduled row is gone either way.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.due.ListScheduledDue(time.Now())
	if err != nil {
		s.logger.Error("failed to list due campaigns", "error", err)
		return
	}

	for _, c := range due {
		if ctx.Err() != nil {
			return
		}

		err := s.executor.Execute(ctx, c.ID)
		switch {
		case err == nil:
			s.metrics.SchedulerFire()
			s.logger.Info("scheduled campaign fired", "id", c.ID, "name", c.Name)
		case errors.Is(err, campaign.ErrNotExecutable):
			s.logger.Debug("campaign already claimed", "id", c.ID)
		default:
			s.logger.Error("failed to execute scheduled campaign", "id", c.ID, "error", err)
		}
	}
}
