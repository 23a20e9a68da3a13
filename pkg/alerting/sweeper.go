package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/notify"
	"golang.org/x/sync/errgroup"
)

// Sweeper runs one alert pass over every eligible user.
type Sweeper struct {
	repo        Repository
	evaluator   *Evaluator
	dispatcher  *Dispatcher
	reporters   []notify.Reporter
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithConcurrency sets how many users are processed at once. Values below one
// mean sequential.
func WithConcurrency(n int) SweeperOption {
	return func(s *Sweeper) {
		if n < 1 {
			n = 1
		}
		s.concurrency = n
	}
}

// WithReporters registers sinks that receive every sweep report.
func WithReporters(reporters ...notify.Reporter) SweeperOption {
	return func(s *Sweeper) { s.reporters = append(s.reporters, reporters...) }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a sweeper.
func NewSweeper(repo Repository, evaluator *Evaluator, dispatcher *Dispatcher, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		repo:        repo,
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		concurrency: 1,
		now:         time.Now,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// userResult is the tally of one user's evaluation and dispatch.
type userResult struct {
	sent, skipped, failed int
	flags                 int64
	err                   error
}

// Run evaluates every eligible user, dispatches their notifications and then
// persists their alert flags. A failing user is logged and counted; the sweep
// carries on with the rest.
func (s *Sweeper) Run(ctx context.Context, trigger model.Trigger) model.SweepReport {
	now := s.now()
	report := model.SweepReport{Trigger: trigger, StartedAt: now}

	s.logger.Info("sweep started", "trigger", trigger)

	users, err := s.repo.ListEligibleUsers(ctx)
	if err != nil {
		s.logger.Error("list eligible users failed", "error", err)
		report.Error = fmt.Sprintf("list eligible users: %v", err)
		return s.finish(ctx, report)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			mu.Lock()
			report.Error = err.Error()
			mu.Unlock()
			break
		}
		g.Go(func() error {
			res := s.sweepUser(ctx, user, now)

			mu.Lock()
			defer mu.Unlock()
			report.UsersEvaluated++
			report.Sent += res.sent
			report.Skipped += res.skipped
			report.Failed += res.failed
			report.FlagsUpdated += res.flags
			if res.err != nil {
				report.UsersFailed++
			}
			return nil
		})
	}
	_ = g.Wait()

	return s.finish(ctx, report)
}

func (s *Sweeper) sweepUser(ctx context.Context, user model.User, now time.Time) (res userResult) {
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic: %v", r)
			s.logger.Error("sweep user panicked", "user_id", user.ID, "panic", r)
		}
	}()

	plan, err := s.evaluator.Evaluate(ctx, user, now)
	if err != nil {
		s.logger.Error("evaluate user failed", "user_id", user.ID, "error", err)
		res.err = err
		return res
	}

	for _, n := range plan.Notifications {
		switch s.dispatcher.Dispatch(ctx, n).Status {
		case notify.StatusSent:
			res.sent++
		case notify.StatusSkipped:
			res.skipped++
		case notify.StatusFailed:
			res.failed++
		}
	}

	// Flags are written after every dispatch attempt, whatever the outcomes.
	for _, set := range []struct {
		flag model.FlagName
		ids  []string
	}{
		{model.FlagLowStock, plan.LowStockIDs},
		{model.FlagExpiringSoon, plan.ExpiringIDs},
	} {
		if len(set.ids) == 0 {
			continue
		}
		n, err := s.repo.SetAlertFlags(ctx, set.ids, set.flag, true)
		if err != nil {
			s.logger.Error("set alert flags failed", "user_id", user.ID, "flag", set.flag, "error", err)
			res.err = err
			continue
		}
		res.flags += n
	}

	return res
}

func (s *Sweeper) finish(ctx context.Context, report model.SweepReport) model.SweepReport {
	report.FinishedAt = s.now()

	s.logger.Info("sweep completed",
		"trigger", report.Trigger,
		"users", report.UsersEvaluated,
		"users_failed", report.UsersFailed,
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"flags_updated", report.FlagsUpdated,
		"duration", report.Duration(),
	)

	for _, r := range s.reporters {
		if err := r.Report(ctx, report); err != nil {
			s.logger.Error("publish sweep report failed", "reporter", r.Name(), "error", err)
		}
	}
	return report
}

// Preview evaluates one user without sending anything or touching flags.
func (s *Sweeper) Preview(ctx context.Context, user model.User) (*Plan, error) {
	return s.evaluator.Evaluate(ctx, user, s.now())
}
