// Package scheduler fires the alert sweep once a day and on demand, never
// running two sweeps at the same time.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/robfig/cron/v3"
)

// DefaultFireTime is the local wall-clock time of the daily sweep.
const DefaultFireTime = "09:00"

// Runner performs one sweep.
type Runner interface {
	Run(ctx context.Context, trigger model.Trigger) model.SweepReport
}

// State is the scheduler's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Scheduler owns the daily trigger and the idle/running guard shared by every
// trigger source.
type Scheduler struct {
	runner   Runner
	fireTime string
	loc      *time.Location
	schedule cron.Schedule
	cron     *cron.Cron
	logger   *slog.Logger

	running atomic.Bool
	stopped atomic.Bool
	wg      sync.WaitGroup
	// startMu orders wg.Add in acquire against wg.Wait in Stop.
	startMu sync.Mutex

	mu   sync.RWMutex
	last *model.SweepReport

	ctx    context.Context
	cancel context.CancelFunc
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone the fire time is interpreted in. Defaults to the
// process-local zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// New creates a scheduler firing runner every day at fireTime ("HH:MM").
func New(runner Runner, fireTime string, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if fireTime == "" {
		fireTime = DefaultFireTime
	}
	hour, minute, err := ParseFireTime(fireTime)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		runner:   runner,
		fireTime: fireTime,
		loc:      time.Local,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", minute, hour))
	if err != nil {
		return nil, fmt.Errorf("parse cron schedule: %w", err)
	}
	if cs, ok := sched.(*cron.SpecSchedule); ok {
		cs.Location = s.loc
	}
	s.schedule = sched

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)
	s.cron.Schedule(sched, cron.FuncJob(func() {
		if !s.start(s.ctx, model.TriggerSchedule) {
			s.logger.Warn("sweep already running, scheduled trigger ignored")
		}
	}))
	return s, nil
}

// ParseFireTime parses a 24-hour "HH:MM" wall-clock time.
func ParseFireTime(v string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid fire time %q: want HH:MM", v)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid fire time %q: hour must be 0-23", v)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 || len(m) != 2 {
		return 0, 0, fmt.Errorf("invalid fire time %q: minute must be 00-59", v)
	}
	return hour, minute, nil
}

// Start begins the daily schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("alert scheduler started", "fire_time", s.fireTime, "next_fire", s.NextFire(time.Now()))
}

// Stop halts the daily schedule and waits for an in-flight sweep to finish.
// Triggers arriving after Stop are refused.
func (s *Scheduler) Stop() {
	s.startMu.Lock()
	s.stopped.Store(true)
	s.startMu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.cancel()
}

// RunNow starts a sweep in the background. It returns false, without
// queueing, when a sweep is already running or the scheduler is stopped. The
// sweep outlives ctx's cancellation.
func (s *Scheduler) RunNow(ctx context.Context, trigger model.Trigger) bool {
	return s.start(context.WithoutCancel(ctx), trigger)
}

// RunSync runs a sweep in the caller's goroutine. The boolean is false when
// another sweep was already running or the scheduler is stopped.
func (s *Scheduler) RunSync(ctx context.Context, trigger model.Trigger) (model.SweepReport, bool) {
	if !s.acquire() {
		return model.SweepReport{}, false
	}
	return s.run(ctx, trigger), true
}

func (s *Scheduler) start(ctx context.Context, trigger model.Trigger) bool {
	if !s.acquire() {
		return false
	}
	go s.run(ctx, trigger)
	return true
}

// acquire moves the scheduler from idle to running and registers the sweep
// with the wait group.
func (s *Scheduler) acquire() bool {
	s.startMu.Lock()
	defer s.startMu.Unlock()
	if s.stopped.Load() {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Scheduler) run(ctx context.Context, trigger model.Trigger) model.SweepReport {
	defer s.wg.Done()
	defer s.running.Store(false)

	report := s.runner.Run(ctx, trigger)

	s.mu.Lock()
	s.last = &report
	s.mu.Unlock()
	return report
}

// State reports whether a sweep is running.
func (s *Scheduler) State() State {
	if s.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// NextFire returns the first scheduled fire strictly after now.
func (s *Scheduler) NextFire(now time.Time) time.Time {
	return s.schedule.Next(now)
}

// LastReport returns the report of the most recent completed sweep.
func (s *Scheduler) LastReport() (model.SweepReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.SweepReport{}, false
	}
	return *s.last, true
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
