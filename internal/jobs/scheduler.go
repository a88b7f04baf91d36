// Package jobs runs periodic background work.
package jobs

import (
	"context"
	"fmt"
	"time"

	"sewabaju/internal/session"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// OverdueNotifier is the part of the rental service the overdue scan needs.
type OverdueNotifier interface {
	NotifyOverdue(ctx context.Context) (int, error)
}

// systemActor is the identity scheduled jobs act as.
var systemActor = session.StaffActor{ID: "system", Title: "scheduler"}

// Scheduler manages cron job scheduling
type Scheduler struct {
	cron    *cron.Cron
	overdue OverdueNotifier
	timeout time.Duration
	log     *zap.Logger
}

// NewScheduler registers the overdue scan on spec, a six-field cron
// expression with seconds, evaluated in loc.
func NewScheduler(overdue OverdueNotifier, spec string, loc *time.Location, log *zap.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithSeconds(),
		),
		overdue: overdue,
		timeout: time.Minute,
		log:     log.Named("jobs"),
	}
	if _, err := s.cron.AddFunc(spec, s.ScanOverdue); err != nil {
		return nil, fmt.Errorf("failed to register overdue scan %q: %w", spec, err)
	}
	return s, nil
}

// ScanOverdue runs one overdue scan.
func (s *Scheduler) ScanOverdue() {
	ctx, cancel := context.WithTimeout(session.WithActor(context.Background(), systemActor), s.timeout)
	defer cancel()
	n, err := s.overdue.NotifyOverdue(ctx)
	if err != nil {
		s.log.Error("overdue scan failed", zap.Error(err))
		return
	}
	s.log.Info("overdue scan finished", zap.Int("overdue_orders", n))
}

// Start starts the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop stops the scheduler and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}
