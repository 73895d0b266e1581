// Package analytics runs the scheduled aggregation job.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
)

// Scheduler fires once per hour within a daily window evaluated in a
// fixed timezone. The aggregation body is a stub: it has no side effects
// visible to the rest of the pipeline.
type Scheduler struct {
	loc       *time.Location
	startHour int
	endHour   int
	now       func() time.Time
}

// New builds a Scheduler for the named timezone, hourly from 00:00 to
// 23:00.
func New(tz string) (*Scheduler, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, model.E(model.CodeInvalidArgument, "unknown timezone %q", tz)
	}
	return &Scheduler{loc: loc, startHour: 0, endHour: 23, now: time.Now}, nil
}

// Start runs the schedule loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next := s.NextRun(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Aggregate(ctx)
		}
	}
}

// NextRun returns the first top-of-hour after t that falls inside the
// daily window, evaluated in the scheduler's timezone.
func (s *Scheduler) NextRun(t time.Time) time.Time {
	t = t.In(s.loc)
	next := t.Truncate(time.Hour).Add(time.Hour)
	for next.Hour() < s.startHour || next.Hour() > s.endHour {
		next = next.Add(time.Hour)
	}
	return next
}

// Aggregate is the job body. It will collect metrics into a reporting
// collection; for now it only records that it ran.
func (s *Scheduler) Aggregate(_ context.Context) {
	obs.Logger.Info("analytics_aggregation_run", zap.Time("at", s.now().In(s.loc)))
}
