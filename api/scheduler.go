/*
scheduler.go - Daily grant/expiry job scheduler

PURPOSE:
  Runs the policy engine for every active member once a day: monthly and
  anniversary grants are appended, lapsed remainders expired, and cached
  balances refreshed.

DESIGN:
  - robfig/cron drives the schedule (default: 02:00 server time)
  - The job is idempotent; a missed day is caught up on the next run
    because the engine walks every due date up to "today"
  - Per-member failures are logged and skipped, never abort the batch

USAGE:
  scheduler := NewDailyUpdateScheduler(handler.Service, "0 2 * * *")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/policy.go: ComputeDue, the per-member computation
  - handlers.go: RunDailyUpdate endpoint (manual trigger)
*/
package api

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sable/leave-engine/leave"
)

// DailyUpdateScheduler runs the grant/expiry job on a cron schedule.
type DailyUpdateScheduler struct {
	Service  *leave.Service
	CronSpec string

	cron *cron.Cron
}

// NewDailyUpdateScheduler creates a scheduler with the given cron spec.
func NewDailyUpdateScheduler(service *leave.Service, cronSpec string) *DailyUpdateScheduler {
	return &DailyUpdateScheduler{
		Service:  service,
		CronSpec: cronSpec,
	}
}

// Start registers the daily job and begins the cron loop. The job also
// runs once immediately so a restart catches up missed dates.
func (s *DailyUpdateScheduler) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.CronSpec, s.RunNow); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[Scheduler] Daily update scheduled (%s)", s.CronSpec)

	go s.RunNow()
	return nil
}

// Stop halts the cron loop, waiting for a running job to finish.
func (s *DailyUpdateScheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		log.Println("[Scheduler] Stopped")
	}
}

// RunNow executes one daily update for today.
func (s *DailyUpdateScheduler) RunNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	start := time.Now()
	result, err := s.Service.RunDailyUpdate(ctx, leave.Today())
	if err != nil {
		log.Printf("[Scheduler] Daily update failed: %v", err)
		return
	}

	log.Printf("[Scheduler] Daily update done in %v: %d members, granted %s, expired %s, %d errors",
		time.Since(start).Round(time.Millisecond),
		result.Processed, result.Granted, result.Expired, len(result.Errors))
	for _, me := range result.Errors {
		log.Printf("[Scheduler] Member %s failed: %s", me.MemberID, me.Err)
	}
}
