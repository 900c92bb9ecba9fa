/*
scheduler.go - Daily reminder sweep scheduler

PURPOSE:
  Runs the reminder sweep automatically once per calendar day without
  an external cron. A coarse ticker wakes up periodically; the sweep's
  own per-day marker makes extra wakeups harmless.

DESIGN:
  - Background goroutine with configurable check interval
  - Fires immediately on start, then on every tick
  - The sweep itself refuses to run twice on one date, so the
    scheduler needs no date bookkeeping of its own

USAGE:
  scheduler := NewSweepScheduler(sweeper, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/sweep.go: Sweeper.Run and the per-day marker
  - handlers.go: TriggerSweep endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loggier/fleet-billing/billing"
)

// SweepScheduler triggers the daily reminder sweep.
type SweepScheduler struct {
	Sweeper       *billing.Sweeper
	CheckInterval time.Duration
	Enabled       bool

	log     *logrus.Logger
	ticker  *time.Ticker
	stop    chan bool
	stopped bool
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewSweepScheduler creates a scheduler checking hourly.
func NewSweepScheduler(sweeper *billing.Sweeper, log *logrus.Logger) *SweepScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SweepScheduler{
		Sweeper:       sweeper,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		log:           log,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.log.Info("sweep scheduler disabled, not starting")
		return
	}

	ss.ticker = time.NewTicker(ss.CheckInterval)
	ss.wg.Add(1)

	go ss.run()

	ss.log.WithField("interval", ss.CheckInterval.String()).Info("sweep scheduler started")
}

// Stop stops the scheduler. Safe to call more than once, and before
// Start.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker == nil || ss.stopped {
		return
	}
	ss.stopped = true
	ss.ticker.Stop()
	close(ss.stop)
	ss.wg.Wait()
	ss.log.Info("sweep scheduler stopped")
}

func (ss *SweepScheduler) run() {
	defer ss.wg.Done()

	// Run immediately on start
	ss.checkAndSweep()

	for {
		select {
		case <-ss.ticker.C:
			ss.checkAndSweep()
		case <-ss.stop:
			return
		}
	}
}

func (ss *SweepScheduler) checkAndSweep() {
	ctx := context.Background()
	today := billing.Today()

	result, err := ss.Sweeper.Run(ctx, today)
	if err != nil {
		ss.log.Errorf("scheduled sweep failed: %v", err)
		return
	}
	if result.AlreadyRan {
		return
	}

	ss.log.WithFields(logrus.Fields{
		"date": today.String(),
		"sent": result.Sent,
	}).Info("scheduled sweep executed")
}

// RunNow triggers an immediate check (for testing/admin).
func (ss *SweepScheduler) RunNow() {
	ss.checkAndSweep()
}
