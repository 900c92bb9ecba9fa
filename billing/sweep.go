/*
sweep.go - Daily reminder sweep

PURPOSE:
  Scans every unit once, buckets each by due-date proximity, and sends at
  most one notification per unit via the external notifier.

BUCKETS (mutually exclusive, in precedence order):
  1. due in exactly 3 days  -> payment_reminder
  2. due today              -> payment_due_today
  3. past due               -> payment_overdue
  A unit matching none, or marked withdrawn, gets nothing.

AT-MOST-ONCE PER DAY:
  The store keeps a last-sweep marker. A second trigger on the same
  calendar day is a no-op, so a misfiring external scheduler cannot
  resend notices. A pass where every attempted notice failed records
  no marker, leaving the day retryable once the carrier recovers.

FAILURE POLICY:
  A notifier failure for one unit is recorded and the sweep continues.
  Each notifier call is bounded by a timeout so one slow carrier cannot
  stall the whole pass. The result carries final counts.

SEE ALSO:
  - status.go: The underlying due-date comparisons
  - notify.go: Notifier contract and templates
  - api/scheduler.go: The ticker that invokes Run daily
*/
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// BUCKETING - Pure template selection
// =============================================================================

// reminderLeadDays is how far before the due date the advance reminder
// goes out. The bucket matches that day exactly, not a range; the sweep
// runs daily, so every unit passes through the day once.
const reminderLeadDays = 3

// BucketFor selects the notification template for a unit as of today.
// Returns false when the unit gets nothing (withdrawn, or no bucket).
func BucketFor(u Unit, today Date) (Template, bool) {
	if u.Withdrawn {
		return "", false
	}
	switch {
	case u.NextDueDate.Equal(today.AddDays(reminderLeadDays)):
		return TemplateReminder, true
	case u.NextDueDate.Equal(today):
		return TemplateDueToday, true
	case u.NextDueDate.Before(today):
		return TemplateOverdue, true
	default:
		return "", false
	}
}

// =============================================================================
// SWEEPER
// =============================================================================

// SweepResult is the outcome of one sweep invocation.
type SweepResult struct {
	Date       Date
	Processed  int // units examined
	Sent       int
	Skipped    int // withdrawn or no matching bucket
	Failed     int // notifier errors, recorded and passed over
	AlreadyRan bool
}

// SweepRun is the persisted record of a completed sweep, keyed by date.
type SweepRun struct {
	Date        Date
	Processed   int
	Sent        int
	Skipped     int
	Failed      int
	CompletedAt time.Time
}

// Sweeper runs the daily pass over all units.
type Sweeper struct {
	store    Store
	sweeps   SweepStore
	notifier Notifier
	log      *logrus.Logger

	// NotifyTimeout bounds each notifier call.
	NotifyTimeout time.Duration
}

func NewSweeper(store Store, sweeps SweepStore, notifier Notifier, log *logrus.Logger) *Sweeper {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Sweeper{
		store:         store,
		sweeps:        sweeps,
		notifier:      notifier,
		log:           log,
		NotifyTimeout: 10 * time.Second,
	}
}

// Run executes one sweep for the given date. Re-invocation on a date
// that already swept is a no-op reported via AlreadyRan.
func (s *Sweeper) Run(ctx context.Context, today Date) (SweepResult, error) {
	result := SweepResult{Date: today}

	last, ok, err := s.sweeps.LastSweepDate(ctx)
	if err != nil {
		return result, fmt.Errorf("could not read sweep marker: %w", err)
	}
	if ok && last.AfterOrEqual(today) {
		result.AlreadyRan = true
		s.log.WithField("date", today.String()).Info("sweep already ran, skipping")
		return result, nil
	}

	units, err := s.store.ListUnits(ctx)
	if err != nil {
		return result, fmt.Errorf("could not list units: %w", err)
	}

	for _, u := range units {
		result.Processed++

		template, ok := BucketFor(u, today)
		if !ok {
			result.Skipped++
			continue
		}

		err := s.send(ctx, template, u)
		entry := NotificationEntry{
			ID:       fmt.Sprintf("ntf-%s-%s", today, u.ID),
			UnitID:   u.ID,
			ClientID: u.ClientID,
			Template: template,
			SentOn:   today,
			Success:  err == nil,
		}
		if err != nil {
			result.Failed++
			entry.Error = err.Error()
			s.log.WithFields(logrus.Fields{
				"unit":     u.ID,
				"client":   u.ClientID,
				"template": template,
			}).Warnf("notification failed: %v", err)
		} else {
			result.Sent++
		}

		// Audit-log errors don't stop the sweep either.
		if logErr := s.sweeps.LogNotification(ctx, entry); logErr != nil {
			s.log.Warnf("could not log notification for unit %s: %v", u.ID, logErr)
		}
	}

	// Nothing delivered on a day with deliveries due means the carrier
	// was down, not that the day is done. Leave the marker unset so a
	// later trigger can retry.
	if result.Failed > 0 && result.Sent == 0 {
		s.log.WithFields(logrus.Fields{
			"date":   today.String(),
			"failed": result.Failed,
		}).Warn("no notices delivered, sweep marker not recorded")
		return result, nil
	}

	run := SweepRun{
		Date:        today,
		Processed:   result.Processed,
		Sent:        result.Sent,
		Skipped:     result.Skipped,
		Failed:      result.Failed,
		CompletedAt: time.Now().UTC(),
	}
	if err := s.sweeps.RecordSweepRun(ctx, run); err != nil {
		return result, fmt.Errorf("sweep finished but marker not recorded: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"date":      today.String(),
		"processed": result.Processed,
		"sent":      result.Sent,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("reminder sweep complete")
	return result, nil
}

func (s *Sweeper) send(ctx context.Context, template Template, u Unit) error {
	ctx, cancel := context.WithTimeout(ctx, s.NotifyTimeout)
	defer cancel()
	return s.notifier.Send(ctx, template, u.ClientID, u.ID)
}
