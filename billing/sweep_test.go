package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggier/fleet-billing/billing"
	bstore "github.com/loggier/fleet-billing/billing/store"
)

var sweepToday = billing.NewDate(2026, time.August, 20)

// =============================================================================
// BUCKETING
// =============================================================================

func TestBucketFor_SelectsExactlyOneTemplate(t *testing.T) {
	cases := []struct {
		name     string
		due      billing.Date
		want     billing.Template
		hasMatch bool
	}{
		{"due in exactly 3 days", sweepToday.AddDays(3), billing.TemplateReminder, true},
		{"due today", sweepToday, billing.TemplateDueToday, true},
		{"one day overdue", sweepToday.AddDays(-1), billing.TemplateOverdue, true},
		{"long overdue", sweepToday.AddDays(-45), billing.TemplateOverdue, true},
		{"due in 2 days", sweepToday.AddDays(2), "", false},
		{"due in 4 days", sweepToday.AddDays(4), "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := billing.BucketFor(billing.Unit{NextDueDate: tc.due}, sweepToday)
			assert.Equal(t, tc.hasMatch, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestBucketFor_WithdrawnUnitNeverNotified(t *testing.T) {
	u := billing.Unit{NextDueDate: sweepToday.AddDays(-10), Withdrawn: true}
	_, ok := billing.BucketFor(u, sweepToday)
	assert.False(t, ok)
}

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestSweeper(t *testing.T) (*billing.Sweeper, *bstore.TxMemory, *billing.RecordingNotifier) {
	t.Helper()
	store := bstore.NewTxMemory()
	notifier := billing.NewRecordingNotifier()

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return billing.NewSweeper(store, store, notifier, log), store, notifier
}

func sweepUnit(t *testing.T, store *bstore.TxMemory, id billing.UnitID, due billing.Date, withdrawn bool) {
	t.Helper()
	require.NoError(t, store.SaveUnit(context.Background(), billing.Unit{
		ID:           id,
		ClientID:     "c1",
		ContractType: billing.ContractMetered,
		MonthlyCost:  billing.NewMoneyFromInt(30),
		NextDueDate:  due,
		Withdrawn:    withdrawn,
	}))
}

// =============================================================================
// SWEEP RUNS
// =============================================================================

func TestSweeper_SendsOneNoticePerMatchingUnit(t *testing.T) {
	// GIVEN: Units in every bucket plus one not due and one withdrawn
	// WHEN: Running the sweep
	// THEN: Exactly three notices, each with its bucket's template

	sweeper, store, notifier := newTestSweeper(t)
	sweepUnit(t, store, "u-reminder", sweepToday.AddDays(3), false)
	sweepUnit(t, store, "u-today", sweepToday, false)
	sweepUnit(t, store, "u-overdue", sweepToday.AddDays(-5), false)
	sweepUnit(t, store, "u-future", sweepToday.AddDays(10), false)
	sweepUnit(t, store, "u-gone", sweepToday.AddDays(-5), true)

	result, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	byUnit := map[billing.UnitID]billing.Template{}
	for _, n := range notifier.Sent {
		byUnit[n.UnitID] = n.Template
	}
	assert.Equal(t, billing.TemplateReminder, byUnit["u-reminder"])
	assert.Equal(t, billing.TemplateDueToday, byUnit["u-today"])
	assert.Equal(t, billing.TemplateOverdue, byUnit["u-overdue"])
}

func TestSweeper_NotifierFailureRecordedAndSweepContinues(t *testing.T) {
	// GIVEN: Two due units, the carrier failing for the first
	// WHEN: Running the sweep
	// THEN: The second still gets its notice; the failure is counted and
	//       audit-logged

	sweeper, store, notifier := newTestSweeper(t)
	sweepUnit(t, store, "u-bad", sweepToday, false)
	sweepUnit(t, store, "u-good", sweepToday, false)
	notifier.FailFor["u-bad"] = errors.New("carrier timeout")

	result, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	entries, err := store.ListNotifications(context.Background(), "u-bad")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].Error, "carrier timeout")
}

func TestSweeper_TotalDeliveryFailureLeavesDayRetryable(t *testing.T) {
	// GIVEN: One due unit and a carrier that is fully down
	// WHEN: Sweeping, the carrier recovering, then sweeping again same day
	// THEN: The failed pass records no marker; the retry delivers

	sweeper, store, notifier := newTestSweeper(t)
	sweepUnit(t, store, "u1", sweepToday, false)
	notifier.FailFor["u1"] = errors.New("carrier down")

	first, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Failed)
	assert.Equal(t, 0, first.Sent)

	delete(notifier.FailFor, "u1")
	second, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)

	assert.False(t, second.AlreadyRan)
	assert.Equal(t, 1, second.Sent)
	require.Len(t, notifier.Sent, 1)
	assert.Equal(t, billing.UnitID("u1"), notifier.Sent[0].UnitID)
}

func TestSweeper_SlowNotifierTimesOutAndSweepContinues(t *testing.T) {
	// GIVEN: Two due units, the carrier hanging forever on the first
	// WHEN: Running with a short per-call timeout
	// THEN: The hung call fails at the deadline and the other unit is
	//       still notified

	store := bstore.NewTxMemory()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	var delivered []billing.UnitID
	notifier := billing.NotifierFunc(func(ctx context.Context, _ billing.Template, _ billing.ClientID, unitID billing.UnitID) error {
		if unitID == "u-hung" {
			<-ctx.Done()
			return ctx.Err()
		}
		delivered = append(delivered, unitID)
		return nil
	})

	sweeper := billing.NewSweeper(store, store, notifier, log)
	sweeper.NotifyTimeout = 20 * time.Millisecond

	sweepUnit(t, store, "u-hung", sweepToday, false)
	sweepUnit(t, store, "u-ok", sweepToday, false)

	result, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, []billing.UnitID{"u-ok"}, delivered)

	entries, err := store.ListNotifications(context.Background(), "u-hung")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].Error, "deadline")
}

func TestSweeper_SecondRunSameDayIsNoOp(t *testing.T) {
	// GIVEN: A sweep already completed today
	// WHEN: Triggering again on the same date
	// THEN: Nothing is sent; the result says so

	sweeper, store, notifier := newTestSweeper(t)
	sweepUnit(t, store, "u1", sweepToday, false)

	first, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	second, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)
	assert.True(t, second.AlreadyRan)
	assert.Equal(t, 0, second.Sent)
	assert.Len(t, notifier.Sent, 1)
}

func TestSweeper_NextDayRunsAgain(t *testing.T) {
	// GIVEN: Yesterday's sweep is recorded
	// WHEN: Running on the next day
	// THEN: The overdue unit is notified again (escalation by repetition)

	sweeper, store, notifier := newTestSweeper(t)
	sweepUnit(t, store, "u1", sweepToday.AddDays(-1), false)

	_, err := sweeper.Run(context.Background(), sweepToday)
	require.NoError(t, err)

	tomorrow := sweepToday.AddDays(1)
	result, err := sweeper.Run(context.Background(), tomorrow)
	require.NoError(t, err)

	assert.False(t, result.AlreadyRan)
	assert.Equal(t, 1, result.Sent)
	assert.Len(t, notifier.Sent, 2)
}

func TestSweeper_UnitCrossingBucketsGetsOneNoticePerDay(t *testing.T) {
	// GIVEN: A unit due on day D, swept on D-3, D, and D+1
	// THEN: reminder, then due-today, then overdue; one notice per day

	sweeper, store, notifier := newTestSweeper(t)
	dueDay := sweepToday.AddDays(3)
	sweepUnit(t, store, "u1", dueDay, false)

	for _, day := range []billing.Date{sweepToday, dueDay, dueDay.AddDays(1)} {
		_, err := sweeper.Run(context.Background(), day)
		require.NoError(t, err)
	}

	require.Len(t, notifier.Sent, 3)
	assert.Equal(t, billing.TemplateReminder, notifier.Sent[0].Template)
	assert.Equal(t, billing.TemplateDueToday, notifier.Sent[1].Template)
	assert.Equal(t, billing.TemplateOverdue, notifier.Sent[2].Template)
}
