/*
notify.go - Outbound notification contract

PURPOSE:
  The engine decides WHICH template to send and WHEN; delivery mechanics
  (WhatsApp, SMS, carrier retries) are the notifier's concern. This file
  defines that boundary.

TEMPLATES:
  payment_reminder   due in exactly 3 days
  payment_due_today  due today
  payment_overdue    past due

SEE ALSO:
  - sweep.go: The only caller of Notifier
*/
package billing

import "context"

// =============================================================================
// TEMPLATES
// =============================================================================

type Template string

const (
	TemplateReminder Template = "payment_reminder"
	TemplateDueToday Template = "payment_due_today"
	TemplateOverdue  Template = "payment_overdue"
)

// =============================================================================
// NOTIFIER - External delivery boundary
// =============================================================================

// Notifier delivers one notice to one client about one unit.
// Implementations must respect ctx cancellation; the sweep bounds each
// call with a timeout.
type Notifier interface {
	Send(ctx context.Context, template Template, clientID ClientID, unitID UnitID) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, template Template, clientID ClientID, unitID UnitID) error

func (f NotifierFunc) Send(ctx context.Context, template Template, clientID ClientID, unitID UnitID) error {
	return f(ctx, template, clientID, unitID)
}

// =============================================================================
// RECORDING NOTIFIER - Test double
// =============================================================================

// SentNotice is one captured Send call.
type SentNotice struct {
	Template Template
	ClientID ClientID
	UnitID   UnitID
}

// RecordingNotifier captures sends instead of delivering them. Optionally
// fails for chosen units to exercise partial-failure paths.
type RecordingNotifier struct {
	Sent    []SentNotice
	FailFor map[UnitID]error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{FailFor: make(map[UnitID]error)}
}

func (n *RecordingNotifier) Send(_ context.Context, template Template, clientID ClientID, unitID UnitID) error {
	if err, ok := n.FailFor[unitID]; ok {
		return err
	}
	n.Sent = append(n.Sent, SentNotice{Template: template, ClientID: clientID, UnitID: unitID})
	return nil
}

// =============================================================================
// NOTIFICATION AUDIT ENTRY
// =============================================================================

// NotificationEntry is one row of the notification audit log.
type NotificationEntry struct {
	ID       string
	UnitID   UnitID
	ClientID ClientID
	Template Template
	SentOn   Date
	Success  bool
	Error    string
}
