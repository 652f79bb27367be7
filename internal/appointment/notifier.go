package appointment

import (
	"context"
	"errors"
	"fmt"
)

// Event names a lifecycle transition. The string doubles as the event log type and the
// notification routing key.
type Event string

const (
	EventBooked             Event = "appointment.booked"
	EventConfirmed          Event = "appointment.confirmed"
	EventCancelledByDoctor  Event = "appointment.cancelled_by_doctor"
	EventCancelledByPatient Event = "appointment.cancelled_by_patient"
	EventRescheduled        Event = "appointment.rescheduled"
	EventCompleted          Event = "appointment.completed"
	EventLapsed             Event = "appointment.lapsed"
)

type Recipient string

const (
	RecipientPatient Recipient = "patient"
	RecipientDoctor  Recipient = "doctor"
)

// Notification is the structured payload handed to a Notifier. Rendering it into an
// email or message is the notifier's business.
type Notification struct {
	Event       Event
	Recipient   Recipient
	Appointment Appointment
}

// Notifier delivers a notification. Errors are recorded by the service but never undo
// the transition that produced the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// NotificationResult is the delivery outcome for one recipient.
type NotificationResult struct {
	Event     Event
	Recipient Recipient
	Err       error
}

func (r NotificationResult) Delivered() bool { return r.Err == nil }

// Outcome separates the state transition from notification delivery. A non-nil Outcome
// means the transition was persisted, whatever happened to the notifications.
type Outcome struct {
	Appointment   *Appointment
	Notifications []NotificationResult
}

// NotificationErr joins every failed delivery, or returns nil.
func (o *Outcome) NotificationErr() error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, n := range o.Notifications {
		if n.Err != nil {
			errs = append(errs, fmt.Errorf("notify %s of %s: %w", n.Recipient, n.Event, n.Err))
		}
	}
	return errors.Join(errs...)
}

// recipients lists who hears about each event.
var recipients = map[Event][]Recipient{
	EventBooked:             {RecipientPatient, RecipientDoctor},
	EventConfirmed:          {RecipientPatient},
	EventCancelledByDoctor:  {RecipientPatient},
	EventCancelledByPatient: {RecipientDoctor},
	EventRescheduled:        {RecipientPatient, RecipientDoctor},
}
