package appointment

import (
	"fmt"
	"time"
)

// transitions lists the statuses each event may leave from. Book has no source status.
var transitions = map[Event][]Status{
	EventConfirmed:          {StatusScheduled, StatusRescheduled},
	EventCancelledByDoctor:  {StatusScheduled, StatusRescheduled, StatusConfirmed},
	EventCancelledByPatient: {StatusScheduled, StatusRescheduled, StatusConfirmed},
	EventRescheduled:        {StatusScheduled, StatusRescheduled, StatusConfirmed},
	EventCompleted:          {StatusConfirmed},
	EventLapsed:             {StatusScheduled, StatusRescheduled},
}

// CanTransition reports whether event is defined from status.
func CanTransition(from Status, event Event) bool {
	for _, s := range transitions[event] {
		if s == from {
			return true
		}
	}
	return false
}

func checkTransition(appt *Appointment, event Event) error {
	if appt.Status.IsTerminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrIllegalState, appt.Status)
	}
	if !CanTransition(appt.Status, event) {
		return fmt.Errorf("%w: cannot apply %s to a %s appointment", ErrIllegalState, event, appt.Status)
	}
	return nil
}

// Lapse cancels a pending appointment whose start has passed. It returns true only when
// it changed the appointment, so repeated calls are no-ops.
func Lapse(appt *Appointment, now time.Time) bool {
	if !appt.Status.IsPending() || !appt.StartTime.Before(now) {
		return false
	}
	reason := LapseReason
	appt.Status = StatusCancelled
	appt.CancellationReason = &reason
	appt.touch(now)
	return true
}
