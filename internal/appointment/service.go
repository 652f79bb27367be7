package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// PatientCancelReason is stored when a patient cancels without giving a reason.
const PatientCancelReason = "Cancelled by patient"

type Service struct {
	repo      Repository
	conflicts *ConflictValidator
	locker    redisclient.Locker
	notifier  Notifier
	policy    Policy
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, locker redisclient.Locker, policy Policy, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		conflicts: NewConflictValidator(repo),
		locker:    locker,
		notifier:  NotifierFunc(func(context.Context, Notification) error { return nil }),
		policy:    policy,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locker == nil {
		s.locker = redisclient.NewLocalLocker()
	}
	return s
}

func (s *Service) Policy() Policy { return s.policy }

type BookingRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	StartTime time.Time
	Duration  time.Duration
	Location  Location
	Reason    string
}

// RescheduleRequest moves an appointment. A zero Duration keeps the current length and
// an empty Location keeps the current location.
type RescheduleRequest struct {
	StartTime time.Time
	Duration  time.Duration
	Location  Location
}

// Book creates a SCHEDULED appointment after the policy and conflict checks pass.
func (s *Service) Book(ctx context.Context, actor Actor, req BookingRequest) (*Outcome, error) {
	out, err := s.book(ctx, actor, req)
	if err != nil {
		s.reject("book", err)
	}
	return out, err
}

func (s *Service) book(ctx context.Context, actor Actor, req BookingRequest) (*Outcome, error) {
	if req.PatientID == uuid.Nil || req.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: patient_id and doctor_id are required", ErrValidation)
	}
	if !req.Location.Valid() {
		return nil, fmt.Errorf("%w: unknown location %q", ErrValidation, req.Location)
	}
	if !(actor.IsAdmin() || (actor.IsPatient() && actor.ID == req.PatientID)) {
		return nil, fmt.Errorf("%w: only the patient or an administrator can book", ErrUnauthorized)
	}

	slot, err := NewTimeSlot(req.StartTime, req.Duration)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.policy.ValidateBooking(slot, now); err != nil {
		return nil, err
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		StartTime: slot.Start,
		EndTime:   slot.End,
		Location:  req.Location,
		Status:    StatusScheduled,
		Reason:    strings.TrimSpace(req.Reason),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.withDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		if err := s.conflicts.Check(lockCtx, req.DoctorID, slot, uuid.Nil); err != nil {
			return err
		}
		if err := s.repo.CreateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventBooked, map[string]any{
		"patient_id": appt.PatientID.String(),
		"doctor_id":  appt.DoctorID.String(),
		"start_time": appt.StartTime,
		"end_time":   appt.EndTime,
		"location":   appt.Location,
	})

	return s.finish(ctx, appt, EventBooked), nil
}

// Confirm is the doctor accepting a pending appointment. Online appointments need a meeting link.
func (s *Service) Confirm(ctx context.Context, actor Actor, id uuid.UUID, meetingLink string) (*Outcome, error) {
	out, err := s.confirm(ctx, actor, id, meetingLink)
	if err != nil {
		s.reject("confirm", err)
	}
	return out, err
}

func (s *Service) confirm(ctx context.Context, actor Actor, id uuid.UUID, meetingLink string) (*Outcome, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.ID {
		return nil, fmt.Errorf("%w: only the appointment's doctor can confirm it", ErrUnauthorized)
	}
	if err := checkTransition(appt, EventConfirmed); err != nil {
		return nil, err
	}

	now := s.now()
	if s.policy.LockDoctorActions && !s.policy.CanModify(appt, now) {
		return nil, fmt.Errorf("%w: confirmation closes %s before the start", ErrPolicyLock, s.policy.ModificationLock)
	}

	link := strings.TrimSpace(meetingLink)
	if appt.Location == LocationOnline && link == "" {
		return nil, fmt.Errorf("%w: meeting link is required for online appointments", ErrValidation)
	}

	err = s.withDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		if err := s.conflicts.Check(lockCtx, appt.DoctorID, appt.Slot(), appt.ID); err != nil {
			return err
		}
		appt.Status = StatusConfirmed
		if link != "" {
			appt.OnlineMeetingLink = &link
		}
		appt.touch(now)
		if err := s.repo.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("confirm appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventConfirmed, map[string]any{
		"doctor_id":   appt.DoctorID.String(),
		"online_link": appt.OnlineMeetingLink != nil,
	})

	return s.finish(ctx, appt, EventConfirmed), nil
}

// Cancel routes on the actor: doctors and administrators need a reason but no lead time,
// patients need the appointment to be outside the modification lock.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Outcome, error) {
	out, err := s.cancel(ctx, actor, id, reason)
	if err != nil {
		s.reject("cancel", err)
	}
	return out, err
}

func (s *Service) cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*Outcome, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	now := s.now()

	var event Event
	switch {
	case actor.IsAdmin() || (actor.IsDoctor() && appt.DoctorID == actor.ID):
		event = EventCancelledByDoctor
		if err := checkTransition(appt, event); err != nil {
			return nil, err
		}
		if s.policy.LockDoctorActions && !s.policy.CanModify(appt, now) {
			return nil, fmt.Errorf("%w: cancellation closes %s before the start", ErrPolicyLock, s.policy.ModificationLock)
		}
		if reason == "" {
			return nil, fmt.Errorf("%w: cancellation reason is required", ErrValidation)
		}
	case actor.IsPatient() && appt.PatientID == actor.ID:
		event = EventCancelledByPatient
		if err := checkTransition(appt, event); err != nil {
			return nil, err
		}
		if !s.policy.CanModify(appt, now) {
			return nil, fmt.Errorf("%w: appointment cannot be cancelled within %s of its start", ErrPolicyLock, s.policy.ModificationLock)
		}
		if reason == "" {
			reason = PatientCancelReason
		}
	default:
		return nil, fmt.Errorf("%w: actor does not own this appointment", ErrUnauthorized)
	}

	appt.Status = StatusCancelled
	appt.CancellationReason = &reason
	appt.touch(now)
	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, event, map[string]any{
		"actor_role": actor.Role,
		"actor_id":   actor.ID.String(),
		"reason":     reason,
	})

	return s.finish(ctx, appt, event), nil
}

// Reschedule moves a patient's appointment to a new interval. The lock is evaluated
// against the original start, the booking rules against the new one.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id uuid.UUID, req RescheduleRequest) (*Outcome, error) {
	out, err := s.reschedule(ctx, actor, id, req)
	if err != nil {
		s.reject("reschedule", err)
	}
	return out, err
}

func (s *Service) reschedule(ctx context.Context, actor Actor, id uuid.UUID, req RescheduleRequest) (*Outcome, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsPatient() || appt.PatientID != actor.ID {
		return nil, fmt.Errorf("%w: only the appointment's patient can reschedule it", ErrUnauthorized)
	}
	if err := checkTransition(appt, EventRescheduled); err != nil {
		return nil, err
	}

	now := s.now()
	if !s.policy.CanModify(appt, now) {
		return nil, fmt.Errorf("%w: appointment cannot be rescheduled within %s of its start", ErrPolicyLock, s.policy.ModificationLock)
	}

	duration := req.Duration
	if duration == 0 {
		duration = appt.Duration()
	}
	location := req.Location
	if location == "" {
		location = appt.Location
	}
	if !location.Valid() {
		return nil, fmt.Errorf("%w: unknown location %q", ErrValidation, location)
	}

	slot, err := NewTimeSlot(req.StartTime, duration)
	if err != nil {
		return nil, err
	}
	if err := s.policy.ValidateBooking(slot, now); err != nil {
		return nil, err
	}

	previous := appt.Slot()
	err = s.withDoctorLock(ctx, appt.DoctorID, func(lockCtx context.Context) error {
		if err := s.conflicts.Check(lockCtx, appt.DoctorID, slot, appt.ID); err != nil {
			return err
		}
		appt.StartTime = slot.Start
		appt.EndTime = slot.End
		appt.Location = location
		appt.Status = StatusRescheduled
		// the doctor has to confirm again and supply a fresh link
		appt.OnlineMeetingLink = nil
		appt.touch(now)
		if err := s.repo.UpdateAppointment(lockCtx, appt); err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventRescheduled, map[string]any{
		"previous_start": previous.Start,
		"previous_end":   previous.End,
		"start_time":     appt.StartTime,
		"end_time":       appt.EndTime,
		"location":       appt.Location,
	})

	return s.finish(ctx, appt, EventRescheduled), nil
}

// Complete marks a confirmed appointment as held.
func (s *Service) Complete(ctx context.Context, actor Actor, id uuid.UUID) (*Outcome, error) {
	out, err := s.complete(ctx, actor, id)
	if err != nil {
		s.reject("complete", err)
	}
	return out, err
}

func (s *Service) complete(ctx context.Context, actor Actor, id uuid.UUID) (*Outcome, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsDoctor() || appt.DoctorID != actor.ID {
		return nil, fmt.Errorf("%w: only the appointment's doctor can complete it", ErrUnauthorized)
	}
	if err := checkTransition(appt, EventCompleted); err != nil {
		return nil, err
	}

	appt.Status = StatusCompleted
	appt.touch(s.now())
	if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventCompleted, map[string]any{})

	return s.finish(ctx, appt, EventCompleted), nil
}

// load reads an appointment and applies the lapse rule before anyone looks at it.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := s.lapseOnRead(ctx, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

func (s *Service) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(ctx context.Context) error) error {
	err := s.locker.WithDoctorLock(ctx, doctorID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrDoctorBusy
	}
	return err
}

// finish records the transition and fans out notifications. Delivery failures are
// logged and kept in the outcome; they never fail the operation.
func (s *Service) finish(ctx context.Context, appt *Appointment, event Event) *Outcome {
	metrics.ObserveTransition(string(event))

	out := &Outcome{Appointment: appt}
	for _, r := range recipients[event] {
		err := s.notifier.Notify(ctx, Notification{Event: event, Recipient: r, Appointment: *appt})
		metrics.ObserveNotification(string(event), err == nil)
		if err != nil {
			s.logger.Warn().
				Err(err).
				Str("appointment_id", appt.ID.String()).
				Str("event", string(event)).
				Str("recipient", string(r)).
				Msg("notification failed")
		}
		out.Notifications = append(out.Notifications, NotificationResult{Event: event, Recipient: r, Err: err})
	}
	return out
}

func (s *Service) reject(op string, err error) {
	kind := ErrorKind(err)
	metrics.ObserveRejection(op, kind)
	if kind == "internal" {
		s.logger.Error().Err(err).Str("operation", op).Msg("appointment operation failed")
		return
	}
	s.logger.Debug().Err(err).Str("operation", op).Str("kind", kind).Msg("appointment operation rejected")
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, event Event, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Str("event", string(event)).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     string(event),
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Warn().
			Err(err).
			Str("event", string(event)).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
