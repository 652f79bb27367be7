package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

// ListFilter narrows a listing. Zero values match everything.
type ListFilter struct {
	Location Location
	Statuses []Status
	// Upcoming keeps only appointments starting after now.
	Upcoming bool
}

func (f ListFilter) match(a *Appointment, now time.Time) bool {
	if f.Location != "" && a.Location != f.Location {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if a.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Upcoming && !a.StartTime.After(now) {
		return false
	}
	return true
}

// Get returns one appointment, lapsing it first if it is overdue.
func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(appt) {
		return nil, fmt.Errorf("%w: actor cannot view this appointment", ErrUnauthorized)
	}
	return appt, nil
}

// ListForPatient returns the patient's appointments ordered by start time.
func (s *Service) ListForPatient(ctx context.Context, actor Actor, patientID uuid.UUID, f ListFilter) ([]Appointment, error) {
	if !(actor.IsAdmin() || (actor.IsPatient() && actor.ID == patientID)) {
		return nil, fmt.Errorf("%w: patients can only list their own appointments", ErrUnauthorized)
	}
	appts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list patient appointments: %w", err)
	}
	return s.filterLapsed(ctx, appts, f)
}

// ListForDoctor returns the doctor's appointments ordered by start time.
func (s *Service) ListForDoctor(ctx context.Context, actor Actor, doctorID uuid.UUID, f ListFilter) ([]Appointment, error) {
	if !(actor.IsAdmin() || (actor.IsDoctor() && actor.ID == doctorID)) {
		return nil, fmt.Errorf("%w: doctors can only list their own appointments", ErrUnauthorized)
	}
	appts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}
	return s.filterLapsed(ctx, appts, f)
}

func (s *Service) filterLapsed(ctx context.Context, appts []Appointment, f ListFilter) ([]Appointment, error) {
	now := s.now()
	out := make([]Appointment, 0, len(appts))
	for i := range appts {
		a := &appts[i]
		if err := s.lapseOnRead(ctx, a); err != nil {
			return nil, err
		}
		if f.match(a, now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

// LapseOverdue cancels every pending appointment whose start has passed and returns how
// many it changed. Rows that moved underneath it are skipped; the next sweep sees them.
func (s *Service) LapseOverdue(ctx context.Context) (int, error) {
	now := s.now()
	appts, err := s.repo.FindLapsed(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find lapsed appointments: %w", err)
	}

	count := 0
	for i := range appts {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		a := &appts[i]
		if !Lapse(a, now) {
			continue
		}
		if err := s.repo.UpdateAppointment(ctx, a); err != nil {
			if errors.Is(err, ErrStaleAppointment) {
				s.logger.Debug().Str("appointment_id", a.ID.String()).Msg("appointment changed during lapse sweep, skipping")
				continue
			}
			return count, fmt.Errorf("lapse appointment %s: %w", a.ID, err)
		}
		s.recordLapse(ctx, a)
		count++
	}
	return count, nil
}

// lapseOnRead persists a lapse when appt is overdue. If another writer got there first
// the stored row wins and appt is refreshed from it.
func (s *Service) lapseOnRead(ctx context.Context, appt *Appointment) error {
	if !Lapse(appt, s.now()) {
		return nil
	}
	err := s.repo.UpdateAppointment(ctx, appt)
	if err == nil {
		s.recordLapse(ctx, appt)
		return nil
	}
	if !errors.Is(err, ErrStaleAppointment) {
		return fmt.Errorf("lapse appointment: %w", err)
	}

	fresh, err := s.repo.GetAppointmentByID(ctx, appt.ID)
	if err != nil {
		return fmt.Errorf("reload appointment: %w", err)
	}
	*appt = *fresh
	if Lapse(appt, s.now()) {
		if err := s.repo.UpdateAppointment(ctx, appt); err != nil {
			return fmt.Errorf("lapse appointment: %w", err)
		}
		s.recordLapse(ctx, appt)
	}
	return nil
}

func (s *Service) recordLapse(ctx context.Context, appt *Appointment) {
	metrics.ObserveTransition(string(EventLapsed))
	metrics.ObserveLapsed(1)
	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Time("start_time", appt.StartTime).
		Msg("appointment lapsed")
	s.logEvent(ctx, appt.ID, EventLapsed, map[string]any{"reason": LapseReason})
}
