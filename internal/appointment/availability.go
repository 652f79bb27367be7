package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability is the occupied/free picture of one doctor's clinic day.
type Availability struct {
	DoctorID  uuid.UUID
	Date      time.Time
	Duration  time.Duration
	Occupied  []TimeSlot
	Available []TimeSlot
}

// AvailabilityQuery asks for free slots of Duration on Date. ExcludeID drops one
// appointment from the occupied set, which lets a reschedule see its own slot as free.
type AvailabilityQuery struct {
	DoctorID  uuid.UUID
	Date      time.Time
	Duration  time.Duration
	ExcludeID uuid.UUID
}

// ComputeAvailability enumerates candidate slots across the working day and keeps the
// ones that overlap nothing in booked or the lunch break. Both lists come back sorted.
func ComputeAvailability(p Policy, date time.Time, d time.Duration, booked []TimeSlot) (Availability, error) {
	if d <= 0 {
		return Availability{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if p.SlotGranularity <= 0 {
		return Availability{}, fmt.Errorf("%w: slot granularity must be positive", ErrValidation)
	}

	day := p.WorkingDay(date)
	lunch := p.Lunch(date)

	occupied := make([]TimeSlot, 0, len(booked)+1)
	occupied = append(occupied, booked...)
	if !lunch.IsZeroLength() {
		occupied = append(occupied, lunch)
	}
	SortSlots(occupied)

	available := make([]TimeSlot, 0)
	for start := day.Start; !start.Add(d).After(day.End); start = start.Add(p.SlotGranularity) {
		if lunch.Contains(start) {
			// Realign on the end of lunch; the loop step is applied after continue.
			start = lunch.End.Add(-p.SlotGranularity)
			continue
		}
		candidate := TimeSlot{Start: start, End: start.Add(d)}
		if !OverlapsAny(candidate, occupied) {
			available = append(available, candidate)
		}
	}

	return Availability{
		Date:      p.Midnight(date),
		Duration:  d,
		Occupied:  occupied,
		Available: available,
	}, nil
}

// Availability loads the doctor's appointments for the clinic day and computes free slots.
func (s *Service) Availability(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	if q.DoctorID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id is required", ErrValidation)
	}

	dayStart := s.policy.Midnight(q.Date)
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := s.repo.FindByDoctorInRange(ctx, q.DoctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("load doctor appointments: %w", err)
	}

	booked := make([]TimeSlot, 0, len(appts))
	for _, a := range appts {
		if a.Status == StatusCancelled {
			continue
		}
		if q.ExcludeID != uuid.Nil && a.ID == q.ExcludeID {
			continue
		}
		booked = append(booked, a.Slot())
	}

	avail, err := ComputeAvailability(s.policy, q.Date, q.Duration, booked)
	if err != nil {
		return nil, err
	}
	avail.DoctorID = q.DoctorID

	return &avail, nil
}
