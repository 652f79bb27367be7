package appointment

import (
	"fmt"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

// Policy holds the clinic's scheduling rules. It has no state beyond its configuration
// and every method is a pure function of its arguments.
type Policy struct {
	Location         *time.Location
	OpenAt           time.Duration
	CloseAt          time.Duration
	LunchStart       time.Duration
	LunchEnd         time.Duration
	SlotGranularity  time.Duration
	MinDuration      time.Duration
	ModificationLock time.Duration

	// LockDoctorActions applies the modification lock to doctor confirm and cancel as well.
	LockDoctorActions bool
}

func DefaultPolicy() Policy {
	p, _ := PolicyFromConfig(config.DefaultClinic())
	return p
}

func PolicyFromConfig(c config.ClinicConfig) (Policy, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return Policy{}, fmt.Errorf("load clinic timezone: %w", err)
	}
	return Policy{
		Location:          loc,
		OpenAt:            c.OpenAt,
		CloseAt:           c.CloseAt,
		LunchStart:        c.LunchStart,
		LunchEnd:          c.LunchEnd,
		SlotGranularity:   c.SlotGranularity,
		MinDuration:       time.Minute,
		ModificationLock:  c.ModificationLock,
		LockDoctorActions: c.LockDoctorActions,
	}, nil
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

// Midnight returns the start of the clinic-local day containing t.
func (p Policy) Midnight(t time.Time) time.Time {
	lt := t.In(p.location())
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, p.location())
}

// at builds a wall-clock time on the clinic day containing t. It goes through time.Date
// so DST days still map 09:00 to 09:00.
func (p Policy) at(t time.Time, offset time.Duration) time.Time {
	lt := t.In(p.location())
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), h, m, 0, 0, p.location())
}

// WorkingDay returns the open..close window for the clinic day containing date.
func (p Policy) WorkingDay(date time.Time) TimeSlot {
	return TimeSlot{Start: p.at(date, p.OpenAt), End: p.at(date, p.CloseAt)}
}

// Lunch returns the lunch blackout for the clinic day containing date.
func (p Policy) Lunch(date time.Time) TimeSlot {
	return TimeSlot{Start: p.at(date, p.LunchStart), End: p.at(date, p.LunchEnd)}
}

// IsWithinWorkingHours requires start >= open and end <= close on the start's day.
func (p Policy) IsWithinWorkingHours(slot TimeSlot) bool {
	day := p.WorkingDay(slot.Start)
	return !slot.Start.Before(day.Start) && !slot.End.After(day.End)
}

func (p Policy) IsLunchBlackout(slot TimeSlot) bool {
	return slot.Overlaps(p.Lunch(slot.Start))
}

func (p Policy) IsFuture(slot TimeSlot, now time.Time) bool {
	return slot.Start.After(now)
}

// CanModify reports whether the appointment is still outside the modification lock.
func (p Policy) CanModify(appt *Appointment, now time.Time) bool {
	return appt.StartTime.After(now.Add(p.ModificationLock))
}

// ValidateBooking applies every time rule a new or moved appointment must pass.
func (p Policy) ValidateBooking(slot TimeSlot, now time.Time) error {
	if slot.IsZeroLength() {
		return fmt.Errorf("%w: end time must be after start time", ErrValidation)
	}
	if slot.Duration() < p.MinDuration {
		return fmt.Errorf("%w: appointment must last at least %s", ErrValidation, p.MinDuration)
	}
	if !p.IsWithinWorkingHours(slot) {
		return fmt.Errorf("%w: appointments must be scheduled between %s and %s",
			ErrValidation, clock(p.OpenAt), clock(p.CloseAt))
	}
	if p.IsLunchBlackout(slot) {
		return fmt.Errorf("%w: appointments cannot overlap the %s-%s lunch break",
			ErrValidation, clock(p.LunchStart), clock(p.LunchEnd))
	}
	if !p.IsFuture(slot, now) {
		return fmt.Errorf("%w: appointment time must be in the future", ErrValidation)
	}
	return nil
}

func clock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}
