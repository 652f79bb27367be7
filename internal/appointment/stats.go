package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DoctorStats is the doctor dashboard summary.
type DoctorStats struct {
	DoctorID            uuid.UUID
	PendingRequests     int
	UpcomingInPerson    int
	TodayAppointments   int
	TodayTelemedicine   int
	AvgCompletedMinutes float64
	NextWithinHour      *Appointment
}

// DoctorStats counts the doctor's appointments after applying lapse-on-read, so stale
// requests never inflate the pending count.
func (s *Service) DoctorStats(ctx context.Context, actor Actor, doctorID uuid.UUID) (*DoctorStats, error) {
	if !(actor.IsAdmin() || (actor.IsDoctor() && actor.ID == doctorID)) {
		return nil, fmt.Errorf("%w: doctors can only view their own dashboard", ErrUnauthorized)
	}

	appts, err := s.repo.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list doctor appointments: %w", err)
	}

	now := s.now()
	today := TimeSlot{Start: s.policy.Midnight(now)}
	today.End = today.Start.AddDate(0, 0, 1)
	horizon := now.Add(time.Hour)

	stats := &DoctorStats{DoctorID: doctorID}
	var completedTotal time.Duration
	completed := 0

	for i := range appts {
		a := &appts[i]
		if err := s.lapseOnRead(ctx, a); err != nil {
			return nil, err
		}

		if a.Status.IsPending() {
			stats.PendingRequests++
		}
		if a.Status == StatusConfirmed && a.Location == LocationInPerson && a.StartTime.After(now) {
			stats.UpcomingInPerson++
		}

		if today.Contains(a.StartTime) {
			stats.TodayAppointments++
			if a.Location == LocationOnline && a.OnlineMeetingLink != nil {
				stats.TodayTelemedicine++
			}
			if a.Status == StatusCompleted {
				completedTotal += a.Duration()
				completed++
			}
		}

		if a.Status == StatusConfirmed && a.StartTime.After(now) && !a.StartTime.After(horizon) {
			if stats.NextWithinHour == nil || a.StartTime.Before(stats.NextWithinHour.StartTime) {
				next := *a
				stats.NextWithinHour = &next
			}
		}
	}

	if completed > 0 {
		stats.AvgCompletedMinutes = completedTotal.Minutes() / float64(completed)
	}

	return stats, nil
}
