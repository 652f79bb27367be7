package appointment

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// ConflictValidator is the single place that enforces "no double booking". Book, confirm
// and reschedule all call it before writing.
type ConflictValidator struct {
	repo Repository
}

func NewConflictValidator(repo Repository) *ConflictValidator {
	return &ConflictValidator{repo: repo}
}

// Conflicts returns the doctor's active appointments overlapping slot, ignoring excludeID.
// The repository result is filtered again here so a loose store query cannot leak through.
func (v *ConflictValidator) Conflicts(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) ([]Appointment, error) {
	candidates, err := v.repo.FindOverlapping(ctx, doctorID, slot.Start, slot.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find overlapping appointments: %w", err)
	}

	var out []Appointment
	for _, a := range candidates {
		if a.DoctorID != doctorID || !a.Status.IsActive() {
			continue
		}
		if excludeID != uuid.Nil && a.ID == excludeID {
			continue
		}
		if a.Slot().Overlaps(slot) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (v *ConflictValidator) HasConflict(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) (bool, error) {
	conflicts, err := v.Conflicts(ctx, doctorID, slot, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// Check is HasConflict returning ErrConflict instead of true.
func (v *ConflictValidator) Check(ctx context.Context, doctorID uuid.UUID, slot TimeSlot, excludeID uuid.UUID) error {
	conflicts, err := v.Conflicts(ctx, doctorID, slot, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return fmt.Errorf("%w: overlaps %s", ErrConflict, conflicts[0].Slot())
	}
	return nil
}
