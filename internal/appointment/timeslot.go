package appointment

import (
	"fmt"
	"sort"
	"time"
)

// TimeSlot is a half-open [Start, End) interval.
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

// NewTimeSlot builds the slot starting at start and lasting d.
func NewTimeSlot(start time.Time, d time.Duration) (TimeSlot, error) {
	if d <= 0 {
		return TimeSlot{}, fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	return TimeSlot{Start: start, End: start.Add(d)}, nil
}

func (t TimeSlot) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

func (t TimeSlot) IsZeroLength() bool {
	return !t.End.After(t.Start)
}

// Overlaps reports whether two slots share any instant. Touching endpoints do not overlap
// and an empty slot overlaps nothing.
func (t TimeSlot) Overlaps(other TimeSlot) bool {
	if t.IsZeroLength() || other.IsZeroLength() {
		return false
	}
	return t.Start.Before(other.End) && t.End.After(other.Start)
}

// Contains checks if a time falls within this slot
func (t TimeSlot) Contains(ts time.Time) bool {
	return !ts.Before(t.Start) && ts.Before(t.End)
}

func (t TimeSlot) String() string {
	return fmt.Sprintf("[%s, %s)", t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339))
}

// OverlapsAny reports whether slot intersects any of busy.
func OverlapsAny(slot TimeSlot, busy []TimeSlot) bool {
	for _, b := range busy {
		if slot.Overlaps(b) {
			return true
		}
	}
	return false
}

// SortSlots sorts slots ascending by start, then end.
func SortSlots(slots []TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Start.Equal(slots[j].Start) {
			return slots[i].End.Before(slots[j].End)
		}
		return slots[i].Start.Before(slots[j].Start)
	})
}
