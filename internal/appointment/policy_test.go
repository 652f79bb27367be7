package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/config"
)

func TestPolicy_ValidateBooking(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name    string
		slot    TimeSlot
		wantErr string
	}{
		{"morning slot", slot(9, 0, 9, 30), ""},
		{"ends exactly at lunch", slot(12, 30, 13, 0), ""},
		{"starts exactly after lunch", slot(14, 0, 14, 30), ""},
		{"ends exactly at close", slot(16, 30, 17, 0), ""},
		{"starts before open", slot(8, 30, 9, 0), "between 09:00 and 17:00"},
		{"runs past close", slot(16, 45, 17, 15), "between 09:00 and 17:00"},
		{"crosses into lunch", slot(12, 45, 13, 15), "lunch break"},
		{"inside lunch", slot(13, 15, 13, 45), "lunch break"},
		{"zero length", slot(10, 0, 10, 0), "end time must be after start time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.ValidateBooking(tt.slot, testNow)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPolicy_ValidateBooking_Past(t *testing.T) {
	p := DefaultPolicy()
	now := on(1, 10, 0)

	err := p.ValidateBooking(slot(9, 30, 10, 0), now)
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "future")

	// starting exactly now is not in the future
	err = p.ValidateBooking(slot(10, 0, 10, 30), now)
	require.ErrorIs(t, err, ErrValidation)

	assert.NoError(t, p.ValidateBooking(slot(10, 30, 11, 0), now))
}

func TestPolicy_CanModify(t *testing.T) {
	p := DefaultPolicy()
	appt := &Appointment{StartTime: on(1, 10, 0), EndTime: on(1, 10, 30)}

	assert.True(t, p.CanModify(appt, on(0, 9, 59)))
	// exactly 24h before is already locked
	assert.False(t, p.CanModify(appt, on(0, 10, 0)))
	assert.False(t, p.CanModify(appt, on(1, 8, 0)))
}

func TestPolicyFromConfig_Timezone(t *testing.T) {
	c := config.DefaultClinic()
	c.Timezone = "Europe/Berlin"

	p, err := PolicyFromConfig(c)
	require.NoError(t, err)

	// 08:30 UTC is 09:30 in Berlin during winter time
	s := TimeSlot{
		Start: time.Date(2030, 3, 5, 8, 30, 0, 0, time.UTC),
		End:   time.Date(2030, 3, 5, 9, 0, 0, 0, time.UTC),
	}
	assert.True(t, p.IsWithinWorkingHours(s))
	assert.False(t, DefaultPolicy().IsWithinWorkingHours(s))

	c.Timezone = "Not/AZone"
	_, err = PolicyFromConfig(c)
	assert.Error(t, err)
}

func TestPolicy_WorkingDayAndLunch(t *testing.T) {
	p := DefaultPolicy()
	date := on(2, 15, 42)

	assert.Equal(t, TimeSlot{Start: on(2, 9, 0), End: on(2, 17, 0)}, p.WorkingDay(date))
	assert.Equal(t, TimeSlot{Start: on(2, 13, 0), End: on(2, 14, 0)}, p.Lunch(date))
	assert.Equal(t, on(2, 0, 0), p.Midnight(date))
}
