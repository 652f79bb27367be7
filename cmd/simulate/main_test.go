package main

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

func TestOperationMetrics_Stats(t *testing.T) {
	var om OperationMetrics
	for i := 10; i >= 1; i-- {
		om.Record(time.Duration(i)*time.Millisecond, i%2 == 0, i == 3)
	}

	avg, lo, hi, p50, p95 := om.Stats()
	assert.Equal(t, 5500*time.Microsecond, avg)
	assert.Equal(t, time.Millisecond, lo)
	assert.Equal(t, 10*time.Millisecond, hi)
	assert.Equal(t, 6*time.Millisecond, p50)
	assert.Equal(t, 10*time.Millisecond, p95)

	assert.EqualValues(t, 10, om.Total)
	assert.EqualValues(t, 5, om.Success)
	assert.EqualValues(t, 1, om.Conflict)
	assert.EqualValues(t, 4, om.Error)
}

func TestOperationMetrics_StatsEmpty(t *testing.T) {
	var om OperationMetrics
	avg, lo, hi, p50, p95 := om.Stats()
	assert.Zero(t, avg+lo+hi+p50+p95)
}

func TestCountOverlaps(t *testing.T) {
	ctx := context.Background()
	sqlDB, err := db.OpenSQLite(ctx, db.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.MigrateSQLite(ctx, sqlDB))
	repo := appointment.NewSQLiteRepository(sqlDB)

	doctor := uuid.New()
	day := time.Date(2030, 3, 6, 0, 0, 0, 0, time.UTC)
	put := func(h, m int, status appointment.Status) {
		start := day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		require.NoError(t, repo.CreateAppointment(ctx, &appointment.Appointment{
			ID:        uuid.New(),
			PatientID: uuid.New(),
			DoctorID:  doctor,
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Location:  appointment.LocationInPerson,
			Status:    status,
			CreatedAt: day,
			UpdatedAt: day,
		}))
	}

	put(9, 0, appointment.StatusConfirmed)
	put(9, 30, appointment.StatusScheduled)
	put(9, 0, appointment.StatusCancelled)

	n, err := countOverlaps(ctx, repo, []uuid.UUID{doctor})
	require.NoError(t, err)
	assert.Zero(t, n)

	// the SQLite store has no exclusion constraint, so a bad row can be planted
	put(9, 45, appointment.StatusRescheduled)
	n, err = countOverlaps(ctx, repo, []uuid.UUID{doctor, uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
