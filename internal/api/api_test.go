package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/db"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var now = time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	doctor  uuid.UUID
	patient uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	sqlDB, err := db.OpenSQLite(ctx, db.MemoryDSN)
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.MigrateSQLite(ctx, sqlDB))

	repo := appointment.NewSQLiteRepository(sqlDB)
	svc := appointment.NewService(repo, redisclient.NewLocalLocker(), appointment.DefaultPolicy(),
		appointment.WithClock(func() time.Time { return now }),
	)

	return &testServer{
		handler: NewRouter(RouterConfig{
			Service: svc,
			Store:   repo,
			Logger:  zerolog.Nop(),
			Env:     "test",
			Version: "test",
		}),
		doctor:  uuid.New(),
		patient: uuid.New(),
	}
}

func (s *testServer) do(t *testing.T, method, path string, actor *appointment.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(ActorRoleHeader, string(actor.Role))
		req.Header.Set(ActorIDHeader, actor.ID.String())
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) patientActor() *appointment.Actor {
	a := appointment.PatientActor(s.patient)
	return &a
}

func (s *testServer) doctorActor() *appointment.Actor {
	a := appointment.DoctorActor(s.doctor)
	return &a
}

func (s *testServer) book(t *testing.T, start time.Time, location string) OutcomeResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/appointments", s.patientActor(), BookAppointmentRequest{
		DoctorID:        s.doctor.String(),
		PatientID:       s.patient.String(),
		StartTime:       start,
		DurationMinutes: 30,
		Location:        location,
		Reason:          "check-up",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[OutcomeResponse](t, rec)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[ErrorResponse](t, rec).Error
}

func TestBookAndGet(t *testing.T) {
	s := newTestServer(t)
	start := time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC)

	out := s.book(t, start, "in_person")
	assert.Equal(t, "SCHEDULED", out.Appointment.Status)
	assert.Equal(t, "IN_PERSON", out.Appointment.Location)
	assert.Equal(t, 30, out.Appointment.DurationMinutes)
	assert.Equal(t, 1, out.Appointment.Version)
	require.Len(t, out.Notifications, 2)
	for _, n := range out.Notifications {
		assert.True(t, n.Delivered)
	}

	rec := s.do(t, http.MethodGet, "/appointments/"+out.Appointment.ID.String(), s.doctorActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[AppointmentResponse](t, rec)
	assert.Equal(t, out.Appointment.ID, got.ID)
	assert.True(t, got.StartTime.Equal(start))
}

func TestBook_DefaultsToThirtyMinutes(t *testing.T) {
	s := newTestServer(t)
	start := time.Date(2030, 3, 6, 11, 0, 0, 0, time.UTC)

	rec := s.do(t, http.MethodPost, "/appointments", s.patientActor(), map[string]any{
		"doctor_id":  s.doctor.String(),
		"patient_id": s.patient.String(),
		"start_time": start,
		"location":   "IN_PERSON",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	out := decode[OutcomeResponse](t, rec)
	assert.Equal(t, 30, out.Appointment.DurationMinutes)
	assert.True(t, out.Appointment.EndTime.Equal(start.Add(30*time.Minute)))
}

func TestBook_Conflict(t *testing.T) {
	s := newTestServer(t)
	s.book(t, time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC), "IN_PERSON")

	other := appointment.PatientActor(uuid.New())
	rec := s.do(t, http.MethodPost, "/appointments", &other, BookAppointmentRequest{
		DoctorID:        s.doctor.String(),
		PatientID:       other.ID.String(),
		StartTime:       time.Date(2030, 3, 6, 10, 15, 0, 0, time.UTC),
		DurationMinutes: 30,
		Location:        "ONLINE",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorCode(t, rec))
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	out := s.book(t, time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC), "IN_PERSON")
	path := "/appointments/" + out.Appointment.ID.String()
	stranger := appointment.PatientActor(uuid.New())

	tests := []struct {
		name   string
		method string
		path   string
		actor  *appointment.Actor
		body   any
		status int
		code   string
	}{
		{"no actor", http.MethodGet, path, nil, nil, http.StatusUnauthorized, "missing_actor"},
		{"bad id", http.MethodGet, "/appointments/nope", s.patientActor(), nil, http.StatusBadRequest, "invalid_id"},
		{"not found", http.MethodGet, "/appointments/" + uuid.NewString(), s.patientActor(), nil, http.StatusNotFound, "appointment_not_found"},
		{"stranger", http.MethodGet, path, &stranger, nil, http.StatusForbidden, "unauthorized"},
		{"patient confirms", http.MethodPost, path + "/confirm", s.patientActor(), nil, http.StatusForbidden, "unauthorized"},
		{"complete before confirm", http.MethodPost, path + "/complete", s.doctorActor(), nil, http.StatusConflict, "illegal_state"},
		{"doctor cancels without reason", http.MethodPost, path + "/cancel", s.doctorActor(), CancelAppointmentRequest{}, http.StatusBadRequest, "validation_error"},
		{"reschedule without start", http.MethodPost, path + "/reschedule", s.patientActor(), RescheduleAppointmentRequest{}, http.StatusBadRequest, "validation_error"},
		{"unknown field", http.MethodPost, path + "/cancel", s.patientActor(), map[string]string{"why": "x"}, http.StatusBadRequest, "invalid_request_body"},
		{"book during lunch", http.MethodPost, "/appointments", s.patientActor(), BookAppointmentRequest{
			DoctorID: s.doctor.String(), PatientID: s.patient.String(),
			StartTime: time.Date(2030, 3, 6, 13, 0, 0, 0, time.UTC), DurationMinutes: 30, Location: "IN_PERSON",
		}, http.StatusBadRequest, "validation_error"},
		{"book bad doctor", http.MethodPost, "/appointments", s.patientActor(), BookAppointmentRequest{
			DoctorID: "x", PatientID: s.patient.String(),
		}, http.StatusBadRequest, "invalid_doctor_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.actor, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestLifecycle(t *testing.T) {
	s := newTestServer(t)
	out := s.book(t, time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC), "ONLINE")
	path := "/appointments/" + out.Appointment.ID.String()

	// online appointments need a link
	rec := s.do(t, http.MethodPost, path+"/confirm", s.doctorActor(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path+"/confirm", s.doctorActor(), ConfirmAppointmentRequest{MeetingLink: "https://meet.example.com/a"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[OutcomeResponse](t, rec)
	assert.Equal(t, "CONFIRMED", confirmed.Appointment.Status)
	require.NotNil(t, confirmed.Appointment.MeetingLink)

	rec = s.do(t, http.MethodPost, path+"/reschedule", s.patientActor(), RescheduleAppointmentRequest{
		StartTime: time.Date(2030, 3, 7, 14, 0, 0, 0, time.UTC),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[OutcomeResponse](t, rec)
	assert.Equal(t, "RESCHEDULED", moved.Appointment.Status)
	assert.Equal(t, "ONLINE", moved.Appointment.Location)
	assert.Nil(t, moved.Appointment.MeetingLink)
	assert.Equal(t, 3, moved.Appointment.Version)

	rec = s.do(t, http.MethodPost, path+"/cancel", s.patientActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cancelled := decode[OutcomeResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Appointment.Status)
	require.NotNil(t, cancelled.Appointment.CancellationReason)
	assert.Equal(t, appointment.PatientCancelReason, *cancelled.Appointment.CancellationReason)

	rec = s.do(t, http.MethodPost, path+"/cancel", s.doctorActor(), CancelAppointmentRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "illegal_state", errorCode(t, rec))
}

func TestPatientCancel_InsideLockWindow(t *testing.T) {
	s := newTestServer(t)
	out := s.book(t, time.Date(2030, 3, 4, 15, 0, 0, 0, time.UTC), "IN_PERSON")

	rec := s.do(t, http.MethodPost, "/appointments/"+out.Appointment.ID.String()+"/cancel", s.patientActor(), CancelAppointmentRequest{Reason: "sick"})
	assert.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "policy_lock", errorCode(t, rec))

	// the doctor is not held to the window
	rec = s.do(t, http.MethodPost, "/appointments/"+out.Appointment.ID.String()+"/cancel", s.doctorActor(), CancelAppointmentRequest{Reason: "emergency"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAvailability(t *testing.T) {
	s := newTestServer(t)
	s.book(t, time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC), "IN_PERSON")
	base := "/doctors/" + s.doctor.String() + "/availability"

	rec := s.do(t, http.MethodGet, base+"?date=2030-03-06", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avail := decode[AvailabilityResponse](t, rec)
	assert.Equal(t, "2030-03-06", avail.Date)
	assert.Equal(t, 30, avail.DurationMinutes)
	assert.Len(t, avail.Available, 13)
	assert.Len(t, avail.Occupied, 2)
	for _, slot := range avail.Available {
		assert.False(t, slot.Start.Equal(time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC)))
	}

	rec = s.do(t, http.MethodGet, base+"?date=2030-03-05&duration=60", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[AvailabilityResponse](t, rec).Available, 12)

	rec = s.do(t, http.MethodGet, base+"?date=tomorrow", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodGet, base+"?date=2030-03-05&duration=-5", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndStats(t *testing.T) {
	s := newTestServer(t)
	s.book(t, time.Date(2030, 3, 6, 10, 0, 0, 0, time.UTC), "IN_PERSON")
	s.book(t, time.Date(2030, 3, 6, 11, 0, 0, 0, time.UTC), "ONLINE")

	rec := s.do(t, http.MethodGet, "/patients/"+s.patient.String()+"/appointments?location=online", s.patientActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/appointments?status=scheduled,rescheduled&upcoming=true", s.doctorActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 2)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/appointments?status=bogus", s.doctorActor(), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_status", errorCode(t, rec))

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/appointments", s.patientActor(), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/doctors/"+s.doctor.String()+"/stats", s.doctorActor(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[DoctorStatsResponse](t, rec)
	assert.Equal(t, 2, stats.PendingRequests)
	assert.Zero(t, stats.TodayAppointments)
	assert.Nil(t, stats.NextWithinHour)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", ready.Status)
	assert.Equal(t, "ok", ready.Dependencies["store"])
	_, hasRedis := ready.Dependencies["redis"]
	assert.False(t, hasRedis)
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
