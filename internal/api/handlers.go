package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

const (
	ActorRoleHeader = "X-Actor-Role"
	ActorIDHeader   = "X-Actor-ID"

	defaultDurationMinutes = 30
)

type handlers struct {
	svc *appointment.Service
}

// actorFromRequest reads the caller identity set by the upstream gateway.
func actorFromRequest(r *http.Request) (appointment.Actor, error) {
	role := appointment.ActorRole(strings.ToLower(strings.TrimSpace(r.Header.Get(ActorRoleHeader))))
	switch role {
	case appointment.RolePatient, appointment.RoleDoctor, appointment.RoleAdmin:
	default:
		return appointment.Actor{}, fmt.Errorf("%s must be patient, doctor or admin", ActorRoleHeader)
	}
	id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(ActorIDHeader)))
	if err != nil {
		return appointment.Actor{}, fmt.Errorf("%s must be a valid UUID", ActorIDHeader)
	}
	return appointment.Actor{Role: role, ID: id}, nil
}

func (h *handlers) requireActor(w http.ResponseWriter, r *http.Request) (appointment.Actor, bool) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing_actor", err.Error())
		return appointment.Actor{}, false
	}
	return actor, true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// decodeBody decodes JSON into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func (h *handlers) book(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}

	var req BookAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
		return
	}
	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
		return
	}

	if req.DurationMinutes == 0 {
		req.DurationMinutes = defaultDurationMinutes
	}

	out, err := h.svc.Book(r.Context(), actor, appointment.BookingRequest{
		PatientID: patientID,
		DoctorID:  doctorID,
		StartTime: req.StartTime,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Location:  appointment.Location(strings.ToUpper(req.Location)),
		Reason:    req.Reason,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOutcomeResponse(out))
}

func (h *handlers) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) confirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req ConfirmAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.svc.Confirm(r.Context(), actor, id, req.MeetingLink)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *handlers) cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req CancelAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.svc.Cancel(r.Context(), actor, id, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *handlers) reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req RescheduleAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.StartTime.IsZero() {
		writeError(w, http.StatusBadRequest, "validation_error", "start_time is required")
		return
	}

	out, err := h.svc.Reschedule(r.Context(), actor, id, appointment.RescheduleRequest{
		StartTime: req.StartTime,
		Duration:  time.Duration(req.DurationMinutes) * time.Minute,
		Location:  appointment.Location(strings.ToUpper(req.Location)),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (h *handlers) complete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	out, err := h.svc.Complete(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

// availability is public: free slots carry no patient data.
func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := uuidParam(w, r, "doctorID")
	if !ok {
		return
	}

	q := r.URL.Query()
	policy := h.svc.Policy()

	loc := policy.Location
	if loc == nil {
		loc = time.UTC
	}
	date, err := time.ParseInLocation("2006-01-02", q.Get("date"), loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}

	minutes := defaultDurationMinutes
	if v := q.Get("duration"); v != "" {
		minutes, err = strconv.Atoi(v)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}
	}

	var exclude uuid.UUID
	if v := q.Get("exclude"); v != "" {
		exclude, err = uuid.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_exclude", "exclude must be a valid UUID")
			return
		}
	}

	avail, err := h.svc.Availability(r.Context(), appointment.AvailabilityQuery{
		DoctorID:  doctorID,
		Date:      date,
		Duration:  time.Duration(minutes) * time.Minute,
		ExcludeID: exclude,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		DoctorID:        avail.DoctorID,
		Date:            avail.Date.Format("2006-01-02"),
		DurationMinutes: minutes,
		Occupied:        toSlots(avail.Occupied),
		Available:       toSlots(avail.Available),
	})
}

func (h *handlers) listDoctorAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doctorID, ok := uuidParam(w, r, "doctorID")
	if !ok {
		return
	}
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}

	appts, err := h.svc.ListForDoctor(r.Context(), actor, doctorID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

func (h *handlers) listPatientAppointments(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	patientID, ok := uuidParam(w, r, "patientID")
	if !ok {
		return
	}
	filter, ok := listFilter(w, r)
	if !ok {
		return
	}

	appts, err := h.svc.ListForPatient(r.Context(), actor, patientID, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentList(appts))
}

// listFilter reads ?location=, ?status= (comma separated) and ?upcoming=true.
func listFilter(w http.ResponseWriter, r *http.Request) (appointment.ListFilter, bool) {
	q := r.URL.Query()
	var f appointment.ListFilter

	if v := q.Get("location"); v != "" {
		f.Location = appointment.Location(strings.ToUpper(v))
		if !f.Location.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_location", "location must be IN_PERSON or ONLINE")
			return f, false
		}
	}
	if v := q.Get("status"); v != "" {
		for _, s := range strings.Split(v, ",") {
			st := appointment.Status(strings.ToUpper(strings.TrimSpace(s)))
			if !st.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", fmt.Sprintf("unknown status %q", s))
				return f, false
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if v := q.Get("upcoming"); v != "" {
		upcoming, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_upcoming", "upcoming must be a boolean")
			return f, false
		}
		f.Upcoming = upcoming
	}
	return f, true
}

func (h *handlers) doctorStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doctorID, ok := uuidParam(w, r, "doctorID")
	if !ok {
		return
	}

	stats, err := h.svc.DoctorStats(r.Context(), actor, doctorID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := DoctorStatsResponse{
		DoctorID:            stats.DoctorID,
		PendingRequests:     stats.PendingRequests,
		UpcomingInPerson:    stats.UpcomingInPerson,
		TodayAppointments:   stats.TodayAppointments,
		TodayTelemedicine:   stats.TodayTelemedicine,
		AvgCompletedMinutes: stats.AvgCompletedMinutes,
	}
	if stats.NextWithinHour != nil {
		next := toAppointmentResponse(stats.NextWithinHour)
		resp.NextWithinHour = &next
	}

	writeJSON(w, http.StatusOK, resp)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, appointment.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, appointment.ErrDoctorBusy):
		writeError(w, http.StatusConflict, "doctor_busy", err.Error())
	case errors.Is(err, appointment.ErrStaleAppointment):
		writeError(w, http.StatusConflict, "stale_appointment", err.Error())
	case errors.Is(err, appointment.ErrPolicyLock):
		writeError(w, http.StatusLocked, "policy_lock", err.Error())
	case errors.Is(err, appointment.ErrIllegalState):
		writeError(w, http.StatusConflict, "illegal_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
