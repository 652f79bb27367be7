package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type BookAppointmentRequest struct {
	DoctorID        string    `json:"doctor_id"`
	PatientID       string    `json:"patient_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	Reason          string    `json:"reason"`
}

type ConfirmAppointmentRequest struct {
	MeetingLink string `json:"meeting_link"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type RescheduleAppointmentRequest struct {
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
	Location        string    `json:"location,omitempty"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID `json:"id"`
	PatientID          uuid.UUID `json:"patient_id"`
	DoctorID           uuid.UUID `json:"doctor_id"`
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	DurationMinutes    int       `json:"duration_minutes"`
	Location           string    `json:"location"`
	Status             string    `json:"status"`
	Reason             string    `json:"reason,omitempty"`
	CancellationReason *string   `json:"cancellation_reason,omitempty"`
	MeetingLink        *string   `json:"meeting_link,omitempty"`
	Version            int       `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type NotificationResponse struct {
	Event     string `json:"event"`
	Recipient string `json:"recipient"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// OutcomeResponse is returned by every lifecycle operation. A failed notification does
// not change the status code.
type OutcomeResponse struct {
	Appointment   AppointmentResponse    `json:"appointment"`
	Notifications []NotificationResponse `json:"notifications"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	DoctorID        uuid.UUID      `json:"doctor_id"`
	Date            string         `json:"date"`
	DurationMinutes int            `json:"duration_minutes"`
	Occupied        []SlotResponse `json:"occupied"`
	Available       []SlotResponse `json:"available"`
}

type DoctorStatsResponse struct {
	DoctorID            uuid.UUID            `json:"doctor_id"`
	PendingRequests     int                  `json:"pending_requests"`
	UpcomingInPerson    int                  `json:"upcoming_in_person"`
	TodayAppointments   int                  `json:"today_appointments"`
	TodayTelemedicine   int                  `json:"today_telemedicine"`
	AvgCompletedMinutes float64              `json:"avg_completed_minutes"`
	NextWithinHour      *AppointmentResponse `json:"next_within_hour,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		DoctorID:           a.DoctorID,
		StartTime:          a.StartTime,
		EndTime:            a.EndTime,
		DurationMinutes:    int(a.Duration() / time.Minute),
		Location:           string(a.Location),
		Status:             string(a.Status),
		Reason:             a.Reason,
		CancellationReason: a.CancellationReason,
		MeetingLink:        a.OnlineMeetingLink,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointmentList(appts []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

func toOutcomeResponse(o *appointment.Outcome) OutcomeResponse {
	resp := OutcomeResponse{
		Appointment:   toAppointmentResponse(o.Appointment),
		Notifications: make([]NotificationResponse, 0, len(o.Notifications)),
	}
	for _, n := range o.Notifications {
		nr := NotificationResponse{
			Event:     string(n.Event),
			Recipient: string(n.Recipient),
			Delivered: n.Delivered(),
		}
		if n.Err != nil {
			nr.Error = n.Err.Error()
		}
		resp.Notifications = append(resp.Notifications, nr)
	}
	return resp
}

func toSlots(slots []appointment.TimeSlot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{Start: s.Start, End: s.End})
	}
	return out
}
