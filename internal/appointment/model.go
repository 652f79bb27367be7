package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
	StatusNoShow      Status = "NO_SHOW"
)

// ActiveStatuses are the statuses that hold a doctor's time.
var ActiveStatuses = []Status{StatusScheduled, StatusRescheduled, StatusConfirmed}

func (s Status) IsActive() bool {
	return s == StatusScheduled || s == StatusRescheduled || s == StatusConfirmed
}

// IsPending reports whether the appointment is still waiting on the doctor.
func (s Status) IsPending() bool {
	return s == StatusScheduled || s == StatusRescheduled
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusRescheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Location string

const (
	LocationInPerson Location = "IN_PERSON"
	LocationOnline   Location = "ONLINE"
)

func (l Location) Valid() bool {
	return l == LocationInPerson || l == LocationOnline
}

// LapseReason is recorded on pending appointments whose start passed without a doctor decision.
const LapseReason = "No response from doctor"

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	DoctorID           uuid.UUID
	StartTime          time.Time
	EndTime            time.Time
	Location           Location
	Status             Status
	Reason             string
	CancellationReason *string
	OnlineMeetingLink  *string
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Appointment) Slot() TimeSlot {
	return TimeSlot{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

func (a *Appointment) touch(now time.Time) {
	a.UpdatedAt = now
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// ActorRole identifies who is driving a lifecycle operation.
type ActorRole string

const (
	RolePatient ActorRole = "patient"
	RoleDoctor  ActorRole = "doctor"
	RoleAdmin   ActorRole = "admin"
)

// Actor is an already-authenticated caller. The role and id are resolved upstream.
type Actor struct {
	Role ActorRole
	ID   uuid.UUID
}

func PatientActor(id uuid.UUID) Actor { return Actor{Role: RolePatient, ID: id} }
func DoctorActor(id uuid.UUID) Actor  { return Actor{Role: RoleDoctor, ID: id} }
func AdminActor(id uuid.UUID) Actor   { return Actor{Role: RoleAdmin, ID: id} }

func (a Actor) IsPatient() bool { return a.Role == RolePatient }
func (a Actor) IsDoctor() bool  { return a.Role == RoleDoctor }
func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }

// CanView reports whether the actor may read the appointment.
func (a Actor) CanView(appt *Appointment) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RolePatient:
		return appt.PatientID == a.ID
	case RoleDoctor:
		return appt.DoctorID == a.ID
	}
	return false
}

// Doctor and Patient are directory entries. The scheduling engine only needs their ids;
// the directory exists for seeding and load tests.
type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}
