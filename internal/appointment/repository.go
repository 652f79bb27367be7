package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
//
// The service serializes check-then-write per doctor with a Locker, and the Postgres
// schema backs that with an exclusion constraint, so implementations do not need to
// lock on their own.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks. Returns active appointments of the doctor intersecting
	// [start, end); excludeID of uuid.Nil excludes nothing.
	FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]Appointment, error)

	// Availability and dashboards. Appointments starting in [from, to), any status, ordered by start.
	FindByDoctorInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)

	// Lapse sweep. Pending appointments whose start is before now.
	FindLapsed(ctx context.Context, now time.Time) ([]Appointment, error)

	// Creation and updates. UpdateAppointment succeeds only when the stored version
	// equals appt.Version and bumps it; otherwise ErrStaleAppointment.
	CreateAppointment(ctx context.Context, appt *Appointment) error
	UpdateAppointment(ctx context.Context, appt *Appointment) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

// Directory stores doctors and patients. Both repositories implement it.
type Directory interface {
	CreateDoctor(ctx context.Context, d *Doctor) error
	CreatePatient(ctx context.Context, p *Patient) error
	ListDoctors(ctx context.Context, limit int) ([]Doctor, error)
	ListPatients(ctx context.Context, limit int) ([]Patient, error)
}
