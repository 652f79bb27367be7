package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteRepository is the single-node store for local runs and tests. Timestamps are kept
// as unix milliseconds so range comparisons stay numeric.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteAppointment(row rowScanner) (*Appointment, error) {
	var a Appointment
	var start, end, created, updated int64

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&start,
		&end,
		&a.Location,
		&a.Status,
		&a.Reason,
		&a.CancellationReason,
		&a.OnlineMeetingLink,
		&a.Version,
		&created,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.StartTime = fromMillis(start)
	a.EndTime = fromMillis(end)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = fromMillis(updated)
	return &a, nil
}

func (r *SQLiteRepository) queryAppointments(ctx context.Context, query string, args ...any) ([]Appointment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanSQLiteAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = ?
	`, id.String())
	return scanSQLiteAppointment(row)
}

func (r *SQLiteRepository) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = ?
		  AND status IN ('SCHEDULED', 'RESCHEDULED', 'CONFIRMED')
		  AND start_time < ?
		  AND end_time > ?
		  AND id <> ?
		ORDER BY start_time
	`, doctorID.String(), toMillis(end), toMillis(start), excludeID.String())
}

func (r *SQLiteRepository) FindByDoctorInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = ?
		  AND start_time >= ?
		  AND start_time < ?
		ORDER BY start_time
	`, doctorID.String(), toMillis(from), toMillis(to))
}

func (r *SQLiteRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = ?
		ORDER BY start_time
	`, patientID.String())
}

func (r *SQLiteRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = ?
		ORDER BY start_time
	`, doctorID.String())
}

func (r *SQLiteRepository) FindLapsed(ctx context.Context, now time.Time) ([]Appointment, error) {
	return r.queryAppointments(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('SCHEDULED', 'RESCHEDULED')
		  AND start_time < ?
		ORDER BY start_time
	`, toMillis(now))
}

func (r *SQLiteRepository) CreateAppointment(ctx context.Context, appt *Appointment) error {
	if appt.Version == 0 {
		appt.Version = 1
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, appt.ID.String(), appt.PatientID.String(), appt.DoctorID.String(),
		toMillis(appt.StartTime), toMillis(appt.EndTime), string(appt.Location), string(appt.Status),
		appt.Reason, nullString(appt.CancellationReason), nullString(appt.OnlineMeetingLink), appt.Version,
		toMillis(appt.CreatedAt), toMillis(appt.UpdatedAt))
	return err
}

func (r *SQLiteRepository) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET start_time = ?,
		    end_time = ?,
		    location = ?,
		    status = ?,
		    reason = ?,
		    cancellation_reason = ?,
		    online_meeting_link = ?,
		    updated_at = ?,
		    version = version + 1
		WHERE id = ?
		  AND version = ?
	`, toMillis(appt.StartTime), toMillis(appt.EndTime), string(appt.Location), string(appt.Status),
		appt.Reason, nullString(appt.CancellationReason), nullString(appt.OnlineMeetingLink), toMillis(appt.UpdatedAt),
		appt.ID.String(), appt.Version)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM appointments WHERE id = ?`, appt.ID.String()).Scan(&exists)
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrAppointmentNotFound
		}
		return ErrStaleAppointment
	}

	appt.Version++
	return nil
}

func (r *SQLiteRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	var apptID, payload sql.NullString
	if ev.AppointmentID != nil {
		apptID = sql.NullString{String: ev.AppointmentID.String(), Valid: true}
	}
	if ev.Payload != nil {
		payload = sql.NullString{String: string(ev.Payload), Valid: true}
	}
	created := ev.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.EventType, apptID, payload, toMillis(created))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// EventsFor returns the audit trail of one appointment, oldest first.
func (r *SQLiteRepository) EventsFor(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, appointment_id, payload, created_at
		FROM event_logs
		WHERE appointment_id = ?
		ORDER BY id
	`, appointmentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var ev EventLog
		var apptID, payload sql.NullString
		var created int64
		if err := rows.Scan(&ev.ID, &ev.EventType, &apptID, &payload, &created); err != nil {
			return nil, err
		}
		if apptID.Valid {
			id, err := uuid.Parse(apptID.String)
			if err != nil {
				return nil, fmt.Errorf("parse appointment id: %w", err)
			}
			ev.AppointmentID = &id
		}
		if payload.Valid {
			ev.Payload = []byte(payload.String)
		}
		ev.CreatedAt = fromMillis(created)
		result = append(result, ev)
	}
	return result, rows.Err()
}

// Directory

func (r *SQLiteRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO doctors (id, name, specialty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, d.ID.String(), d.Name, nullString(d.Specialty), toMillis(now), toMillis(now))
	return err
}

func (r *SQLiteRepository) CreatePatient(ctx context.Context, p *Patient) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID.String(), p.Name, nullString(p.Email), toMillis(now), toMillis(now))
	return err
}

func (r *SQLiteRepository) ListDoctors(ctx context.Context, limit int) ([]Doctor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		ORDER BY created_at, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var d Doctor
		var created, updated int64
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialty, &created, &updated); err != nil {
			return nil, err
		}
		d.CreatedAt, d.UpdatedAt = fromMillis(created), fromMillis(updated)
		result = append(result, d)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) ListPatients(ctx context.Context, limit int) ([]Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		ORDER BY created_at, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		var p Patient
		var created, updated int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &created, &updated); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = fromMillis(created), fromMillis(updated)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
