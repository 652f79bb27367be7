package appointment

import "errors"

// Error taxonomy. Callers match with errors.Is; the wrapped message carries the detail.
var (
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("doctor already has an appointment in this interval")
	ErrPolicyLock          = errors.New("appointment is inside the modification lock window")
	ErrUnauthorized        = errors.New("actor is not allowed to act on this appointment")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrIllegalState        = errors.New("illegal status transition")

	// ErrStaleAppointment means the row changed between read and write.
	ErrStaleAppointment = errors.New("appointment was modified concurrently")
	// ErrDoctorBusy means another request holds the doctor's booking lock.
	ErrDoctorBusy = errors.New("doctor schedule is being modified, please retry")
)

// ErrorKind names the taxonomy entry of err, for metrics and API error codes.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrPolicyLock):
		return "policy_lock"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrIllegalState):
		return "illegal_state"
	case errors.Is(err, ErrStaleAppointment):
		return "stale"
	case errors.Is(err, ErrDoctorBusy):
		return "doctor_busy"
	default:
		return "internal"
	}
}
