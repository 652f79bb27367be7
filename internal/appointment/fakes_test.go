package appointment

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

// memRepo is a map-backed Repository for service tests.
type memRepo struct {
	mu     sync.Mutex
	appts  map[uuid.UUID]Appointment
	events []EventLog

	// updateHook runs before an update is applied, to simulate a concurrent writer.
	updateHook func(a *Appointment)
}

func newMemRepo() *memRepo {
	return &memRepo{appts: make(map[uuid.UUID]Appointment)}
}

func (r *memRepo) sorted(keep func(a Appointment) bool) []Appointment {
	var out []Appointment
	for _, a := range r.appts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *memRepo) FindOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot := TimeSlot{Start: start, End: end}
	return r.sorted(func(a Appointment) bool {
		return a.DoctorID == doctorID && a.Status.IsActive() && a.ID != excludeID && a.Slot().Overlaps(slot)
	}), nil
}

func (r *memRepo) FindByDoctorInRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool {
		return a.DoctorID == doctorID && !a.StartTime.Before(from) && a.StartTime.Before(to)
	}), nil
}

func (r *memRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *memRepo) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *memRepo) FindLapsed(ctx context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(a Appointment) bool { return a.Status.IsPending() && a.StartTime.Before(now) }), nil
}

func (r *memRepo) CreateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt.Version == 0 {
		appt.Version = 1
	}
	r.appts[appt.ID] = *appt
	return nil
}

func (r *memRepo) UpdateAppointment(ctx context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook := r.updateHook; hook != nil {
		r.updateHook = nil
		stored := r.appts[appt.ID]
		hook(&stored)
		r.appts[appt.ID] = stored
	}
	stored, ok := r.appts[appt.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if stored.Version != appt.Version {
		return ErrStaleAppointment
	}
	appt.Version++
	r.appts[appt.ID] = *appt
	return nil
}

func (r *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepo) eventTypes(id uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == id {
			out = append(out, ev.EventType)
		}
	}
	return out
}

func (r *memRepo) put(a Appointment) Appointment {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	r.mu.Lock()
	r.appts[a.ID] = a
	r.mu.Unlock()
	return a
}

func (r *memRepo) get(id uuid.UUID) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appts[id]
}

// recordingNotifier keeps every notification and fails the ones fail says to.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail func(n Notification) error
}

func (n *recordingNotifier) Notify(ctx context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		if err := n.fail(note); err != nil {
			return err
		}
	}
	n.sent = append(n.sent, note)
	return nil
}

func (n *recordingNotifier) recipients() []Recipient {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Recipient
	for _, s := range n.sent {
		out = append(out, s.Recipient)
	}
	return out
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Monday 4 March 2030, 08:00 UTC.
var testNow = time.Date(2030, 3, 4, 8, 0, 0, 0, time.UTC)

// on returns hh:mm UTC on the day that is days after testNow.
func on(days, hh, mm int) time.Time {
	return time.Date(2030, 3, 4+days, hh, mm, 0, 0, time.UTC)
}

type fixture struct {
	repo     *memRepo
	notifier *recordingNotifier
	clock    *fakeClock
	svc      *Service
	patient  uuid.UUID
	doctor   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemRepo(),
		notifier: &recordingNotifier{},
		clock:    &fakeClock{now: testNow},
		patient:  uuid.New(),
		doctor:   uuid.New(),
	}
	f.svc = NewService(f.repo, redisclient.NewLocalLocker(), DefaultPolicy(),
		WithNotifier(f.notifier),
		WithClock(f.clock.Now),
	)
	return f
}

// seed stores an appointment for the fixture's doctor and patient.
func (f *fixture) seed(start time.Time, d time.Duration, status Status, loc Location) Appointment {
	return f.repo.put(Appointment{
		PatientID: f.patient,
		DoctorID:  f.doctor,
		StartTime: start,
		EndTime:   start.Add(d),
		Location:  loc,
		Status:    status,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
}
