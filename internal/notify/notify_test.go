package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type published struct {
	key  string
	body []byte
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{key: routingKey, body: payload})
	return nil
}

func sampleNotification() appointment.Notification {
	link := "https://meet.example.com/abc"
	start := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)
	return appointment.Notification{
		Event:     appointment.EventConfirmed,
		Recipient: appointment.RecipientPatient,
		Appointment: appointment.Appointment{
			ID:                uuid.New(),
			PatientID:         uuid.New(),
			DoctorID:          uuid.New(),
			StartTime:         start,
			EndTime:           start.Add(30 * time.Minute),
			Location:          appointment.LocationOnline,
			Status:            appointment.StatusConfirmed,
			OnlineMeetingLink: &link,
		},
	}
}

func TestRoutingKey(t *testing.T) {
	n := sampleNotification()
	assert.Equal(t, "appointment.confirmed.patient", RoutingKey(n))

	n.Event = appointment.EventBooked
	n.Recipient = appointment.RecipientDoctor
	assert.Equal(t, "appointment.booked.doctor", RoutingKey(n))
}

func TestPublishingNotifier_EncodesMessage(t *testing.T) {
	pub := &recordingPublisher{}
	notifier := NewPublishingNotifier(pub)
	sentAt := time.Date(2030, 3, 1, 8, 0, 0, 0, time.UTC)
	notifier.now = func() time.Time { return sentAt }

	n := sampleNotification()
	require.NoError(t, notifier.Notify(context.Background(), n))
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "appointment.confirmed.patient", pub.msgs[0].key)

	var msg Message
	require.NoError(t, json.Unmarshal(pub.msgs[0].body, &msg))
	assert.Equal(t, n.Appointment.ID.String(), msg.AppointmentID)
	assert.Equal(t, "ONLINE", msg.Location)
	assert.Equal(t, "CONFIRMED", msg.Status)
	require.NotNil(t, msg.MeetingLink)
	assert.Equal(t, "https://meet.example.com/abc", *msg.MeetingLink)
	assert.Nil(t, msg.Reason)
	assert.True(t, msg.SentAt.Equal(sentAt))
	assert.True(t, msg.StartTime.Equal(n.Appointment.StartTime))
}

func TestPublishingNotifier_WrapsPublishError(t *testing.T) {
	boom := errors.New("broker down")
	notifier := NewPublishingNotifier(&recordingPublisher{err: boom})

	err := notifier.Notify(context.Background(), sampleNotification())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "appointment.confirmed.patient")
}

func TestBreakerNotifier_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("broker down")
	calls := 0
	failing := appointment.NotifierFunc(func(ctx context.Context, n appointment.Notification) error {
		calls++
		return boom
	})

	b := NewBreakerNotifier(failing, BreakerConfig{
		Name:             "test-open",
		FailureThreshold: 3,
		Timeout:          time.Hour,
	}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		err := b.Notify(context.Background(), sampleNotification())
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", b.State())

	err := b.Notify(context.Background(), sampleNotification())
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestBreakerNotifier_PassesThroughSuccess(t *testing.T) {
	delivered := 0
	ok := appointment.NotifierFunc(func(ctx context.Context, n appointment.Notification) error {
		delivered++
		return nil
	})

	b := NewBreakerNotifier(ok, BreakerConfig{Name: "test-ok"}, zerolog.Nop())
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Notify(context.Background(), sampleNotification()))
	}
	assert.Equal(t, 10, delivered)
	assert.Equal(t, "closed", b.State())
}

func TestLogNotifier_NeverFails(t *testing.T) {
	n := NewLogNotifier(zerolog.Nop())
	assert.NoError(t, n.Notify(context.Background(), sampleNotification()))
}
