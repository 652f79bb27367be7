package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

// Message is the wire form of a notification. Downstream renderers turn it into email
// or SMS; nothing here knows about templates.
type Message struct {
	Event         string    `json:"event"`
	Recipient     string    `json:"recipient"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Location      string    `json:"location"`
	Status        string    `json:"status"`
	MeetingLink   *string   `json:"meeting_link,omitempty"`
	Reason        *string   `json:"cancellation_reason,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

func NewMessage(n appointment.Notification, now time.Time) Message {
	a := n.Appointment
	return Message{
		Event:         string(n.Event),
		Recipient:     string(n.Recipient),
		AppointmentID: a.ID.String(),
		PatientID:     a.PatientID.String(),
		DoctorID:      a.DoctorID.String(),
		StartTime:     a.StartTime.UTC(),
		EndTime:       a.EndTime.UTC(),
		Location:      string(a.Location),
		Status:        string(a.Status),
		MeetingLink:   a.OnlineMeetingLink,
		Reason:        a.CancellationReason,
		SentAt:        now.UTC(),
	}
}

// RoutingKey is "<event>.<recipient>", e.g. appointment.booked.doctor.
func RoutingKey(n appointment.Notification) string {
	return fmt.Sprintf("%s.%s", n.Event, n.Recipient)
}

// LogNotifier writes notifications to the log. It is the default when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(ctx context.Context, n appointment.Notification) error {
	l.logger.Info().
		Str("event", string(n.Event)).
		Str("recipient", string(n.Recipient)).
		Str("appointment_id", n.Appointment.ID.String()).
		Time("start_time", n.Appointment.StartTime).
		Msg("notification")
	return nil
}

// Publisher sends a payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
}

// PublishingNotifier encodes notifications as JSON and hands them to a Publisher.
type PublishingNotifier struct {
	pub Publisher
	now func() time.Time
}

func NewPublishingNotifier(pub Publisher) *PublishingNotifier {
	return &PublishingNotifier{pub: pub, now: time.Now}
}

func (p *PublishingNotifier) Notify(ctx context.Context, n appointment.Notification) error {
	body, err := json.Marshal(NewMessage(n, p.now()))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := p.pub.Publish(ctx, RoutingKey(n), body); err != nil {
		return fmt.Errorf("publish %s: %w", RoutingKey(n), err)
	}
	return nil
}
