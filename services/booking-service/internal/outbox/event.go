package outbox

import "time"

// Event is the envelope written to outbox_events. The Kafka topic equals
// EventType.
type Event struct {
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Record is a stored event waiting to be published.
type Record struct {
	ID            int64
	EventID       string
	TenantID      string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Traceparent   string
	Tracestate    string
	CreatedAt     time.Time
}

const (
	AppointmentBooked    = "booking.appointment.booked.v1"
	AppointmentConfirmed = "booking.appointment.confirmed.v1"
	AppointmentCancelled = "booking.appointment.cancelled.v1"
	AppointmentCompleted = "booking.appointment.completed.v1"
	AppointmentNoShow    = "booking.appointment.no_show.v1"

	SettingsUpdated = "tenant.settings.updated.v1"
)
