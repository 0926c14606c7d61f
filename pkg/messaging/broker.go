package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Publisher defines the interface for publishing messages
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload interface{}) error
}

// Appointment lifecycle channels.
const (
	ChannelAppointmentCreated   = "appointment.created"
	ChannelAppointmentUpdated   = "appointment.updated"
	ChannelAppointmentCancelled = "appointment.cancelled"
)
