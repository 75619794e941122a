package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/models"
)

// Booking lifecycle event types published to the bookings topic
const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
)

// BookingEvent is the message published on every booking lifecycle change
type BookingEvent struct {
	Type             string    `json:"type"`
	BookingID        string    `json:"booking_id"`
	BookingReference string    `json:"booking_reference"`
	UserID           string    `json:"user_id"`
	FlightIDs        []string  `json:"flight_ids"`
	PassengerCount   int       `json:"passenger_count"`
	TotalAmount      float64   `json:"total_amount"`
	Currency         string    `json:"currency"`
	PaymentStatus    string    `json:"payment_status"`
	BookingStatus    string    `json:"booking_status"`
	Reason           string    `json:"reason,omitempty"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// Producer publishes booking events to Kafka. A nil *Producer is a
// valid no-op publisher so deployments without Kafka skip eventing.
type Producer struct {
	writer *kafka.Writer
	logger *logrus.Logger
}

// NewProducer creates a Kafka producer for the given brokers and topic.
// Returns nil when no brokers are configured.
func NewProducer(brokers []string, topic string, logger *logrus.Logger) *Producer {
	if len(brokers) == 0 {
		return nil
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{writer: writer, logger: logger}
}

// Publish sends a booking event keyed by booking id so events for one
// booking land on the same partition in order. Publish failures are
// logged but never fail the booking operation that triggered them.
func (p *Producer) Publish(ctx context.Context, event *BookingEvent) {
	if p == nil {
		return
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal booking event")
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BookingID),
		Value: data,
	})
	if err != nil {
		p.logger.WithFields(logrus.Fields{
			"event_type": event.Type,
			"booking_id": event.BookingID,
			"error":      err.Error(),
		}).Error("Failed to publish booking event")
		return
	}

	p.logger.WithFields(logrus.Fields{
		"event_type": event.Type,
		"booking_id": event.BookingID,
	}).Debug("Booking event published")
}

// PublishBookingCreated publishes a booking.created event
func (p *Producer) PublishBookingCreated(ctx context.Context, booking *models.Booking) {
	p.Publish(ctx, eventFromBooking(EventBookingCreated, booking, ""))
}

// PublishBookingConfirmed publishes a booking.confirmed event
func (p *Producer) PublishBookingConfirmed(ctx context.Context, booking *models.Booking) {
	p.Publish(ctx, eventFromBooking(EventBookingConfirmed, booking, ""))
}

// PublishBookingCancelled publishes a booking.cancelled event with the
// cancellation reason code
func (p *Producer) PublishBookingCancelled(ctx context.Context, booking *models.Booking, reason string) {
	p.Publish(ctx, eventFromBooking(EventBookingCancelled, booking, reason))
}

func eventFromBooking(eventType string, b *models.Booking, reason string) *BookingEvent {
	return &BookingEvent{
		Type:             eventType,
		BookingID:        b.ID,
		BookingReference: b.BookingReference,
		UserID:           b.UserID,
		FlightIDs:        b.FlightIDs(),
		PassengerCount:   b.PassengerCount,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
		PaymentStatus:    string(b.PaymentStatus),
		BookingStatus:    string(b.BookingStatus),
		Reason:           reason,
	}
}

// Close flushes and closes the underlying writer
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
