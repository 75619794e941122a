package services

import (
	"context"
	"time"

	"github.com/skyfare/booking-backend/internal/models"
)

// FlightStore is the seat ledger surface the services depend on
type FlightStore interface {
	GetByID(ctx context.Context, flightID string) (*models.Flight, error)
	Search(ctx context.Context, origin, destination, date string) ([]models.Flight, error)
	ReserveSeats(ctx context.Context, flightID string, count int) error
	ReleaseSeats(ctx context.Context, flightID string, count int) error
}

// BookingStore is the booking record surface the services depend on
type BookingStore interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	GetByReference(ctx context.Context, reference string) (*models.Booking, error)
	GetByPaymentReference(ctx context.Context, paymentReference string) (*models.Booking, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Booking, error)
	SetPaymentReference(ctx context.Context, bookingID, paymentReference string) error
	Transition(ctx context.Context, bookingID string, expectedStatus models.BookingStatus,
		newStatus models.BookingStatus, newPaymentStatus models.PaymentStatus, reason *string) error
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error)
}

// AuditStore records the immutable payment event trail
type AuditStore interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
	HasSuccessEvent(ctx context.Context, paymentReference string) (bool, error)
}

// PaymentGateway is the checkout and verification surface of the
// payment provider
type PaymentGateway interface {
	InitiateCheckout(ctx context.Context, params *InitiateCheckoutParams) (string, error)
	VerifyTransaction(ctx context.Context, transactionID string) (*TransactionDetails, error)
	VerifyWebhookSignature(signature string) bool
	ParseWebhook(body []byte) (*WebhookPayload, error)
	IsSuccessful(details *TransactionDetails) bool
}

// EventPublisher publishes booking lifecycle events. Implementations
// must tolerate being called with a background context after the
// request that triggered them has completed.
type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, booking *models.Booking)
	PublishBookingConfirmed(ctx context.Context, booking *models.Booking)
	PublishBookingCancelled(ctx context.Context, booking *models.Booking, reason string)
}

// Clock lets tests pin time-dependent behavior
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the production clock
var SystemClock Clock = systemClock{}
