package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation wraps every request validation failure so transports
// can map it to a 400
var ErrValidation = errors.New("validation failed")

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Cancellation reason codes recorded on the booking so downstream
// processes (customer messaging, refunds) can tell the cases apart.
const (
	ReasonPaymentFailed         = "PAYMENT_FAILED"
	ReasonAmountMismatch        = "AMOUNT_MISMATCH"
	ReasonSoldOutAtConfirmation = "SOLD_OUT_AT_CONFIRMATION"
	ReasonPaymentTimeout        = "PAYMENT_TIMEOUT"
	ReasonCustomerCancelled     = "CUSTOMER_CANCELLED"
	ReasonAdminCancelled        = "ADMIN_CANCELLED"
)

// Booking represents a flight reservation, possibly round-trip
type Booking struct {
	ID                 string        `json:"id" db:"id"`
	BookingReference   string        `json:"booking_reference" db:"booking_reference"`
	UserID             string        `json:"user_id" db:"user_id"`
	OutboundFlightID   string        `json:"outbound_flight_id" db:"outbound_flight_id"`
	ReturnFlightID     *string       `json:"return_flight_id,omitempty" db:"return_flight_id"`
	IsRoundTrip        bool          `json:"is_round_trip" db:"is_round_trip"`
	PassengerCount     int           `json:"passenger_count" db:"passenger_count"`
	PassengerName      string        `json:"passenger_name" db:"passenger_name"`
	PassengerPhone     *string       `json:"passenger_phone,omitempty" db:"passenger_phone"`
	PassengerEmail     string        `json:"passenger_email" db:"passenger_email"`
	TotalAmount        float64       `json:"total_amount" db:"total_amount"`
	Currency           string        `json:"currency" db:"currency"`
	PaymentStatus      PaymentStatus `json:"payment_status" db:"payment_status"`
	PaymentMethod      *string       `json:"payment_method,omitempty" db:"payment_method"`
	PaymentReference   *string       `json:"payment_reference,omitempty" db:"payment_reference"`
	PaidAt             *time.Time    `json:"paid_at,omitempty" db:"paid_at"`
	BookingStatus      BookingStatus `json:"booking_status" db:"booking_status"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CancellationReason *string       `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	SpecialRequests    *string       `json:"special_requests,omitempty" db:"special_requests"`
	CreatedAt          time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" db:"updated_at"`
}

// FlightIDs returns the flight ids of every leg in this booking
func (b *Booking) FlightIDs() []string {
	ids := []string{b.OutboundFlightID}
	if b.IsRoundTrip && b.ReturnFlightID != nil {
		ids = append(ids, *b.ReturnFlightID)
	}
	return ids
}

// SeatsCommitted reports whether this booking currently holds seats in
// the ledger. Seats are only ever decremented on (confirmed, paid).
func (b *Booking) SeatsCommitted() bool {
	return b.BookingStatus == BookingStatusConfirmed && b.PaymentStatus == PaymentStatusPaid
}

// IsCancelled checks if the booking has reached its terminal cancelled state
func (b *Booking) IsCancelled() bool {
	return b.BookingStatus == BookingStatusCancelled
}

// IsSettled reports whether reconciliation has already run to completion
// for this booking. Any further payment event must be a no-op.
func (b *Booking) IsSettled() bool {
	return b.BookingStatus == BookingStatusConfirmed || b.BookingStatus == BookingStatusCancelled
}

// CreateBookingRequest represents the request to create a booking
type CreateBookingRequest struct {
	OutboundFlightID string  `json:"outbound_flight_id" binding:"required"`
	ReturnFlightID   *string `json:"return_flight_id,omitempty"`
	PassengerCount   int     `json:"passenger_count" binding:"required,min=1"`
	PassengerName    string  `json:"passenger_name" binding:"required"`
	PassengerPhone   *string `json:"passenger_phone,omitempty"`
	PassengerEmail   string  `json:"passenger_email" binding:"required,email"`
	PaymentMethod    *string `json:"payment_method,omitempty"`
	SpecialRequests  *string `json:"special_requests,omitempty"`
}

// IsRoundTrip reports whether a return leg was requested
func (r *CreateBookingRequest) IsRoundTrip() bool {
	return r.ReturnFlightID != nil && *r.ReturnFlightID != ""
}

// Validate validates the create booking request
func (r *CreateBookingRequest) Validate(maxPassengers int) error {
	if r.PassengerCount < 1 {
		return fmt.Errorf("%w: passenger_count must be at least 1", ErrValidation)
	}

	if r.PassengerCount > maxPassengers {
		return fmt.Errorf("%w: at most %d passengers per booking", ErrValidation, maxPassengers)
	}

	if strings.TrimSpace(r.PassengerName) == "" {
		return fmt.Errorf("%w: passenger_name is required", ErrValidation)
	}

	if strings.TrimSpace(r.PassengerEmail) == "" {
		return fmt.Errorf("%w: passenger_email is required", ErrValidation)
	}

	if r.IsRoundTrip() && *r.ReturnFlightID == r.OutboundFlightID {
		return fmt.Errorf("%w: return flight must differ from outbound flight", ErrValidation)
	}

	return nil
}

// CancelBookingRequest represents the request to cancel a booking
type CancelBookingRequest struct {
	CancellationReason *string `json:"cancellation_reason,omitempty"`
}

// VerifyPaymentRequest represents the client-side callback after checkout,
// carrying the gateway transaction id to verify synchronously
type VerifyPaymentRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
}

// BookingResponse is the booking representation returned to clients,
// including the checkout link while payment is still due
type BookingResponse struct {
	Booking     *Booking `json:"booking"`
	CheckoutURL string   `json:"checkout_url,omitempty"`
}
