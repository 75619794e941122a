package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentEventType represents the type of payment event
type PaymentEventType string

const (
	PaymentEventCheckoutInitiated  PaymentEventType = "checkout_initiated"
	PaymentEventWebhookReceived    PaymentEventType = "webhook_received"
	PaymentEventVerifyRequested    PaymentEventType = "verify_requested"
	PaymentEventSuccess            PaymentEventType = "payment_success"
	PaymentEventFailed             PaymentEventType = "payment_failed"
	PaymentEventBookingConfirmed   PaymentEventType = "booking_confirmed"
	PaymentEventConfirmationFailed PaymentEventType = "booking_confirmation_failed"
	PaymentEventDuplicateIgnored   PaymentEventType = "duplicate_ignored"
	PaymentEventUnknownReference   PaymentEventType = "unknown_reference"
	PaymentEventError              PaymentEventType = "error"
)

// PaymentEventSource identifies where the event originated
type PaymentEventSource string

const (
	PaymentSourceBackend    PaymentEventSource = "backend"
	PaymentSourceWebhook    PaymentEventSource = "gateway_webhook"
	PaymentSourceGatewayAPI PaymentEventSource = "gateway_api"
	PaymentSourceSystem     PaymentEventSource = "system"
)

// PaymentAudit represents an immutable audit log entry for payment events
type PaymentAudit struct {
	ID               uuid.UUID `json:"id" db:"id"`
	BookingID        *string   `json:"booking_id,omitempty" db:"booking_id"`
	PaymentReference *string   `json:"payment_reference,omitempty" db:"payment_reference"`
	TransactionID    *string   `json:"transaction_id,omitempty" db:"transaction_id"`

	// Event info
	EventType   PaymentEventType   `json:"event_type" db:"event_type"`
	EventSource PaymentEventSource `json:"event_source" db:"event_source"`

	// Amount tracking
	ExpectedAmount *float64 `json:"expected_amount,omitempty" db:"expected_amount"`
	ReceivedAmount *float64 `json:"received_amount,omitempty" db:"received_amount"`
	Currency       *string  `json:"currency,omitempty" db:"currency"`
	AmountsMatch   *bool    `json:"amounts_match,omitempty" db:"amounts_match"`

	// Status from the gateway
	PaymentStatus *string `json:"payment_status,omitempty" db:"payment_status"`

	// Raw payload for debugging disputed events
	RawBody *string `json:"raw_body,omitempty" db:"raw_body"`

	// Error tracking
	ErrorMessage *string `json:"error_message,omitempty" db:"error_message"`
	ReasonCode   *string `json:"reason_code,omitempty" db:"reason_code"`

	// Processing info
	ProcessingTimeMs *int `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	IsDuplicate      bool `json:"is_duplicate" db:"is_duplicate"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty" db:"processed_at"`
}

// NewPaymentAudit creates a new payment audit entry with required fields
func NewPaymentAudit(eventType PaymentEventType, source PaymentEventSource) *PaymentAudit {
	return &PaymentAudit{
		ID:          uuid.New(),
		EventType:   eventType,
		EventSource: source,
		CreatedAt:   time.Now(),
		IsDuplicate: false,
	}
}

// SetBooking sets the booking id for the audit
func (pa *PaymentAudit) SetBooking(bookingID string) *PaymentAudit {
	pa.BookingID = &bookingID
	return pa
}

// SetPaymentReference sets our tx_ref
func (pa *PaymentAudit) SetPaymentReference(ref string) *PaymentAudit {
	pa.PaymentReference = &ref
	return pa
}

// SetTransactionID sets the gateway transaction id
func (pa *PaymentAudit) SetTransactionID(id string) *PaymentAudit {
	pa.TransactionID = &id
	return pa
}

// SetAmounts sets and verifies amounts - returns whether they match
func (pa *PaymentAudit) SetAmounts(expected, received float64, currency string) bool {
	pa.ExpectedAmount = &expected
	pa.ReceivedAmount = &received
	pa.Currency = &currency

	// Compare with tolerance for floating point
	const tolerance = 0.01
	match := abs(expected-received) < tolerance
	pa.AmountsMatch = &match
	return match
}

// SetPaymentStatus sets the payment status reported by the gateway
func (pa *PaymentAudit) SetPaymentStatus(status string) *PaymentAudit {
	pa.PaymentStatus = &status
	return pa
}

// SetRawBody stores the raw payload before parsing
func (pa *PaymentAudit) SetRawBody(body string) *PaymentAudit {
	pa.RawBody = &body
	return pa
}

// SetError sets error information
func (pa *PaymentAudit) SetError(message string, reason *string) *PaymentAudit {
	pa.ErrorMessage = &message
	pa.ReasonCode = reason
	return pa
}

// SetReason sets the reason code recorded with the outcome
func (pa *PaymentAudit) SetReason(reason string) *PaymentAudit {
	pa.ReasonCode = &reason
	return pa
}

// SetProcessingTime calculates and sets processing time
func (pa *PaymentAudit) SetProcessingTime(startTime time.Time) *PaymentAudit {
	durationMs := int(time.Since(startTime).Milliseconds())
	pa.ProcessingTimeMs = &durationMs
	now := time.Now()
	pa.ProcessedAt = &now
	return pa
}

// MarkAsDuplicate marks this event as a duplicate
func (pa *PaymentAudit) MarkAsDuplicate() *PaymentAudit {
	pa.IsDuplicate = true
	return pa
}

// abs returns absolute value of float64
func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
