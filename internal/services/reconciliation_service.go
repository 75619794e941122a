package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
)

// ErrInvalidSignature means the webhook did not carry a valid verif-hash
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ReconcileOutcome is what happened when a payment event was applied
type ReconcileOutcome string

const (
	// OutcomeConfirmed means seats were reserved and the booking moved
	// to (confirmed, paid)
	OutcomeConfirmed ReconcileOutcome = "confirmed"
	// OutcomeFailed means the booking moved to (cancelled, failed)
	OutcomeFailed ReconcileOutcome = "failed"
	// OutcomeIgnored means the event was a duplicate or lost a race and
	// changed nothing
	OutcomeIgnored ReconcileOutcome = "ignored"
	// OutcomeUnknown means no booking matched the payment reference
	OutcomeUnknown ReconcileOutcome = "unknown_reference"
)

// ReconcileResult is returned to the transport layer after applying a
// payment event
type ReconcileResult struct {
	Outcome ReconcileOutcome `json:"outcome"`
	Booking *models.Booking  `json:"booking,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// ReconciliationService applies gateway payment events to bookings.
// Both delivery paths (asynchronous webhook and client-driven verify)
// funnel into the same settle step, and the guarded status transition
// on the booking record makes whichever arrives second a no-op.
type ReconciliationService struct {
	flights  FlightStore
	bookings BookingStore
	audits   AuditStore
	gateway  PaymentGateway
	events   EventPublisher
	logger   *logrus.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	flights FlightStore,
	bookings BookingStore,
	audits AuditStore,
	gateway PaymentGateway,
	events EventPublisher,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		flights:  flights,
		bookings: bookings,
		audits:   audits,
		gateway:  gateway,
		events:   events,
		logger:   logger,
	}
}

// HandleWebhook authenticates and applies a gateway webhook delivery.
// Returns ErrInvalidSignature for a bad verif-hash; any other error
// means processing failed in a retryable way and the transport should
// ask the gateway to redeliver.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, signature string, body []byte) (*ReconcileResult, error) {
	startTime := time.Now()

	if !s.gateway.VerifyWebhookSignature(signature) {
		s.logger.Warn("Webhook rejected: signature mismatch")
		return nil, ErrInvalidSignature
	}

	payload, err := s.gateway.ParseWebhook(body)
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceWebhook).
			SetRawBody(string(body)).
			SetError(err.Error(), nil)
		audit.SetProcessingTime(startTime)
		s.logAudit(ctx, audit)
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventWebhookReceived, models.PaymentSourceWebhook).
		SetPaymentReference(payload.Data.TxRef).
		SetTransactionID(strconv.FormatInt(payload.Data.ID, 10)).
		SetPaymentStatus(payload.Data.Status).
		SetRawBody(string(body))
	s.flagRedelivery(ctx, audit, payload.Data.TxRef)
	audit.SetProcessingTime(startTime)
	s.logAudit(ctx, audit)

	return s.settle(ctx, &payload.Data, models.PaymentSourceWebhook)
}

// VerifyPayment is the client-driven path: the browser lands back on our
// redirect page with a transaction id, and we ask the gateway directly
// for the authoritative transaction state before settling.
func (s *ReconciliationService) VerifyPayment(ctx context.Context, transactionID string) (*ReconcileResult, error) {
	startTime := time.Now()

	details, err := s.gateway.VerifyTransaction(ctx, transactionID)
	if err != nil {
		audit := models.NewPaymentAudit(models.PaymentEventError, models.PaymentSourceGatewayAPI).
			SetTransactionID(transactionID).
			SetError(err.Error(), nil)
		audit.SetProcessingTime(startTime)
		s.logAudit(ctx, audit)
		return nil, err
	}

	audit := models.NewPaymentAudit(models.PaymentEventVerifyRequested, models.PaymentSourceGatewayAPI).
		SetPaymentReference(details.TxRef).
		SetTransactionID(transactionID).
		SetPaymentStatus(details.Status)
	s.flagRedelivery(ctx, audit, details.TxRef)
	audit.SetProcessingTime(startTime)
	s.logAudit(ctx, audit)

	return s.settle(ctx, details, models.PaymentSourceGatewayAPI)
}

// settle applies one authoritative gateway transaction state to the
// matching booking. Order on success is deliberate: reserve seats
// first, then take the guarded transition to (confirmed, paid). The
// transition loser rolls its reservation back, so concurrent webhook
// and verify deliveries decrement each seat exactly once.
func (s *ReconciliationService) settle(ctx context.Context, details *TransactionDetails, source models.PaymentEventSource) (*ReconcileResult, error) {
	booking, err := s.bookings.GetByPaymentReference(ctx, details.TxRef)
	if err == database.ErrNotFound {
		audit := models.NewPaymentAudit(models.PaymentEventUnknownReference, source).
			SetPaymentReference(details.TxRef).
			SetPaymentStatus(details.Status)
		s.logAudit(ctx, audit)
		s.logger.WithField("tx_ref", details.TxRef).Warn("Payment event for unknown reference")
		return &ReconcileResult{Outcome: OutcomeUnknown}, nil
	}
	if err != nil {
		return nil, err
	}

	if booking.IsSettled() {
		s.auditDuplicate(ctx, booking, details, source)
		return &ReconcileResult{Outcome: OutcomeIgnored, Booking: booking}, nil
	}

	if !s.gateway.IsSuccessful(details) {
		return s.settleFailed(ctx, booking, details, source)
	}

	// Amount and currency must match what the customer agreed to pay.
	// A successful charge for the wrong amount is treated as a failed
	// payment, never a confirmation.
	audit := models.NewPaymentAudit(models.PaymentEventSuccess, source).
		SetBooking(booking.ID).
		SetPaymentReference(details.TxRef).
		SetTransactionID(strconv.FormatInt(details.ID, 10)).
		SetPaymentStatus(details.Status)
	amountsMatch := audit.SetAmounts(booking.TotalAmount, details.Amount, details.Currency)
	if details.Currency != booking.Currency {
		amountsMatch = false
		falseVal := false
		audit.AmountsMatch = &falseVal
	}

	if !amountsMatch {
		audit.EventType = models.PaymentEventFailed
		audit.SetReason(models.ReasonAmountMismatch)
		s.logAudit(ctx, audit)

		s.logger.WithFields(logrus.Fields{
			"booking_id": booking.ID,
			"expected":   booking.TotalAmount,
			"received":   details.Amount,
			"currency":   details.Currency,
		}).Error("Payment amount mismatch, refusing confirmation")

		return s.cancelUnconfirmed(ctx, booking, models.ReasonAmountMismatch, source)
	}

	s.logAudit(ctx, audit)

	return s.confirm(ctx, booking, details, source)
}

// confirm reserves seats for every leg and takes the booking to
// (confirmed, paid)
func (s *ReconciliationService) confirm(ctx context.Context, booking *models.Booking, details *TransactionDetails, source models.PaymentEventSource) (*ReconcileResult, error) {
	reserved := []string{}
	for _, flightID := range booking.FlightIDs() {
		if err := s.flights.ReserveSeats(ctx, flightID, booking.PassengerCount); err != nil {
			// Roll back legs already reserved so a half-reserved round
			// trip never leaks seats.
			s.rollbackReservations(ctx, booking, reserved)

			if err == database.ErrInsufficientSeats {
				s.logger.WithFields(logrus.Fields{
					"booking_id": booking.ID,
					"flight_id":  flightID,
				}).Warn("Sold out at confirmation time")

				confirmAudit := models.NewPaymentAudit(models.PaymentEventConfirmationFailed, source).
					SetBooking(booking.ID).
					SetPaymentReference(details.TxRef).
					SetReason(models.ReasonSoldOutAtConfirmation)
				s.logAudit(ctx, confirmAudit)

				return s.cancelUnconfirmed(ctx, booking, models.ReasonSoldOutAtConfirmation, source)
			}
			return nil, fmt.Errorf("failed to reserve seats: %w", err)
		}
		reserved = append(reserved, flightID)
	}

	err := s.bookings.Transition(ctx, booking.ID, models.BookingStatusPending,
		models.BookingStatusConfirmed, models.PaymentStatusPaid, nil)
	if err == database.ErrStatusConflict {
		// Lost the race to a concurrent delivery of the same payment.
		// The winner holds the seats; give ours back.
		s.rollbackReservations(ctx, booking, reserved)
		s.auditDuplicate(ctx, booking, details, source)
		return &ReconcileResult{Outcome: OutcomeIgnored, Booking: booking}, nil
	}
	if err != nil {
		// Transition failed after seats were reserved. Release them and
		// surface the error so the gateway retries the delivery.
		s.rollbackReservations(ctx, booking, reserved)
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}

	booking.BookingStatus = models.BookingStatusConfirmed
	booking.PaymentStatus = models.PaymentStatusPaid

	confirmAudit := models.NewPaymentAudit(models.PaymentEventBookingConfirmed, source).
		SetBooking(booking.ID).
		SetPaymentReference(details.TxRef).
		SetTransactionID(strconv.FormatInt(details.ID, 10))
	s.logAudit(ctx, confirmAudit)

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"tx_ref":            details.TxRef,
	}).Info("Booking confirmed")

	s.events.PublishBookingConfirmed(ctx, booking)

	return &ReconcileResult{Outcome: OutcomeConfirmed, Booking: booking}, nil
}

// settleFailed handles a gateway-reported failed or cancelled charge
func (s *ReconciliationService) settleFailed(ctx context.Context, booking *models.Booking, details *TransactionDetails, source models.PaymentEventSource) (*ReconcileResult, error) {
	audit := models.NewPaymentAudit(models.PaymentEventFailed, source).
		SetBooking(booking.ID).
		SetPaymentReference(details.TxRef).
		SetTransactionID(strconv.FormatInt(details.ID, 10)).
		SetPaymentStatus(details.Status).
		SetReason(models.ReasonPaymentFailed)
	s.logAudit(ctx, audit)

	return s.cancelUnconfirmed(ctx, booking, models.ReasonPaymentFailed, source)
}

// cancelUnconfirmed moves a pending booking to (cancelled, failed). No
// seats are released because an unconfirmed booking never held any.
func (s *ReconciliationService) cancelUnconfirmed(ctx context.Context, booking *models.Booking, reason string, source models.PaymentEventSource) (*ReconcileResult, error) {
	err := s.bookings.Transition(ctx, booking.ID, models.BookingStatusPending,
		models.BookingStatusCancelled, models.PaymentStatusFailed, &reason)
	if err == database.ErrStatusConflict {
		current, getErr := s.bookings.GetByID(ctx, booking.ID)
		if getErr == nil {
			booking = current
		}
		return &ReconcileResult{Outcome: OutcomeIgnored, Booking: booking}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	booking.BookingStatus = models.BookingStatusCancelled
	booking.PaymentStatus = models.PaymentStatusFailed
	booking.CancellationReason = &reason

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"reason":     reason,
	}).Info("Booking cancelled by payment reconciliation")

	s.events.PublishBookingCancelled(ctx, booking, reason)

	return &ReconcileResult{Outcome: OutcomeFailed, Booking: booking, Reason: reason}, nil
}

func (s *ReconciliationService) rollbackReservations(ctx context.Context, booking *models.Booking, flightIDs []string) {
	for _, flightID := range flightIDs {
		if err := s.flights.ReleaseSeats(ctx, flightID, booking.PassengerCount); err != nil {
			s.logger.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"flight_id":  flightID,
				"error":      err.Error(),
			}).Error("CRITICAL: failed to roll back seat reservation")
		}
	}
}

// flagRedelivery marks an incoming-event audit as a duplicate when a
// success was already recorded for the payment reference. Purely
// observational: the guarded transition stays the arbiter of what a
// redelivery may change, so this can never strand a retried
// confirmation.
func (s *ReconciliationService) flagRedelivery(ctx context.Context, audit *models.PaymentAudit, txRef string) {
	seen, err := s.audits.HasSuccessEvent(ctx, txRef)
	if err != nil {
		s.logger.WithError(err).WithField("tx_ref", txRef).Warn("Could not check for prior success event")
		return
	}
	if seen {
		audit.MarkAsDuplicate()
	}
}

func (s *ReconciliationService) auditDuplicate(ctx context.Context, booking *models.Booking, details *TransactionDetails, source models.PaymentEventSource) {
	audit := models.NewPaymentAudit(models.PaymentEventDuplicateIgnored, source).
		SetBooking(booking.ID).
		SetPaymentReference(details.TxRef).
		SetPaymentStatus(details.Status).
		MarkAsDuplicate()
	s.logAudit(ctx, audit)

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"tx_ref":     details.TxRef,
	}).Info("Duplicate payment event ignored")
}

// logAudit writes an audit entry, degrading to a log line when the
// store is unavailable. Audit failures never fail reconciliation.
func (s *ReconciliationService) logAudit(ctx context.Context, audit *models.PaymentAudit) {
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).WithField("event_type", audit.EventType).Error("Failed to write payment audit entry")
	}
}
