package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/models"
)

// PaymentAuditRepository handles payment audit operations
type PaymentAuditRepository struct {
	db     DB
	logger *logrus.Logger
}

// NewPaymentAuditRepository creates a new payment audit repository
func NewPaymentAuditRepository(db DB, logger *logrus.Logger) *PaymentAuditRepository {
	return &PaymentAuditRepository{
		db:     db,
		logger: logger,
	}
}

// Log creates a new payment audit entry.
// This should NEVER fail silently - payment events must be logged.
func (r *PaymentAuditRepository) Log(ctx context.Context, audit *models.PaymentAudit) error {
	if audit == nil {
		return fmt.Errorf("audit entry cannot be nil")
	}

	if audit.ID == uuid.Nil {
		audit.ID = uuid.New()
	}
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO payment_audit (
			id, booking_id, payment_reference, transaction_id, event_type,
			event_source, expected_amount, received_amount, amounts_match,
			currency, payment_status, raw_body, error_message, reason_code,
			processing_time_ms, is_duplicate, created_at, processed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
	`

	_, err := r.db.ExecContext(
		ctx, query,
		audit.ID, audit.BookingID, audit.PaymentReference, audit.TransactionID,
		audit.EventType, audit.EventSource, audit.ExpectedAmount,
		audit.ReceivedAmount, audit.AmountsMatch, audit.Currency,
		audit.PaymentStatus, audit.RawBody, audit.ErrorMessage,
		audit.ReasonCode, audit.ProcessingTimeMs, audit.IsDuplicate,
		audit.CreatedAt, audit.ProcessedAt,
	)
	if err != nil {
		// Audit failures must be loud even when the caller moves on
		r.logger.WithFields(logrus.Fields{
			"payment_reference": audit.PaymentReference,
			"event_type":        audit.EventType,
			"error":             err.Error(),
		}).Error("CRITICAL: failed to persist payment audit entry")
		return fmt.Errorf("failed to log payment audit: %w", err)
	}

	return nil
}

// HasSuccessEvent reports whether a success event has already been
// recorded for the given payment reference. Used to flag duplicate
// gateway deliveries before the status transition even runs.
func (r *PaymentAuditRepository) HasSuccessEvent(ctx context.Context, paymentReference string) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM payment_audit
		WHERE payment_reference = $1 AND event_type = $2
	`

	err := r.db.GetContext(ctx, &count, query, paymentReference, models.PaymentEventSuccess)
	if err != nil {
		return false, fmt.Errorf("failed to check for prior success event: %w", err)
	}

	return count > 0, nil
}

// GetByPaymentReference returns the full audit trail for a payment
// reference in chronological order
func (r *PaymentAuditRepository) GetByPaymentReference(ctx context.Context, paymentReference string) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, payment_reference, transaction_id, event_type,
			event_source, expected_amount, received_amount, amounts_match,
			currency, payment_status, raw_body, error_message, reason_code,
			processing_time_ms, is_duplicate, created_at, processed_at
		FROM payment_audit
		WHERE payment_reference = $1
		ORDER BY created_at
	`

	entries := []models.PaymentAudit{}
	if err := r.db.SelectContext(ctx, &entries, query, paymentReference); err != nil {
		return nil, fmt.Errorf("failed to get payment audit trail: %w", err)
	}

	return entries, nil
}

// GetAmountMismatches returns recent audit entries where the gateway
// reported an amount that did not match the booking total
func (r *PaymentAuditRepository) GetAmountMismatches(ctx context.Context, since time.Time, limit int) ([]models.PaymentAudit, error) {
	query := `
		SELECT id, booking_id, payment_reference, transaction_id, event_type,
			event_source, expected_amount, received_amount, amounts_match,
			currency, payment_status, raw_body, error_message, reason_code,
			processing_time_ms, is_duplicate, created_at, processed_at
		FROM payment_audit
		WHERE amounts_match = FALSE AND created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	entries := []models.PaymentAudit{}
	if err := r.db.SelectContext(ctx, &entries, query, since, limit); err != nil {
		return nil, fmt.Errorf("failed to get amount mismatches: %w", err)
	}

	return entries, nil
}
