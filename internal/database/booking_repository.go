package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skyfare/booking-backend/internal/models"
)

// referenceAlphabet excludes the ambiguous characters O/0/1/I so a
// reference read over the phone survives the trip
const referenceAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// referenceSuffixLength is the number of random characters after the prefix
const referenceSuffixLength = 6

// maxReferenceAttempts bounds the collision-retry loop; the store's
// unique constraint on booking_reference is the real guarantee
const maxReferenceAttempts = 10

// BookingRepository handles database operations for bookings table
type BookingRepository struct {
	db        DB
	refPrefix string
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db DB, referencePrefix string) *BookingRepository {
	return &BookingRepository{db: db, refPrefix: referencePrefix}
}

const bookingColumns = `
	id, booking_reference, user_id, outbound_flight_id, return_flight_id,
	is_round_trip, passenger_count, passenger_name, passenger_phone,
	passenger_email, total_amount, currency, payment_status, payment_method,
	payment_reference, paid_at, booking_status, cancelled_at,
	cancellation_reason, special_requests, created_at, updated_at
`

// GenerateReference generates a unique booking reference.
// Format: prefix + 6 chars from a 32-symbol alphabet (no O/0/1/I).
// Example: SKY-7XQ4NM
func (r *BookingRepository) GenerateReference(ctx context.Context) (string, error) {
	for attempts := 0; attempts < maxReferenceAttempts; attempts++ {
		suffix, err := randomReferenceSuffix()
		if err != nil {
			return "", fmt.Errorf("failed to generate reference suffix: %w", err)
		}

		newRef := r.refPrefix + suffix

		// Check if exists
		var count int
		err = r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM bookings WHERE booking_reference = $1`, newRef)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}

		if count == 0 {
			return newRef, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique booking reference after %d attempts", maxReferenceAttempts)
}

func randomReferenceSuffix() (string, error) {
	buf := make([]byte, referenceSuffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, b := range buf {
		sb.WriteByte(referenceAlphabet[int(b)%len(referenceAlphabet)])
	}
	return sb.String(), nil
}

// Create persists a new booking in (pending, unpaid), generating the id
// and the user-facing booking reference
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}

	if booking.BookingReference == "" {
		ref, err := r.GenerateReference(ctx)
		if err != nil {
			return err
		}
		booking.BookingReference = ref
	}

	booking.BookingStatus = models.BookingStatusPending
	booking.PaymentStatus = models.PaymentStatusUnpaid

	query := `
		INSERT INTO bookings (
			id, booking_reference, user_id, outbound_flight_id, return_flight_id,
			is_round_trip, passenger_count, passenger_name, passenger_phone,
			passenger_email, total_amount, currency, payment_status,
			payment_method, payment_reference, booking_status, special_requests
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		booking.ID, booking.BookingReference, booking.UserID,
		booking.OutboundFlightID, booking.ReturnFlightID, booking.IsRoundTrip,
		booking.PassengerCount, booking.PassengerName, booking.PassengerPhone,
		booking.PassengerEmail, booking.TotalAmount, booking.Currency,
		booking.PaymentStatus, booking.PaymentMethod, booking.PaymentReference,
		booking.BookingStatus, booking.SpecialRequests,
	).Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	return nil
}

// GetByID retrieves a booking by ID
func (r *BookingRepository) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.getOne(ctx, query, bookingID)
}

// GetByReference retrieves a booking by booking reference
func (r *BookingRepository) GetByReference(ctx context.Context, reference string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE booking_reference = $1`
	return r.getOne(ctx, query, reference)
}

// GetByPaymentReference retrieves a booking by the tx_ref handed to the
// payment gateway at checkout initiation
func (r *BookingRepository) GetByPaymentReference(ctx context.Context, paymentReference string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_reference = $1`
	return r.getOne(ctx, query, paymentReference)
}

// GetByUserID retrieves all bookings for a user, newest first
func (r *BookingRepository) GetByUserID(ctx context.Context, userID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	bookings := []models.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get bookings for user: %w", err)
	}

	return bookings, nil
}

// SetPaymentReference records the gateway tx_ref and moves the payment
// status to pending once checkout has been initiated
func (r *BookingRepository) SetPaymentReference(ctx context.Context, bookingID, paymentReference string) error {
	query := `
		UPDATE bookings
		SET payment_reference = $2, payment_status = $3, updated_at = NOW()
		WHERE id = $1 AND booking_status = $4
	`

	result, err := r.db.ExecContext(ctx, query, bookingID, paymentReference,
		models.PaymentStatusPending, models.BookingStatusPending)
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set payment reference: %w", err)
	}

	if rows == 0 {
		return ErrStatusConflict
	}

	return nil
}

// Transition applies a guarded status update: the new pair is written only
// if the record still carries the expected current booking status. Zero
// rows affected means another writer got there first and the caller
// receives ErrStatusConflict, which is how duplicate webhook deliveries
// and webhook/verify races resolve to exactly-once application.
func (r *BookingRepository) Transition(
	ctx context.Context,
	bookingID string,
	expectedStatus models.BookingStatus,
	newStatus models.BookingStatus,
	newPaymentStatus models.PaymentStatus,
	reason *string,
) error {
	query := `
		UPDATE bookings
		SET booking_status = $3,
			payment_status = $4,
			paid_at = CASE WHEN $4 = 'paid' THEN NOW() ELSE paid_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN NOW() ELSE cancelled_at END,
			cancellation_reason = COALESCE($5, cancellation_reason),
			updated_at = NOW()
		WHERE id = $1 AND booking_status = $2
	`

	result, err := r.db.ExecContext(ctx, query, bookingID, expectedStatus, newStatus, newPaymentStatus, reason)
	if err != nil {
		return fmt.Errorf("failed to transition booking: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to transition booking: %w", err)
	}

	if rows == 0 {
		return ErrStatusConflict
	}

	return nil
}

// ListStalePending returns bookings still awaiting payment that were
// created before the cutoff. Used by the abandoned-payment sweep.
func (r *BookingRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE booking_status = $1
		  AND payment_status IN ($2, $3)
		  AND created_at < $4
		ORDER BY created_at
		LIMIT $5
	`

	bookings := []models.Booking{}
	err := r.db.SelectContext(ctx, &bookings, query,
		models.BookingStatusPending, models.PaymentStatusUnpaid,
		models.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending bookings: %w", err)
	}

	return bookings, nil
}

func (r *BookingRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.GetContext(ctx, &booking, query, arg)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return &booking, nil
}
