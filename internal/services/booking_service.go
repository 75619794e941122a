package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/config"
	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
	"github.com/skyfare/booking-backend/pkg/validator"
)

// Service-level errors surfaced to handlers for status mapping
var (
	ErrFlightNotBookable = errors.New("flight is not open for booking")
	ErrNotEnoughSeats    = errors.New("not enough seats available")
	ErrNotOwner          = errors.New("booking belongs to a different user")
)

// BookingService owns booking creation, cancellation and reads.
// Creation never touches the seat ledger: seats are committed only when
// payment reconciliation confirms the booking.
type BookingService struct {
	flights  FlightStore
	bookings BookingStore
	audits   AuditStore
	gateway  PaymentGateway
	pricing  *PricingService
	events   EventPublisher
	phones   *validator.PhoneValidator
	cfg      *config.BookingConfig
	logger   *logrus.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	flights FlightStore,
	bookings BookingStore,
	audits AuditStore,
	gateway PaymentGateway,
	pricing *PricingService,
	events EventPublisher,
	cfg *config.BookingConfig,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		flights:  flights,
		bookings: bookings,
		audits:   audits,
		gateway:  gateway,
		pricing:  pricing,
		events:   events,
		phones:   validator.NewPhoneValidator(),
		cfg:      cfg,
		logger:   logger,
	}
}

// Initiate creates a pending booking and a hosted checkout session.
// The booking is priced from current fares, stored as (pending, unpaid)
// and handed a gateway payment reference. No seats are reserved here.
func (s *BookingService) Initiate(ctx context.Context, userID string, req *models.CreateBookingRequest) (*models.BookingResponse, error) {
	if err := req.Validate(s.cfg.MaxPassengers); err != nil {
		return nil, err
	}

	if req.PassengerPhone != nil && *req.PassengerPhone != "" {
		phone, err := s.phones.Validate(*req.PassengerPhone)
		if err != nil {
			return nil, fmt.Errorf("%w: passenger_phone: %v", models.ErrValidation, err)
		}
		req.PassengerPhone = &phone
	}

	outbound, err := s.flights.GetByID(ctx, req.OutboundFlightID)
	if err != nil {
		return nil, fmt.Errorf("outbound flight: %w", err)
	}

	var returnFlight *models.Flight
	if req.IsRoundTrip() {
		returnFlight, err = s.flights.GetByID(ctx, *req.ReturnFlightID)
		if err != nil {
			return nil, fmt.Errorf("return flight: %w", err)
		}
	}

	// Advisory availability check. The ledger is the real arbiter at
	// confirmation time, this just rejects obviously doomed bookings.
	for _, f := range flightsOf(outbound, returnFlight) {
		if !f.IsBookable() {
			return nil, fmt.Errorf("%w: %s", ErrFlightNotBookable, f.FlightNumber)
		}
		if f.AvailableSeats < req.PassengerCount {
			return nil, fmt.Errorf("%w on flight %s", ErrNotEnoughSeats, f.FlightNumber)
		}
	}

	quote, err := s.pricing.Price(outbound, returnFlight, req.PassengerCount, req.IsRoundTrip())
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		UserID:           userID,
		OutboundFlightID: req.OutboundFlightID,
		ReturnFlightID:   req.ReturnFlightID,
		IsRoundTrip:      req.IsRoundTrip(),
		PassengerCount:   req.PassengerCount,
		PassengerName:    req.PassengerName,
		PassengerPhone:   req.PassengerPhone,
		PassengerEmail:   req.PassengerEmail,
		TotalAmount:      quote.Total,
		Currency:         s.cfg.Currency,
		PaymentMethod:    req.PaymentMethod,
		SpecialRequests:  req.SpecialRequests,
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"user_id":           userID,
		"total_amount":      booking.TotalAmount,
		"round_trip":        booking.IsRoundTrip,
	}).Info("Booking created, initiating checkout")

	txRef := "FLW-" + uuid.New().String()

	checkoutURL, err := s.gateway.InitiateCheckout(ctx, &InitiateCheckoutParams{
		TxRef:         txRef,
		Amount:        booking.TotalAmount,
		Currency:      booking.Currency,
		CustomerName:  booking.PassengerName,
		CustomerEmail: booking.PassengerEmail,
		CustomerPhone: stringOrEmpty(booking.PassengerPhone),
		BookingRef:    booking.BookingReference,
		Description:   fmt.Sprintf("Flight booking %s", booking.BookingReference),
	})
	if err != nil {
		// The booking stays (pending, unpaid); the abandoned-payment
		// sweep will expire it if the customer never retries.
		s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Checkout initiation failed")
		return nil, fmt.Errorf("failed to initiate checkout: %w", err)
	}

	if err := s.bookings.SetPaymentReference(ctx, booking.ID, txRef); err != nil {
		return nil, fmt.Errorf("failed to attach payment reference: %w", err)
	}
	booking.PaymentReference = &txRef
	booking.PaymentStatus = models.PaymentStatusPending

	audit := models.NewPaymentAudit(models.PaymentEventCheckoutInitiated, models.PaymentSourceBackend).
		SetBooking(booking.ID).
		SetPaymentReference(txRef)
	audit.SetAmounts(booking.TotalAmount, booking.TotalAmount, booking.Currency)
	if err := s.audits.Log(ctx, audit); err != nil {
		s.logger.WithError(err).Warn("Failed to audit checkout initiation")
	}

	s.events.PublishBookingCreated(ctx, booking)

	return &models.BookingResponse{Booking: booking, CheckoutURL: checkoutURL}, nil
}

// Get returns a booking by id, enforcing ownership unless the caller is
// an admin
func (s *BookingService) Get(ctx context.Context, userID, bookingID string, isAdmin bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && booking.UserID != userID {
		return nil, ErrNotOwner
	}

	return booking, nil
}

// GetByReference returns a booking by its user-facing reference
func (s *BookingService) GetByReference(ctx context.Context, userID, reference string, isAdmin bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !isAdmin && booking.UserID != userID {
		return nil, ErrNotOwner
	}

	return booking, nil
}

// ListForUser returns all of a user's bookings, newest first
func (s *BookingService) ListForUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.bookings.GetByUserID(ctx, userID)
}

// Cancel cancels a booking. Cancelling an already-cancelled booking is
// an idempotent no-op. The status transition runs first; seats are
// released only after the transition wins, so a booking that raced with
// a concurrent cancel cannot release the same seats twice. The release
// itself is clamped to the flight's total, making a stray double call
// harmless to the ledger.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID string, req *models.CancelBookingRequest, isAdmin bool) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !isAdmin && booking.UserID != userID {
		return nil, ErrNotOwner
	}

	if booking.IsCancelled() {
		return booking, nil
	}

	reason := models.ReasonCustomerCancelled
	if isAdmin && booking.UserID != userID {
		reason = models.ReasonAdminCancelled
	}
	if req != nil && req.CancellationReason != nil && *req.CancellationReason != "" {
		reason = *req.CancellationReason
	}

	heldSeats := booking.SeatsCommitted()

	err = s.bookings.Transition(ctx, booking.ID, booking.BookingStatus,
		models.BookingStatusCancelled, booking.PaymentStatus, &reason)
	if err == database.ErrStatusConflict {
		// Someone else moved the booking first. A concurrent cancel
		// already did our work; anything else (a payment confirming
		// mid-request) needs the caller to look at the new state.
		current, getErr := s.bookings.GetByID(ctx, bookingID)
		if getErr != nil {
			return nil, getErr
		}
		if current.IsCancelled() {
			return current, nil
		}
		return nil, database.ErrStatusConflict
	}
	if err != nil {
		return nil, err
	}

	if heldSeats {
		for _, flightID := range booking.FlightIDs() {
			if err := s.flights.ReleaseSeats(ctx, flightID, booking.PassengerCount); err != nil {
				// The booking is already cancelled; the ledger is off by
				// one release. Loud log for manual reconciliation.
				s.logger.WithFields(logrus.Fields{
					"booking_id": booking.ID,
					"flight_id":  flightID,
					"error":      err.Error(),
				}).Error("CRITICAL: failed to release seats after cancellation")
			}
		}
	}

	booking.BookingStatus = models.BookingStatusCancelled
	booking.CancellationReason = &reason

	s.logger.WithFields(logrus.Fields{
		"booking_id":        booking.ID,
		"booking_reference": booking.BookingReference,
		"reason":            reason,
		"seats_released":    heldSeats,
	}).Info("Booking cancelled")

	s.events.PublishBookingCancelled(ctx, booking, reason)

	return booking, nil
}

func flightsOf(outbound, returnFlight *models.Flight) []*models.Flight {
	flights := []*models.Flight{outbound}
	if returnFlight != nil {
		flights = append(flights, returnFlight)
	}
	return flights
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
