package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skyfare/booking-backend/internal/config"
	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBookingConfig() *config.BookingConfig {
	return &config.BookingConfig{
		Currency:        "KES",
		TaxRate:         0.16,
		ReferencePrefix: "SKY-",
		MaxPassengers:   9,
	}
}

type bookingFixture struct {
	flights   *mockFlightStore
	bookings  *mockBookingStore
	audits    *mockAuditStore
	gateway   *mockGateway
	publisher *mockPublisher
	service   *BookingService
}

func newBookingFixture(flights ...*models.Flight) *bookingFixture {
	f := &bookingFixture{
		flights:   newMockFlightStore(flights...),
		bookings:  newMockBookingStore(),
		audits:    &mockAuditStore{},
		gateway:   &mockGateway{secret: webhookSecret},
		publisher: &mockPublisher{},
	}
	f.service = NewBookingService(
		f.flights, f.bookings, f.audits, f.gateway,
		NewPricingService(0.16), f.publisher, testBookingConfig(), testLogger(),
	)
	return f
}

func bookableFlight(id string, fare float64, seats int) *models.Flight {
	return &models.Flight{
		ID:             id,
		FlightNumber:   "SF-" + id,
		DepartureTime:  time.Now().Add(48 * time.Hour),
		BaseFare:       fare,
		TotalSeats:     180,
		AvailableSeats: seats,
		Status:         models.FlightStatusScheduled,
	}
}

func createRequest() *models.CreateBookingRequest {
	return &models.CreateBookingRequest{
		OutboundFlightID: "flight-1",
		PassengerCount:   2,
		PassengerName:    "Amina Odhiambo",
		PassengerEmail:   "amina@example.com",
	}
}

func TestInitiate_CreatesPendingBookingWithoutTouchingLedger(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	booking := response.Booking
	assert.Equal(t, models.BookingStatusPending, booking.BookingStatus)
	assert.Equal(t, models.PaymentStatusPending, booking.PaymentStatus)
	assert.InDelta(t, 23200.0, booking.TotalAmount, 0.001)
	assert.Equal(t, "KES", booking.Currency)
	assert.NotNil(t, booking.PaymentReference)
	assert.NotEmpty(t, response.CheckoutURL)

	// Seat counts are untouched until payment confirms
	assert.Equal(t, 50, f.flights.seats("flight-1"))
	assert.Empty(t, f.flights.reserves)

	assert.Equal(t, 1, f.publisher.created)
	assert.True(t, f.audits.hasEvent(models.PaymentEventCheckoutInitiated))
}

func TestInitiate_RoundTripPricesBothLegs(t *testing.T) {
	f := newBookingFixture(
		bookableFlight("flight-1", 10000, 50),
		bookableFlight("flight-2", 8000, 50),
	)

	req := createRequest()
	req.ReturnFlightID = strPtr("flight-2")
	req.PassengerCount = 3

	response, err := f.service.Initiate(context.Background(), "user-1", req)
	require.NoError(t, err)

	assert.True(t, response.Booking.IsRoundTrip)
	assert.InDelta(t, 62640.0, response.Booking.TotalAmount, 0.001)
}

func TestInitiate_ValidationFailures(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	t.Run("zero passengers", func(t *testing.T) {
		req := createRequest()
		req.PassengerCount = 0
		_, err := f.service.Initiate(context.Background(), "user-1", req)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("too many passengers", func(t *testing.T) {
		req := createRequest()
		req.PassengerCount = 10
		_, err := f.service.Initiate(context.Background(), "user-1", req)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("return equals outbound", func(t *testing.T) {
		req := createRequest()
		req.ReturnFlightID = strPtr("flight-1")
		_, err := f.service.Initiate(context.Background(), "user-1", req)
		assert.ErrorIs(t, err, models.ErrValidation)
	})

	t.Run("malformed phone", func(t *testing.T) {
		req := createRequest()
		req.PassengerPhone = strPtr("12345")
		_, err := f.service.Initiate(context.Background(), "user-1", req)
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

func TestInitiate_NormalizesPassengerPhone(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	req := createRequest()
	req.PassengerPhone = strPtr("+254 712 345 678")

	response, err := f.service.Initiate(context.Background(), "user-1", req)
	require.NoError(t, err)
	require.NotNil(t, response.Booking.PassengerPhone)
	assert.Equal(t, "0712345678", *response.Booking.PassengerPhone)
}

func TestInitiate_RejectsUnbookableFlight(t *testing.T) {
	departed := bookableFlight("flight-1", 10000, 50)
	departed.Status = models.FlightStatusDeparted
	f := newBookingFixture(departed)

	_, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	assert.ErrorIs(t, err, ErrFlightNotBookable)
}

func TestInitiate_RejectsWhenAdvisoryAvailabilityTooLow(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 1))

	_, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	assert.ErrorIs(t, err, ErrNotEnoughSeats)
}

func TestInitiate_CheckoutFailureLeavesBookingPending(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))
	f.gateway.checkoutErr = errors.New("gateway down")

	_, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	assert.Error(t, err)

	// The record exists for the expiry sweep to clean up
	bookings, listErr := f.bookings.GetByUserID(context.Background(), "user-1")
	require.NoError(t, listErr)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusPending, bookings[0].BookingStatus)
	assert.Equal(t, models.PaymentStatusUnpaid, bookings[0].PaymentStatus)
}

func TestCancel_PendingBookingReleasesNothing(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(context.Background(), "user-1", response.Booking.ID, nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, cancelled.BookingStatus)
	assert.Equal(t, models.ReasonCustomerCancelled, *cancelled.CancellationReason)
	assert.Empty(t, f.flights.releases)
	assert.Equal(t, 1, f.publisher.cancelled)
}

func TestCancel_ConfirmedBookingReleasesSeats(t *testing.T) {
	flight := bookableFlight("flight-1", 10000, 48)
	confirmed := pendingBooking("b1", "FLW-1", "flight-1")
	confirmed.BookingStatus = models.BookingStatusConfirmed
	confirmed.PaymentStatus = models.PaymentStatusPaid

	f := newBookingFixture(flight)
	f.bookings = newMockBookingStore(confirmed)
	f.service = NewBookingService(
		f.flights, f.bookings, f.audits, f.gateway,
		NewPricingService(0.16), f.publisher, testBookingConfig(), testLogger(),
	)

	cancelled, err := f.service.Cancel(context.Background(), "user-1", "b1", nil, false)
	require.NoError(t, err)

	assert.Equal(t, models.BookingStatusCancelled, cancelled.BookingStatus)
	assert.Equal(t, []string{"flight-1"}, f.flights.releases)
	assert.Equal(t, 50, f.flights.seats("flight-1"))
}

func TestCancel_RepeatedCancellationIsIdempotent(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), "user-1", response.Booking.ID, nil, false)
	require.NoError(t, err)

	// A second cancel succeeds without doing anything
	again, err := f.service.Cancel(context.Background(), "user-1", response.Booking.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, again.BookingStatus)

	// Only one cancellation event went out and nothing was released
	assert.Equal(t, 1, f.publisher.cancelled)
	assert.Empty(t, f.flights.releases)
}

func TestCancel_LosesRaceToConcurrentCancelSucceeds(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	// Another cancel lands between our load and our transition
	f.bookings.beforeTransition = func() {
		reason := models.ReasonAdminCancelled
		_ = f.bookings.Transition(context.Background(), response.Booking.ID,
			models.BookingStatusPending, models.BookingStatusCancelled,
			models.PaymentStatusFailed, &reason)
	}

	cancelled, err := f.service.Cancel(context.Background(), "user-1", response.Booking.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, cancelled.BookingStatus)

	// The loser publishes nothing and releases nothing
	assert.Zero(t, f.publisher.cancelled)
	assert.Empty(t, f.flights.releases)
}

func TestCancel_LosesRaceToConfirmationConflicts(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	// A payment confirms between our load and our transition
	f.bookings.beforeTransition = func() {
		_ = f.bookings.Transition(context.Background(), response.Booking.ID,
			models.BookingStatusPending, models.BookingStatusConfirmed,
			models.PaymentStatusPaid, nil)
	}

	_, err = f.service.Cancel(context.Background(), "user-1", response.Booking.ID, nil, false)
	assert.ErrorIs(t, err, database.ErrStatusConflict)

	status, payStatus := f.bookings.status(response.Booking.ID)
	assert.Equal(t, models.BookingStatusConfirmed, status)
	assert.Equal(t, models.PaymentStatusPaid, payStatus)
}

func TestCancel_OwnershipEnforced(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	_, err = f.service.Cancel(context.Background(), "someone-else", response.Booking.ID, nil, false)
	assert.ErrorIs(t, err, ErrNotOwner)

	// An admin may cancel on the customer's behalf
	cancelled, err := f.service.Cancel(context.Background(), "someone-else", response.Booking.ID, nil, true)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonAdminCancelled, *cancelled.CancellationReason)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	f := newBookingFixture(bookableFlight("flight-1", 10000, 50))

	response, err := f.service.Initiate(context.Background(), "user-1", createRequest())
	require.NoError(t, err)

	_, err = f.service.Get(context.Background(), "someone-else", response.Booking.ID, false)
	assert.ErrorIs(t, err, ErrNotOwner)

	booking, err := f.service.Get(context.Background(), "someone-else", response.Booking.ID, true)
	require.NoError(t, err)
	assert.Equal(t, response.Booking.ID, booking.ID)
}
