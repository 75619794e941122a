package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
)

// mockFlightStore is an in-memory seat ledger with the same conditional
// semantics as the SQL implementation
type mockFlightStore struct {
	mu         sync.Mutex
	flights    map[string]*models.Flight
	reserveErr map[string]error // forced errors per flight id
	reserves   []string
	releases   []string
}

func newMockFlightStore(flights ...*models.Flight) *mockFlightStore {
	store := &mockFlightStore{
		flights:    map[string]*models.Flight{},
		reserveErr: map[string]error{},
	}
	for _, f := range flights {
		store.flights[f.ID] = f
	}
	return store
}

func (m *mockFlightStore) GetByID(_ context.Context, flightID string) (*models.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flight, ok := m.flights[flightID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *flight
	return &copied, nil
}

func (m *mockFlightStore) Search(_ context.Context, _, _, _ string) ([]models.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Flight{}
	for _, f := range m.flights {
		out = append(out, *f)
	}
	return out, nil
}

func (m *mockFlightStore) ReserveSeats(_ context.Context, flightID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.reserveErr[flightID]; ok {
		return err
	}

	flight, ok := m.flights[flightID]
	if !ok {
		return database.ErrNotFound
	}
	if flight.AvailableSeats < count {
		return database.ErrInsufficientSeats
	}
	flight.AvailableSeats -= count
	m.reserves = append(m.reserves, flightID)
	return nil
}

func (m *mockFlightStore) ReleaseSeats(_ context.Context, flightID string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	flight, ok := m.flights[flightID]
	if !ok {
		return database.ErrNotFound
	}
	flight.AvailableSeats += count
	if flight.AvailableSeats > flight.TotalSeats {
		flight.AvailableSeats = flight.TotalSeats
	}
	m.releases = append(m.releases, flightID)
	return nil
}

func (m *mockFlightStore) seats(flightID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flights[flightID].AvailableSeats
}

// mockBookingStore keeps bookings in memory and applies the same guarded
// transition semantics as the SQL store
type mockBookingStore struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	nextID   int

	// beforeTransition runs once immediately before the next Transition
	// call, letting tests interleave a competing state change
	beforeTransition func()
}

func newMockBookingStore(bookings ...*models.Booking) *mockBookingStore {
	store := &mockBookingStore{bookings: map[string]*models.Booking{}}
	for _, b := range bookings {
		store.bookings[b.ID] = b
	}
	return store
}

func (m *mockBookingStore) Create(_ context.Context, booking *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if booking.ID == "" {
		booking.ID = fmt.Sprintf("booking-%d", m.nextID)
	}
	if booking.BookingReference == "" {
		booking.BookingReference = fmt.Sprintf("SKY-TEST%02d", m.nextID)
	}
	booking.BookingStatus = models.BookingStatusPending
	booking.PaymentStatus = models.PaymentStatusUnpaid
	m.bookings[booking.ID] = booking
	return nil
}

func (m *mockBookingStore) GetByID(_ context.Context, bookingID string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *booking
	return &copied, nil
}

func (m *mockBookingStore) GetByReference(_ context.Context, reference string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.BookingReference == reference {
			copied := *b
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockBookingStore) GetByPaymentReference(_ context.Context, paymentReference string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.PaymentReference != nil && *b.PaymentReference == paymentReference {
			copied := *b
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockBookingStore) GetByUserID(_ context.Context, userID string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingStore) SetPaymentReference(_ context.Context, bookingID, paymentReference string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[bookingID]
	if !ok {
		return database.ErrNotFound
	}
	if booking.BookingStatus != models.BookingStatusPending {
		return database.ErrStatusConflict
	}
	booking.PaymentReference = &paymentReference
	booking.PaymentStatus = models.PaymentStatusPending
	return nil
}

func (m *mockBookingStore) Transition(_ context.Context, bookingID string,
	expectedStatus models.BookingStatus, newStatus models.BookingStatus,
	newPaymentStatus models.PaymentStatus, reason *string) error {
	if hook := m.beforeTransition; hook != nil {
		m.beforeTransition = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok {
		return database.ErrNotFound
	}
	if booking.BookingStatus != expectedStatus {
		return database.ErrStatusConflict
	}
	booking.BookingStatus = newStatus
	booking.PaymentStatus = newPaymentStatus
	if reason != nil {
		booking.CancellationReason = reason
	}
	return nil
}

func (m *mockBookingStore) ListStalePending(_ context.Context, cutoff time.Time, _ int) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.BookingStatus == models.BookingStatusPending &&
			(b.PaymentStatus == models.PaymentStatusUnpaid || b.PaymentStatus == models.PaymentStatusPending) &&
			b.CreatedAt.Before(cutoff) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingStore) status(bookingID string) (models.BookingStatus, models.PaymentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bookings[bookingID]
	return b.BookingStatus, b.PaymentStatus
}

// mockAuditStore collects audit entries in memory
type mockAuditStore struct {
	mu      sync.Mutex
	entries []*models.PaymentAudit
}

func (m *mockAuditStore) Log(_ context.Context, audit *models.PaymentAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, audit)
	return nil
}

func (m *mockAuditStore) HasSuccessEvent(_ context.Context, paymentReference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.EventType == models.PaymentEventSuccess &&
			e.PaymentReference != nil && *e.PaymentReference == paymentReference {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockAuditStore) eventTypes() []models.PaymentEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := []models.PaymentEventType{}
	for _, e := range m.entries {
		types = append(types, e.EventType)
	}
	return types
}

func (m *mockAuditStore) lastOfType(eventType models.PaymentEventType) *models.PaymentAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].EventType == eventType {
			return m.entries[i]
		}
	}
	return nil
}

func (m *mockAuditStore) hasEvent(eventType models.PaymentEventType) bool {
	for _, et := range m.eventTypes() {
		if et == eventType {
			return true
		}
	}
	return false
}

// mockGateway fakes the payment provider
type mockGateway struct {
	secret       string
	checkoutURL  string
	checkoutErr  error
	verifyResult *TransactionDetails
	verifyErr    error
}

func (m *mockGateway) InitiateCheckout(_ context.Context, _ *InitiateCheckoutParams) (string, error) {
	if m.checkoutErr != nil {
		return "", m.checkoutErr
	}
	if m.checkoutURL == "" {
		return "https://checkout.test/pay/abc", nil
	}
	return m.checkoutURL, nil
}

func (m *mockGateway) VerifyTransaction(_ context.Context, _ string) (*TransactionDetails, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.verifyResult, nil
}

func (m *mockGateway) VerifyWebhookSignature(signature string) bool {
	return signature != "" && signature == m.secret
}

func (m *mockGateway) ParseWebhook(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Data.TxRef == "" {
		return nil, fmt.Errorf("webhook payload missing tx_ref")
	}
	return &payload, nil
}

func (m *mockGateway) IsSuccessful(details *TransactionDetails) bool {
	return details.Status == FlutterwaveStatusSuccessful
}

// mockPublisher counts published events
type mockPublisher struct {
	mu        sync.Mutex
	created   int
	confirmed int
	cancelled int
	reasons   []string
}

func (m *mockPublisher) PublishBookingCreated(_ context.Context, _ *models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *mockPublisher) PublishBookingConfirmed(_ context.Context, _ *models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmed++
}

func (m *mockPublisher) PublishBookingCancelled(_ context.Context, _ *models.Booking, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled++
	m.reasons = append(m.reasons, reason)
}
