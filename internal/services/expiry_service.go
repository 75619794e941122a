package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/config"
	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
)

// sweepBatchSize caps how many stale bookings one sweep run touches
const sweepBatchSize = 200

// ExpiryService expires bookings whose customers abandoned checkout.
// A pending booking holds no seats, so expiring it is just a status
// transition; the guarded update means a payment landing mid-sweep
// safely wins over the expiry.
type ExpiryService struct {
	cron     *cron.Cron
	bookings BookingStore
	events   EventPublisher
	clock    Clock
	cfg      *config.Config
	logger   *logrus.Logger
}

// NewExpiryService creates a new expiry service
func NewExpiryService(bookings BookingStore, events EventPublisher, cfg *config.Config, logger *logrus.Logger) *ExpiryService {
	return &ExpiryService{
		cron:     cron.New(cron.WithSeconds()),
		bookings: bookings,
		events:   events,
		clock:    SystemClock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start schedules the abandoned-payment sweep
func (s *ExpiryService) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Worker.ExpirySweepSpec, s.sweepJob)
	if err != nil {
		return fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	s.cron.Start()
	s.logger.WithField("spec", s.cfg.Worker.ExpirySweepSpec).Info("Abandoned-payment sweep scheduled")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *ExpiryService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Expiry service stopped")
}

func (s *ExpiryService) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	expired, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Abandoned-payment sweep failed")
		return
	}

	if expired > 0 {
		s.logger.WithField("expired", expired).Info("Abandoned-payment sweep completed")
	}
}

// SweepOnce expires one batch of stale pending bookings and returns how
// many were cancelled
func (s *ExpiryService) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.cfg.Booking.PaymentTimeout)

	stale, err := s.bookings.ListStalePending(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range stale {
		booking := &stale[i]
		reason := models.ReasonPaymentTimeout

		err := s.bookings.Transition(ctx, booking.ID, models.BookingStatusPending,
			models.BookingStatusCancelled, models.PaymentStatusFailed, &reason)
		if err == database.ErrStatusConflict {
			// Payment arrived between the list and the transition.
			continue
		}
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).Error("Failed to expire booking")
			continue
		}

		booking.BookingStatus = models.BookingStatusCancelled
		booking.PaymentStatus = models.PaymentStatusFailed
		booking.CancellationReason = &reason

		s.events.PublishBookingCancelled(ctx, booking, reason)
		expired++
	}

	return expired, nil
}
