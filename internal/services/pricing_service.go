package services

import (
	"fmt"

	"github.com/skyfare/booking-backend/internal/models"
)

// PricingService computes booking totals. It holds no state beyond the
// configured tax rate so quotes are reproducible.
type PricingService struct {
	taxRate float64
}

// NewPricingService creates a pricing service with the given tax rate
// (0.16 means 16% added on top of base fares)
func NewPricingService(taxRate float64) *PricingService {
	return &PricingService{taxRate: taxRate}
}

// Quote is the per-booking price breakdown returned to clients
type Quote struct {
	OutboundFare   float64 `json:"outbound_fare"`
	ReturnFare     float64 `json:"return_fare"`
	PassengerCount int     `json:"passenger_count"`
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	TaxRate        float64 `json:"tax_rate"`
	Total          float64 `json:"total"`
}

// Price computes the total for a booking:
// (outbound fare + return fare if round trip) * passengers * (1 + tax rate).
// The return flight is ignored for one-way bookings even when provided.
func (s *PricingService) Price(outbound *models.Flight, returnFlight *models.Flight, passengers int, roundTrip bool) (*Quote, error) {
	if outbound == nil {
		return nil, fmt.Errorf("outbound flight is required for pricing")
	}
	if passengers < 1 {
		return nil, fmt.Errorf("passenger count must be at least 1, got %d", passengers)
	}
	if roundTrip && returnFlight == nil {
		return nil, fmt.Errorf("return flight is required for round trip pricing")
	}

	quote := &Quote{
		OutboundFare:   outbound.BaseFare,
		PassengerCount: passengers,
		TaxRate:        s.taxRate,
	}

	perPassenger := outbound.BaseFare
	if roundTrip {
		quote.ReturnFare = returnFlight.BaseFare
		perPassenger += returnFlight.BaseFare
	}

	quote.Subtotal = perPassenger * float64(passengers)
	quote.Tax = quote.Subtotal * s.taxRate
	quote.Total = quote.Subtotal + quote.Tax

	return quote, nil
}
