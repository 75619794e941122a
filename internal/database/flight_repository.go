package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skyfare/booking-backend/internal/models"
)

// FlightRepository handles database operations for the flights table,
// including the seat ledger. Seat counts are only ever mutated through
// ReserveSeats and ReleaseSeats so the conditional update in the store
// is the single point of truth under concurrent bookings.
type FlightRepository struct {
	db DB
}

// NewFlightRepository creates a new FlightRepository
func NewFlightRepository(db DB) *FlightRepository {
	return &FlightRepository{db: db}
}

const flightColumns = `
	id, airline, flight_number, origin_city, destination_city,
	departure_time, arrival_time, duration_minutes, base_fare,
	baggage_allowance, total_seats, available_seats, status,
	created_at, updated_at
`

// GetByID retrieves a flight by ID
func (r *FlightRepository) GetByID(ctx context.Context, flightID string) (*models.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE id = $1`

	var flight models.Flight
	err := r.db.GetContext(ctx, &flight, query, flightID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	return &flight, nil
}

// Search retrieves bookable flights matching the given filters
func (r *FlightRepository) Search(ctx context.Context, origin, destination, date string) ([]models.Flight, error) {
	query := `SELECT ` + flightColumns + `
		FROM flights
		WHERE status IN ('scheduled', 'delayed')
		  AND departure_time > NOW()`

	args := []interface{}{}
	if origin != "" {
		args = append(args, origin)
		query += fmt.Sprintf(" AND origin_city = $%d", len(args))
	}
	if destination != "" {
		args = append(args, destination)
		query += fmt.Sprintf(" AND destination_city = $%d", len(args))
	}
	if date != "" {
		args = append(args, date)
		query += fmt.Sprintf(" AND departure_time::date = $%d", len(args))
	}

	query += " ORDER BY departure_time"

	flights := []models.Flight{}
	if err := r.db.SelectContext(ctx, &flights, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search flights: %w", err)
	}

	return flights, nil
}

// ReserveSeats conditionally decrements available_seats by the requested
// count. The check and the decrement are a single atomic statement
// evaluated by the store, so concurrent callers can never drive the
// counter below zero. Returns ErrInsufficientSeats when the flight does
// not have enough seats left.
func (r *FlightRepository) ReserveSeats(ctx context.Context, flightID string, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seat count must be positive")
	}

	query := `
		UPDATE flights
		SET available_seats = available_seats - $2, updated_at = NOW()
		WHERE id = $1
		  AND available_seats >= $2
	`

	result, err := r.db.ExecContext(ctx, query, flightID, seats)
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to reserve seats: %w", err)
	}

	if rows == 0 {
		return ErrInsufficientSeats
	}

	return nil
}

// ReleaseSeats increments available_seats by the given count, clamped at
// total_seats so a double-release bug can never overstate inventory.
func (r *FlightRepository) ReleaseSeats(ctx context.Context, flightID string, seats int) error {
	if seats <= 0 {
		return fmt.Errorf("seat count must be positive")
	}

	query := `
		UPDATE flights
		SET available_seats = LEAST(available_seats + $2, total_seats), updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, flightID, seats)
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to release seats: %w", err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
