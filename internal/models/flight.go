package models

import "time"

// FlightStatus represents the lifecycle status of a flight
type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "scheduled"
	FlightStatusDeparted  FlightStatus = "departed"
	FlightStatusArrived   FlightStatus = "arrived"
	FlightStatusCancelled FlightStatus = "cancelled"
	FlightStatusDelayed   FlightStatus = "delayed"
)

// Flight represents a scheduled flight with seat inventory
type Flight struct {
	ID               string       `json:"id" db:"id"`
	Airline          string       `json:"airline" db:"airline"`
	FlightNumber     string       `json:"flight_number" db:"flight_number"`
	OriginCity       string       `json:"origin_city" db:"origin_city"`
	DestinationCity  string       `json:"destination_city" db:"destination_city"`
	DepartureTime    time.Time    `json:"departure_time" db:"departure_time"`
	ArrivalTime      time.Time    `json:"arrival_time" db:"arrival_time"`
	DurationMinutes  int          `json:"duration_minutes" db:"duration_minutes"`
	BaseFare         float64      `json:"base_fare" db:"base_fare"`
	BaggageAllowance string       `json:"baggage_allowance" db:"baggage_allowance"`
	TotalSeats       int          `json:"total_seats" db:"total_seats"`
	AvailableSeats   int          `json:"available_seats" db:"available_seats"`
	Status           FlightStatus `json:"status" db:"status"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}

// IsBookable checks whether the flight can accept new bookings
func (f *Flight) IsBookable() bool {
	if f.Status != FlightStatusScheduled && f.Status != FlightStatusDelayed {
		return false
	}
	return f.DepartureTime.After(time.Now())
}

// SearchFlightsRequest represents flight search filters
type SearchFlightsRequest struct {
	OriginCity      string `form:"origin"`
	DestinationCity string `form:"destination"`
	Date            string `form:"date"` // YYYY-MM-DD
}
