package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/database"
	"github.com/skyfare/booking-backend/internal/models"
	"github.com/skyfare/booking-backend/internal/services"
)

// FlightHandler handles the public flight read surface
type FlightHandler struct {
	flights services.FlightStore
	logger  *logrus.Logger
}

// NewFlightHandler creates a new FlightHandler
func NewFlightHandler(flights services.FlightStore, logger *logrus.Logger) *FlightHandler {
	return &FlightHandler{
		flights: flights,
		logger:  logger,
	}
}

// Search lists flights matching the optional origin, destination and
// date filters
// GET /api/v1/flights
func (h *FlightHandler) Search(c *gin.Context) {
	var req models.SearchFlightsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}

	flights, err := h.flights.Search(c.Request.Context(), req.OriginCity, req.DestinationCity, req.Date)
	if err != nil {
		h.logger.WithError(err).Error("Flight search failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"flights": flights,
		"count":   len(flights),
	})
}

// Get returns a single flight
// GET /api/v1/flights/:id
func (h *FlightHandler) Get(c *gin.Context) {
	flight, err := h.flights.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
			return
		}
		h.logger.WithError(err).Error("Flight lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"flight": flight})
}
