package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/models"
)

// AuditReader is the slice of the payment audit store the admin
// reporting endpoints need
type AuditReader interface {
	GetByPaymentReference(ctx context.Context, paymentReference string) ([]models.PaymentAudit, error)
	GetAmountMismatches(ctx context.Context, since time.Time, limit int) ([]models.PaymentAudit, error)
}

// AuditHandler exposes the payment audit trail to operators. Routes
// using it must sit behind admin auth.
type AuditHandler struct {
	audits AuditReader
	logger *logrus.Logger
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(audits AuditReader, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// ListAmountMismatches handles GET /admin/payments/mismatches. Returns
// audit entries where the gateway-reported amount did not match the
// booking total, the feed for the manual refund process.
func (h *AuditHandler) ListAmountMismatches(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	entries, err := h.audits.GetAmountMismatches(c.Request.Context(), since, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list amount mismatches")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"mismatches":  entries,
		"since_hours": hours,
		"count":       len(entries),
	})
}

// GetTrail handles GET /admin/payments/:reference/audits. Returns the
// full chronological audit trail for one payment reference, used when
// investigating a disputed charge.
func (h *AuditHandler) GetTrail(c *gin.Context) {
	reference := c.Param("reference")

	entries, err := h.audits.GetByPaymentReference(c.Request.Context(), reference)
	if err != nil {
		h.logger.WithError(err).WithField("payment_reference", reference).Error("Failed to load audit trail")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if len(entries) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit entries for this payment reference"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_reference": reference,
		"events":            entries,
	})
}
