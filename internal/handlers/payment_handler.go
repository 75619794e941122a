package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/models"
	"github.com/skyfare/booking-backend/internal/services"
)

// maxWebhookBodyBytes bounds webhook payload reads
const maxWebhookBodyBytes = 1 << 20

// Reconciler is the reconciliation surface the handler needs
type Reconciler interface {
	HandleWebhook(ctx context.Context, signature string, body []byte) (*services.ReconcileResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (*services.ReconcileResult, error)
}

// PaymentHandler handles payment gateway callbacks
type PaymentHandler struct {
	reconciliation Reconciler
	logger         *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(reconciliation Reconciler, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		reconciliation: reconciliation,
		logger:         logger,
	}
}

// Webhook receives asynchronous payment notifications from the gateway.
// POST /api/v1/payments/webhook
//
// Response codes are part of the contract with the gateway: 401 tells it
// the delivery was unauthenticated, 200 means we accepted the event
// (even when we ignored it as a duplicate), and 5xx asks for redelivery.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	signature := c.GetHeader("verif-hash")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	result, err := h.reconciliation.HandleWebhook(c.Request.Context(), signature, body)
	if err != nil {
		if errors.Is(err, services.ErrInvalidSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}

		h.logger.WithError(err).Error("Webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(result.Outcome)})
}

// Verify is the client-driven verification path after checkout redirect.
// POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	result, err := h.reconciliation.VerifyPayment(c.Request.Context(), req.TransactionID)
	if err != nil {
		h.logger.WithError(err).WithField("transaction_id", req.TransactionID).Error("Payment verification failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment verification failed"})
		return
	}

	status := http.StatusOK
	if result.Outcome == services.OutcomeUnknown {
		status = http.StatusNotFound
	}

	c.JSON(status, gin.H{
		"status":  string(result.Outcome),
		"reason":  result.Reason,
		"booking": result.Booking,
	})
}
