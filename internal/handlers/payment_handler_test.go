package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/services"
	"github.com/stretchr/testify/assert"
)

type stubReconciler struct {
	webhookResult *services.ReconcileResult
	webhookErr    error
	verifyResult  *services.ReconcileResult
	verifyErr     error
	gotSignature  string
}

func (s *stubReconciler) HandleWebhook(_ context.Context, signature string, _ []byte) (*services.ReconcileResult, error) {
	s.gotSignature = signature
	return s.webhookResult, s.webhookErr
}

func (s *stubReconciler) VerifyPayment(_ context.Context, _ string) (*services.ReconcileResult, error) {
	return s.verifyResult, s.verifyErr
}

func setupPaymentRouter(stub *stubReconciler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewPaymentHandler(stub, logger)
	router := gin.New()
	router.POST("/payments/webhook", handler.Webhook)
	router.POST("/payments/verify", handler.Verify)
	return router
}

func postJSON(router *gin.Engine, path, signature, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("verif-hash", signature)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhook_BadSignatureIs401(t *testing.T) {
	stub := &stubReconciler{webhookErr: services.ErrInvalidSignature}
	router := setupPaymentRouter(stub)

	w := postJSON(router, "/payments/webhook", "wrong", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong", stub.gotSignature)
}

func TestWebhook_ProcessingFailureIs500ForRedelivery(t *testing.T) {
	stub := &stubReconciler{webhookErr: errors.New("store unavailable")}
	router := setupPaymentRouter(stub)

	w := postJSON(router, "/payments/webhook", "hash", `{}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhook_HandledAndIgnoredAreBoth200(t *testing.T) {
	for _, outcome := range []services.ReconcileOutcome{
		services.OutcomeConfirmed,
		services.OutcomeFailed,
		services.OutcomeIgnored,
		services.OutcomeUnknown,
	} {
		stub := &stubReconciler{webhookResult: &services.ReconcileResult{Outcome: outcome}}
		router := setupPaymentRouter(stub)

		w := postJSON(router, "/payments/webhook", "hash", `{}`)
		assert.Equal(t, http.StatusOK, w.Code, "outcome %s", outcome)
		assert.Contains(t, w.Body.String(), string(outcome))
	}
}

func TestVerify_RequiresTransactionID(t *testing.T) {
	router := setupPaymentRouter(&stubReconciler{})

	w := postJSON(router, "/payments/verify", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerify_UnknownReferenceIs404(t *testing.T) {
	stub := &stubReconciler{verifyResult: &services.ReconcileResult{Outcome: services.OutcomeUnknown}}
	router := setupPaymentRouter(stub)

	w := postJSON(router, "/payments/verify", "", `{"transaction_id": "12345"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestVerify_GatewayFailureIs502(t *testing.T) {
	stub := &stubReconciler{verifyErr: errors.New("gateway timeout")}
	router := setupPaymentRouter(stub)

	w := postJSON(router, "/payments/verify", "", `{"transaction_id": "12345"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
