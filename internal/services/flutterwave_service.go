package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skyfare/booking-backend/internal/config"
)

// Gateway status strings as Flutterwave reports them
const (
	FlutterwaveStatusSuccessful = "successful"
	FlutterwaveStatusFailed     = "failed"
	FlutterwaveStatusCancelled  = "cancelled"
)

// FlutterwaveService handles hosted-checkout initiation, transaction
// verification and webhook authentication against the Flutterwave API
type FlutterwaveService struct {
	config *config.PaymentConfig
	logger *logrus.Logger
	client *http.Client
}

// NewFlutterwaveService creates a new Flutterwave gateway client
func NewFlutterwaveService(cfg *config.PaymentConfig, logger *logrus.Logger) *FlutterwaveService {
	return &FlutterwaveService{
		config: cfg,
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// checkoutRequest is the POST /payments body for hosted checkout
type checkoutRequest struct {
	TxRef       string              `json:"tx_ref"`
	Amount      string              `json:"amount"`
	Currency    string              `json:"currency"`
	RedirectURL string              `json:"redirect_url"`
	Customer    checkoutCustomer    `json:"customer"`
	Meta        map[string]string   `json:"meta,omitempty"`
	Options     checkoutCustomizing `json:"customizations"`
}

type checkoutCustomer struct {
	Email       string `json:"email"`
	PhoneNumber string `json:"phonenumber,omitempty"`
	Name        string `json:"name"`
}

type checkoutCustomizing struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// checkoutResponse is the envelope Flutterwave wraps payment links in
type checkoutResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

// TransactionDetails is the gateway's view of a transaction, shared by
// the webhook payload and the verify endpoint response
type TransactionDetails struct {
	ID       int64   `json:"id"`
	TxRef    string  `json:"tx_ref"`
	FlwRef   string  `json:"flw_ref"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Status   string  `json:"status"`
}

// WebhookPayload is the body Flutterwave POSTs to our webhook endpoint
type WebhookPayload struct {
	Event string             `json:"event"`
	Data  TransactionDetails `json:"data"`
}

// verifyResponse is the GET /transactions/:id/verify envelope
type verifyResponse struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Data    TransactionDetails `json:"data"`
}

// InitiateCheckoutParams carries everything needed to create a hosted
// checkout session
type InitiateCheckoutParams struct {
	TxRef         string
	Amount        float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	BookingRef    string
	Description   string
}

// InitiateCheckout creates a hosted checkout session and returns the
// payment page URL the customer should be redirected to
func (s *FlutterwaveService) InitiateCheckout(ctx context.Context, params *InitiateCheckoutParams) (string, error) {
	if s.config.SecretKey == "" {
		return "", fmt.Errorf("payment gateway not configured: missing secret key")
	}

	request := &checkoutRequest{
		TxRef:       params.TxRef,
		Amount:      fmt.Sprintf("%.2f", params.Amount),
		Currency:    params.Currency,
		RedirectURL: s.config.RedirectURL,
		Customer: checkoutCustomer{
			Email:       params.CustomerEmail,
			PhoneNumber: params.CustomerPhone,
			Name:        params.CustomerName,
		},
		Meta: map[string]string{
			"booking_reference": params.BookingRef,
		},
		Options: checkoutCustomizing{
			Title:       "SkyFare",
			Description: params.Description,
		},
	}

	jsonBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkout request: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"tx_ref":   params.TxRef,
		"amount":   request.Amount,
		"currency": params.Currency,
	}).Info("Initiating Flutterwave checkout")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/payments", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Flutterwave payments endpoint")
		return "", fmt.Errorf("failed to call payment gateway: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("payment gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var checkoutResp checkoutResponse
	if err := json.Unmarshal(body, &checkoutResp); err != nil {
		return "", fmt.Errorf("failed to parse gateway response: %w", err)
	}

	if checkoutResp.Status != "success" {
		return "", fmt.Errorf("checkout initiation failed: %s", checkoutResp.Message)
	}
	if checkoutResp.Data.Link == "" {
		return "", fmt.Errorf("checkout initiation failed: no payment link returned")
	}

	s.logger.WithFields(logrus.Fields{
		"tx_ref": params.TxRef,
	}).Info("Flutterwave checkout initiated")

	return checkoutResp.Data.Link, nil
}

// VerifyTransaction queries the gateway for the authoritative state of a
// transaction. Used both for client-driven verification and to re-check
// suspicious webhook deliveries.
func (s *FlutterwaveService) VerifyTransaction(ctx context.Context, transactionID string) (*TransactionDetails, error) {
	url := fmt.Sprintf("%s/transactions/%s/verify", s.config.BaseURL, transactionID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.SecretKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.WithError(err).Error("Failed to call Flutterwave verify endpoint")
		return nil, fmt.Errorf("failed to verify transaction: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read verify response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var verifyResp verifyResponse
	if err := json.Unmarshal(body, &verifyResp); err != nil {
		return nil, fmt.Errorf("failed to parse verify response: %w", err)
	}

	if verifyResp.Status != "success" {
		return nil, fmt.Errorf("transaction verification failed: %s", verifyResp.Message)
	}

	return &verifyResp.Data, nil
}

// VerifyWebhookSignature checks the verif-hash header Flutterwave sends
// with every webhook against our shared secret. Constant-time compare so
// the check does not leak the secret length byte by byte.
func (s *FlutterwaveService) VerifyWebhookSignature(signature string) bool {
	if s.config.WebhookSecret == "" || signature == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(signature), []byte(s.config.WebhookSecret)) == 1
}

// ParseWebhook decodes a webhook body into a payload
func (s *FlutterwaveService) ParseWebhook(body []byte) (*WebhookPayload, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if payload.Data.TxRef == "" {
		return nil, fmt.Errorf("webhook payload missing tx_ref")
	}
	return &payload, nil
}

// IsSuccessful reports whether the gateway considers the transaction paid
func (s *FlutterwaveService) IsSuccessful(details *TransactionDetails) bool {
	return details.Status == FlutterwaveStatusSuccessful
}
