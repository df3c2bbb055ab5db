package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Status is the payment network's view of a transaction.
type Status string

const (
	StatusReserved Status = "RESERVED"
	StatusCaptured Status = "CAPTURED"
	StatusFailed   Status = "FAILED"
	StatusAborted  Status = "ABORTED"
	StatusUnknown  Status = "UNKNOWN"
)

const defaultTimeout = 15 * time.Second

// Client wraps the mobile-payment network's ecommerce API. Every call is
// safe to retry: the remote reports "already captured" / "already
// refunded" on replays and those are treated as success.
type Client struct {
	baseURL         string
	subscriptionKey string
	merchantSerial  string
	callbackURL     string
	fallbackURL     string
	httpClient      *http.Client
}

type Config struct {
	BaseURL         string
	SubscriptionKey string
	MerchantSerial  string
	CallbackURL     string
	FallbackURL     string
	Timeout         time.Duration
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		subscriptionKey: cfg.SubscriptionKey,
		merchantSerial:  cfg.MerchantSerial,
		callbackURL:     cfg.CallbackURL,
		fallbackURL:     cfg.FallbackURL,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

type merchantInfo struct {
	MerchantSerialNumber string `json:"merchantSerialNumber"`
	CallbackPrefix       string `json:"callbackPrefix"`
	FallBack             string `json:"fallBack"`
}

type transactionBody struct {
	OrderID         string `json:"orderId,omitempty"`
	Amount          int64  `json:"amount"`
	TransactionText string `json:"transactionText"`
}

type initiateRequest struct {
	MerchantInfo merchantInfo    `json:"merchantInfo"`
	Transaction  transactionBody `json:"transaction"`
}

type initiateResponse struct {
	OrderID string `json:"orderId"`
	URL     string `json:"url"`
}

type transactionInfo struct {
	Status        string `json:"status"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transactionId"`
}

type detailsResponse struct {
	OrderID         string          `json:"orderId"`
	TransactionInfo transactionInfo `json:"transactionInfo"`
}

type remoteError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// InitiatePayment starts a checkout for an order and returns the URL the
// client is redirected to.
func (c *Client) InitiatePayment(ctx context.Context, orderID string, amountMinor int64, description string) (string, error) {
	reqBody := initiateRequest{
		MerchantInfo: merchantInfo{
			MerchantSerialNumber: c.merchantSerial,
			CallbackPrefix:       c.callbackURL,
			FallBack:             c.fallbackURL,
		},
		Transaction: transactionBody{
			OrderID:         orderID,
			Amount:          amountMinor,
			TransactionText: description,
		},
	}

	var resp initiateResponse
	if err := c.post(ctx, "/ecomm/v2/payments", reqBody, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("payment network returned no redirect url for order %s", orderID)
	}
	return resp.URL, nil
}

// GetPaymentStatus polls the network for a transaction's current state.
func (c *Client) GetPaymentStatus(ctx context.Context, orderID string) (Status, error) {
	var resp detailsResponse
	if err := c.get(ctx, "/ecomm/v2/payments/"+orderID+"/details", &resp); err != nil {
		return StatusUnknown, err
	}
	return ParseStatus(resp.TransactionInfo.Status), nil
}

// CapturePayment confirms a reserved payment. A timed-out call is an
// unknown outcome; callers must re-query GetPaymentStatus before retrying.
func (c *Client) CapturePayment(ctx context.Context, orderID string, amountMinor int64) error {
	reqBody := struct {
		MerchantInfo merchantInfo    `json:"merchantInfo"`
		Transaction  transactionBody `json:"transaction"`
	}{
		MerchantInfo: merchantInfo{MerchantSerialNumber: c.merchantSerial},
		Transaction:  transactionBody{Amount: amountMinor, TransactionText: "Capture"},
	}
	err := c.post(ctx, "/ecomm/v2/payments/"+orderID+"/capture", reqBody, nil)
	if isAlreadyDone(err) {
		return nil
	}
	return err
}

// RefundPayment returns captured funds to the payer.
func (c *Client) RefundPayment(ctx context.Context, orderID string, amountMinor int64) error {
	reqBody := struct {
		MerchantInfo merchantInfo    `json:"merchantInfo"`
		Transaction  transactionBody `json:"transaction"`
	}{
		MerchantInfo: merchantInfo{MerchantSerialNumber: c.merchantSerial},
		Transaction:  transactionBody{Amount: amountMinor, TransactionText: "Refund"},
	}
	err := c.post(ctx, "/ecomm/v2/payments/"+orderID+"/refund", reqBody, nil)
	if isAlreadyDone(err) {
		return nil
	}
	return err
}

// ParseStatus normalizes the network's transaction status vocabulary.
func ParseStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "RESERVE", "RESERVED":
		return StatusReserved
	case "SALE", "CAPTURE", "CAPTURED":
		return StatusCaptured
	case "FAILED", "REJECTED":
		return StatusFailed
	case "CANCEL", "CANCELLED", "ABORTED", "VOID":
		return StatusAborted
	default:
		return StatusUnknown
	}
}

// RemoteError is a structured error response from the payment network.
type RemoteError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("payment network error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

func isAlreadyDone(err error) bool {
	re, ok := err.(*RemoteError)
	if !ok {
		return false
	}
	switch re.Code {
	case "already_captured", "already_refunded":
		return true
	}
	return false
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.merchantSerial)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var re remoteError
		if jsonErr := json.Unmarshal(raw, &re); jsonErr == nil && re.ErrorCode != "" {
			return &RemoteError{StatusCode: resp.StatusCode, Code: re.ErrorCode, Message: re.ErrorMessage}
		}
		return &RemoteError{StatusCode: resp.StatusCode, Code: "unexpected_response", Message: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("could not decode payment network response: %w", err)
	}
	return nil
}
