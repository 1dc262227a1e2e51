package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayOrder is the gateway's view of a deposit order.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// GatewayPayment is one payment attempt against an order.
type GatewayPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Captured reports whether the money has actually been collected.
func (p GatewayPayment) Captured() bool {
	return p.Status == "captured"
}

// PaymentGateway is the external payment processor.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error)
	FetchPayments(ctx context.Context, orderID string) ([]GatewayPayment, error)
}

// GatewayClient talks to a Razorpay-style REST API with basic auth.
type GatewayClient struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Client    *http.Client
}

func NewGatewayClient(baseURL, keyID, keySecret string) *GatewayClient {
	return &GatewayClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		KeyID:     keyID,
		KeySecret: keySecret,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// toMinorUnits converts rupees to paise.
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (c *GatewayClient) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*GatewayOrder, error) {
	reqBody := map[string]interface{}{
		"amount":   toMinorUnits(amount),
		"currency": currency,
		"receipt":  receipt,
	}
	var out GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", reqBody, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *GatewayClient) FetchPayments(ctx context.Context, orderID string) ([]GatewayPayment, error) {
	var out struct {
		Items []GatewayPayment `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *GatewayClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode gateway request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create gateway request: %w", err)
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s %s failed: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway %s %s returned %d: %s", method, path, resp.StatusCode, string(errBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

// SignPayment computes the checkout signature hex(HMAC-SHA256(order|payment)).
func SignPayment(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature compares in constant time.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	expected := SignPayment(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}
