package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

const cashfreeAPIVersion = "2023-08-01"

type CashfreeClient struct {
	client    *resty.Client
	secretKey string
}

func NewCashfreeClient(baseURL, appID, secretKey string) *CashfreeClient {
	return &CashfreeClient{
		client: resty.New().
			SetBaseURL(baseURL).
			SetHeader("x-client-id", appID).
			SetHeader("x-client-secret", secretKey).
			SetHeader("x-api-version", cashfreeAPIVersion).
			SetTimeout(30 * time.Second),
		secretKey: secretKey,
	}
}

type OrderRequest struct {
	OrderID       string
	Amount        float64
	Currency      string
	CustomerID    string
	CustomerPhone string
}

type createOrderBody struct {
	OrderID         string          `json:"order_id"`
	OrderAmount     float64         `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
}

type createOrderResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	OrderStatus      string `json:"order_status"`
}

type cashfreeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// CreateOrder registers an order and returns its payment session id, which
// the browser checkout needs.
func (c *CashfreeClient) CreateOrder(ctx context.Context, req OrderRequest) (string, error) {
	var out createOrderResponse
	var apiErr cashfreeError
	res, err := c.client.R().
		SetContext(ctx).
		SetBody(createOrderBody{
			OrderID:       req.OrderID,
			OrderAmount:   req.Amount,
			OrderCurrency: req.Currency,
			CustomerDetails: customerDetails{
				CustomerID:    req.CustomerID,
				CustomerPhone: req.CustomerPhone,
			},
		}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/pg/orders")
	if err != nil {
		slog.Error("unable to reach cashfree", "error", err)
		return "", fmt.Errorf("%w: %v", ErrGateway, err)
	}
	if !res.IsSuccess() {
		slog.Error("cashfree returned error", "status_code", res.StatusCode(), "code", apiErr.Code, "message", apiErr.Message)
		return "", fmt.Errorf("%w: status %d", ErrGateway, res.StatusCode())
	}
	if out.PaymentSessionID == "" {
		return "", fmt.Errorf("%w: missing payment_session_id", ErrGateway)
	}
	return out.PaymentSessionID, nil
}

// VerifyWebhook checks base64(HMAC-SHA256(secret, timestamp + rawBody)).
func (c *CashfreeClient) VerifyWebhook(timestamp, signature string, body []byte) bool {
	return VerifySignature(c.secretKey, timestamp, signature, body)
}

func VerifySignature(secret, timestamp, signature string, body []byte) bool {
	if secret == "" || timestamp == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
