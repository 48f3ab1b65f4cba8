// Package payment sells the premium plan through Cashfree and applies its
// webhook notifications.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/store"
)

var (
	ErrNotConfigured    = errors.New("payments not configured")
	ErrGateway          = errors.New("payment gateway error")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrBadPayload       = errors.New("invalid webhook payload")
)

const (
	EventPaymentSuccess = "PAYMENT_SUCCESS_WEBHOOK"
	EventPaymentFailed  = "PAYMENT_FAILED_WEBHOOK"

	// Cashfree requires a customer phone; dev users have none.
	placeholderPhone = "9999999999"
)

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (string, error)
	VerifyWebhook(timestamp, signature string, body []byte) bool
}

// PremiumGranter upgrades a user after a successful payment.
type PremiumGranter interface {
	GrantPremium(ctx context.Context, userID string) error
}

type Service struct {
	gateway  Gateway
	repo     store.PaymentStore
	premium  PremiumGranter
	price    float64
	currency string
}

// NewService builds the payment flow. A nil gateway leaves payments
// disabled.
func NewService(gateway Gateway, repo store.PaymentStore, premium PremiumGranter, price float64, currency string) *Service {
	return &Service{gateway: gateway, repo: repo, premium: premium, price: price, currency: currency}
}

type Order struct {
	OrderID          string  `json:"orderId"`
	PaymentSessionID string  `json:"paymentSessionId"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
}

func (s *Service) CreateOrder(ctx context.Context, u *models.User) (*Order, error) {
	if s.gateway == nil {
		return nil, ErrNotConfigured
	}

	orderID := "order_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	phone := placeholderPhone
	if u.Phone != nil && *u.Phone != "" {
		phone = *u.Phone
	}

	sessionID, err := s.gateway.CreateOrder(ctx, OrderRequest{
		OrderID:       orderID,
		Amount:        s.price,
		Currency:      s.currency,
		CustomerID:    u.ID,
		CustomerPhone: phone,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreatePayment(ctx, &models.Payment{
		OrderID:          orderID,
		UserID:           u.ID,
		Amount:           s.price,
		Currency:         s.currency,
		Status:           models.PaymentPending,
		PaymentSessionID: sessionID,
	}); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	return &Order{OrderID: orderID, PaymentSessionID: sessionID, Amount: s.price, Currency: s.currency}, nil
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
	} `json:"data"`
}

// HandleWebhook verifies and applies one notification. Deliveries of the
// same event are idempotent; unknown event types are ignored.
func (s *Service) HandleWebhook(ctx context.Context, timestamp, signature string, body []byte) error {
	if s.gateway == nil {
		return ErrNotConfigured
	}
	if !s.gateway.VerifyWebhook(timestamp, signature, body) {
		return ErrInvalidSignature
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Data.Order.OrderID == "" {
		return ErrBadPayload
	}

	var status models.PaymentStatus
	switch ev.Type {
	case EventPaymentSuccess:
		status = models.PaymentPaid
	case EventPaymentFailed:
		status = models.PaymentFailed
	default:
		slog.InfoContext(ctx, "ignoring payment webhook", "type", ev.Type, "order_id", ev.Data.Order.OrderID)
		return nil
	}

	p, err := s.repo.GetPayment(ctx, ev.Data.Order.OrderID)
	if err != nil {
		return err
	}
	if p.Status == models.PaymentPaid && status != models.PaymentPaid {
		slog.WarnContext(ctx, "ignoring status change of a paid order", "order_id", p.OrderID, "type", ev.Type)
		return nil
	}
	prev, err := s.repo.UpdatePaymentStatus(ctx, p.OrderID, status)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "payment status updated", "order_id", p.OrderID, "user_id", p.UserID, "from", prev, "to", status)

	// re-granted on every success delivery: a redelivery after a failed
	// grant must still upgrade the user
	if status == models.PaymentPaid {
		if err := s.premium.GrantPremium(ctx, p.UserID); err != nil {
			return fmt.Errorf("grant premium: %w", err)
		}
	}
	return nil
}

// Status returns the caller's payment; other users' orders are reported as
// not found.
func (s *Service) Status(ctx context.Context, userID, orderID string) (*models.Payment, error) {
	p, err := s.repo.GetPayment(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, store.ErrNotFound
	}
	return p, nil
}
