package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/payment"
	"github.com/suPer8Hu/companion-api/internal/store"
)

func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	order, err := h.Payments.CreateOrder(c.Request.Context(), u)
	switch {
	case err == nil:
		common.OK(c, order)
	case errors.Is(err, payment.ErrNotConfigured):
		common.Fail(c, http.StatusServiceUnavailable, 50302, "payments not configured")
	case errors.Is(err, payment.ErrGateway):
		common.Fail(c, http.StatusBadGateway, 50202, "payment gateway error")
	default:
		slog.ErrorContext(c.Request.Context(), "create payment order", "user_id", u.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func (h *Handler) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "unreadable body")
		return
	}

	err = h.Payments.HandleWebhook(c.Request.Context(),
		c.GetHeader("x-webhook-timestamp"),
		c.GetHeader("x-webhook-signature"),
		body,
	)
	switch {
	case err == nil:
		common.OK(c, gin.H{"received": true})
	case errors.Is(err, payment.ErrInvalidSignature):
		common.Fail(c, http.StatusUnauthorized, 40104, "invalid signature")
	case errors.Is(err, payment.ErrBadPayload):
		common.Fail(c, http.StatusBadRequest, 10015, "invalid payload")
	case errors.Is(err, payment.ErrNotConfigured):
		common.Fail(c, http.StatusServiceUnavailable, 50302, "payments not configured")
	case errors.Is(err, store.ErrNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "order not found")
	default:
		slog.ErrorContext(c.Request.Context(), "payment webhook", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func (h *Handler) GetPaymentStatus(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	p, err := h.Payments.Status(c.Request.Context(), u.ID, c.Param("orderId"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// hide existence
			common.Fail(c, http.StatusNotFound, 40403, "order not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, p)
}
