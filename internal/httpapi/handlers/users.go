package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/account"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/sms"
)

type sendOTPReq struct {
	Phone string `json:"phone" binding:"required"`
}

func (h *Handler) SendOTP(c *gin.Context) {
	var req sendOTPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "phone required")
		return
	}

	err := h.Accounts.SendOTP(c.Request.Context(), req.Phone)
	switch {
	case err == nil:
		common.OK(c, gin.H{"sent": true})
	case errors.Is(err, account.ErrInvalidPhone):
		common.Fail(c, http.StatusBadRequest, 10011, "invalid phone number")
	case errors.Is(err, account.ErrCooldown):
		common.Fail(c, http.StatusTooManyRequests, 42901, "otp recently sent, try again later")
	case errors.Is(err, sms.ErrSendFailed):
		common.Fail(c, http.StatusBadGateway, 50201, "failed to send otp")
	default:
		slog.ErrorContext(c.Request.Context(), "send otp", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "otp store error")
	}
}

type verifyOTPReq struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyOTPReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "phone and code required")
		return
	}

	token, user, err := h.Accounts.VerifyOTP(c.Request.Context(), req.Phone, req.Code)
	switch {
	case err == nil:
		common.OK(c, gin.H{"token": token, "user": user})
	case errors.Is(err, account.ErrInvalidPhone):
		common.Fail(c, http.StatusBadRequest, 10011, "invalid phone number")
	case errors.Is(err, account.ErrCodeExpired):
		common.Fail(c, http.StatusBadRequest, 10012, "otp expired or not found")
	case errors.Is(err, account.ErrInvalidCode):
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid otp")
	case errors.Is(err, account.ErrTooManyAttempts):
		common.Fail(c, http.StatusTooManyRequests, 42902, "too many attempts, request a new otp")
	default:
		slog.ErrorContext(c.Request.Context(), "verify otp", "err", err)
		common.Fail(c, http.StatusInternalServerError, 50003, "otp store error")
	}
}

func (h *Handler) Me(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	p, err := h.Accounts.Profile(c.Request.Context(), u)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "load profile", "user_id", u.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, p)
}

type updateUserReq struct {
	Name    *string `json:"name"`
	Persona *string `json:"persona"`
}

func (h *Handler) UpdateMe(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req updateUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	user, err := h.Accounts.UpdateSettings(c.Request.Context(), u.ID, req.Name, req.Persona)
	switch {
	case err == nil:
		common.OK(c, user)
	case errors.Is(err, account.ErrUnknownPersona):
		common.Fail(c, http.StatusBadRequest, 10013, "unknown persona")
	case errors.Is(err, account.ErrInvalidName):
		common.Fail(c, http.StatusBadRequest, 10014, "invalid name")
	default:
		slog.ErrorContext(c.Request.Context(), "update settings", "user_id", u.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
	}
}

func (h *Handler) ListPersonas(c *gin.Context) {
	common.OK(c, h.Personas.List())
}
