package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/account"
	"github.com/suPer8Hu/companion-api/internal/common"
)

func (h *Handler) StartCall(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	ticket, d, err := h.Accounts.StartCall(c.Request.Context(), u)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	if !d.Admit {
		paywall(c, d.MessageCount, d.MessageLimit)
		return
	}
	common.OK(c, ticket)
}

type endCallReq struct {
	DurationSeconds *int `json:"durationSeconds"`
}

func (h *Handler) EndCall(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req endCallReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DurationSeconds == nil {
		common.Fail(c, http.StatusBadRequest, 10001, "durationSeconds required")
		return
	}

	stats, err := h.Accounts.EndCall(c.Request.Context(), u.ID, *req.DurationSeconds)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCallLength) {
			common.Fail(c, http.StatusBadRequest, 10016, "durationSeconds must be non-negative")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "db error")
		return
	}
	common.OK(c, stats)
}
