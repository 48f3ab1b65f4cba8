package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/store"
)

type createSummaryReq struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (h *Handler) CreateSummary(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createSummaryReq
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "sessionId required")
		return
	}

	job, err := h.Insights.Enqueue(c.Request.Context(), u.ID, strings.TrimSpace(req.SessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "session not found")
			return
		}
		slog.ErrorContext(c.Request.Context(), "enqueue summary", "user_id", u.ID, "session_id", req.SessionID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
		return
	}
	common.Respond(c, http.StatusAccepted, gin.H{"jobId": job.ID})
}

func (h *Handler) GetSummary(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("jobId")

	j, err := h.Insights.Get(c.Request.Context(), u.ID, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":         j.ID,
			"session_id": j.SessionID,
			"status":     j.Status,
			"result":     j.Result,
			"error":      j.Error,
			"created_at": j.CreatedAt,
			"updated_at": j.UpdatedAt,
		},
	})
}
