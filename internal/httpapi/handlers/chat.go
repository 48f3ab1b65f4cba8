package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/chat"
	"github.com/suPer8Hu/companion-api/internal/common"
)

func (h *Handler) CreateChatSession(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.ChatSvc.OpenSession(c.Request.Context(), u.ID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "open session", "user_id", u.ID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "sessionId required")
		return
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), u.ID, sessionID)
	if err != nil {
		slog.ErrorContext(c.Request.Context(), "list messages", "user_id", u.ID, "session_id", sessionID, "err", err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type chatReq struct {
	Content   *string `json:"content"`
	SessionID string  `json:"sessionId"`
}

// SendChatMessageStream relays one turn as Server-Sent Events. Errors raised
// before the stream opens are plain JSON responses.
func (h *Handler) SendChatMessageStream(c *gin.Context) {
	u, ok := currentUser(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == nil {
		common.Fail(c, http.StatusBadRequest, 10001, "content is required")
		return
	}

	ctx := c.Request.Context()
	turn, err := h.ChatSvc.StartTurn(ctx, u, *req.Content, req.SessionID)
	if err != nil {
		var pw *chat.PaywallError
		switch {
		case errors.Is(err, chat.ErrEmptyContent):
			common.Fail(c, http.StatusBadRequest, 10001, "content is required")
		case errors.As(err, &pw):
			paywall(c, pw.MessageCount, pw.MessageLimit)
		case errors.Is(err, chat.ErrNotConfigured):
			common.Fail(c, http.StatusInternalServerError, 50010, "service not configured")
		case errors.Is(err, chat.ErrUpstream):
			common.Fail(c, http.StatusInternalServerError, 50011, "AI service error")
		default:
			slog.ErrorContext(ctx, "start chat turn", "user_id", u.ID, "err", err)
			common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		}
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx
	c.Status(http.StatusOK)

	emit := func(frame any) error {
		b, err := json.Marshal(frame)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", b); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}
	if err := turn.Run(ctx, emit); err != nil {
		slog.WarnContext(ctx, "chat stream ended with error", "user_id", u.ID, "session_id", turn.SessionID, "err", err)
	}
}
