package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/account"
	"github.com/suPer8Hu/companion-api/internal/chat"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/httpapi/middleware"
	"github.com/suPer8Hu/companion-api/internal/insights"
	"github.com/suPer8Hu/companion-api/internal/models"
	"github.com/suPer8Hu/companion-api/internal/payment"
	"github.com/suPer8Hu/companion-api/internal/persona"
	"github.com/suPer8Hu/companion-api/internal/store"
)

type Handler struct {
	Store    store.Store
	ChatSvc  *chat.Service
	Accounts *account.Service
	Payments *payment.Service
	Insights *insights.Service
	Personas *persona.Registry
}

func (h *Handler) Ping(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "datastore unavailable")
		return
	}
	common.OK(c, gin.H{"message": "pong"})
}

func currentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(middleware.UserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// paywall writes the distinguished quota-exceeded response.
func paywall(c *gin.Context, count, limit int) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
		"error":        "PAYWALL_HIT",
		"message":      "You have used all your free messages. Upgrade to premium to keep chatting.",
		"messageCount": count,
		"messageLimit": limit,
	})
}
