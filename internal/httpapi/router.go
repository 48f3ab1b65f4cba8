package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/config"
	"github.com/suPer8Hu/companion-api/internal/httpapi/handlers"
	"github.com/suPer8Hu/companion-api/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)

	api := r.Group("/api")

	// public
	api.GET("/personas", h.ListPersonas)
	api.POST("/auth/otp/send", h.SendOTP)
	api.POST("/auth/otp/verify", h.VerifyOTP)
	api.POST("/payment/webhook", h.PaymentWebhook)

	authGroup := api.Group("/")
	authGroup.Use(middleware.Identity(h.Accounts, cfg.DevFallbackEnabled))

	// chat
	authGroup.POST("/session", h.CreateChatSession)
	authGroup.GET("/messages", h.ListChatMessages)
	authGroup.POST("/chat", h.SendChatMessageStream)

	// user
	authGroup.GET("/user", h.Me)
	authGroup.PATCH("/user", h.UpdateMe)

	// payment
	authGroup.POST("/payment/order", h.CreatePaymentOrder)
	authGroup.GET("/payment/status/:orderId", h.GetPaymentStatus)

	// voice call
	authGroup.POST("/call/start", h.StartCall)
	authGroup.POST("/call/end", h.EndCall)

	// insights
	authGroup.POST("/summary", h.CreateSummary)
	authGroup.GET("/summary/:jobId", h.GetSummary)

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}
