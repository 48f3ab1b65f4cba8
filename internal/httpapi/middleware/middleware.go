package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/companion-api/internal/auth"
	"github.com/suPer8Hu/companion-api/internal/common"
	"github.com/suPer8Hu/companion-api/internal/models"
)

const (
	RequestIDKey    = "request_id"
	UserIDKey       = "user_id"
	UserKey         = "user"
	RequestIDHeader = "X-Request-ID"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if rid == "" || len(rid) > 64 {
			rid = common.MustULID()
		}
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// Logger writes one structured access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString(RequestIDKey),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if uid := c.GetString(UserIDKey); uid != "" {
			attrs = append(attrs, "user_id", uid)
		}
		switch {
		case status >= http.StatusInternalServerError:
			slog.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			slog.Warn("request", attrs...)
		default:
			slog.Info("request", attrs...)
		}
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered",
					"request_id", c.GetString(RequestIDKey),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}

type IdentityResolver interface {
	UserFromToken(ctx context.Context, token string) (*models.User, error)
	DevUser(ctx context.Context) (*models.User, error)
}

// Identity resolves the caller. A bearer token must be valid; without one the
// development fallback user is used when enabled.
func Identity(res IdentityResolver, devFallback bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var (
			user *models.User
			err  error
		)
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		switch {
		case header != "":
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || strings.TrimSpace(token) == "" {
				common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
				return
			}
			user, err = res.UserFromToken(ctx, strings.TrimSpace(token))
		case devFallback:
			user, err = res.DevUser(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "resolve dev user", "err", err)
				common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
				return
			}
		default:
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		if err != nil || user == nil {
			if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
				slog.ErrorContext(ctx, "resolve user from token", "err", err)
			}
			common.Fail(c, http.StatusUnauthorized, 40102, "invalid token")
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)
		c.Next()
	}
}
