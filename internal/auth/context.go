package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the authenticated admin id, set by the gateway in front of the service.
const HeaderUserID = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware copies the actor id header into the request context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(HeaderUserID)); userID != "" {
			c.Set(string(userIDKey), userID)
			c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		}
		c.Next()
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the actor id, or "" when the request is anonymous.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}
	return ""
}
