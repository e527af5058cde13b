package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/types"
)

// OperatorMiddleware records the calling operator on the request context.
// Requests without the header are attributed to the default user; the
// endpoints are expected to sit behind an authenticating proxy.
func OperatorMiddleware(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(types.HeaderUserID))
	if userID == "" {
		userID = types.DefaultUserID
	}

	ctx := types.SetUserID(c.Request.Context(), userID)
	c.Request = c.Request.WithContext(ctx)
	c.Next()
}
