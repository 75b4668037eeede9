package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/graintrack/mill_backend/config"
	"github.com/graintrack/mill_backend/utils"
)

// Session is the cached identity a gateway token resolves to.
type Session struct {
	MillId   string `json:"mill_id"`
	UserId   int    `json:"user_id"`
	UserName string `json:"user_name"`
	IsAdmin  bool   `json:"is_admin"`
}

// SessionMiddleware resolves the "token" header to a session and attaches
// the caller's mill/user identity to the request context. Requests without
// a token pass through; tenant-scoped handlers reject them later when no
// mill id is present.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		var session Session
		exists, err := config.GetRedisObject("Session:"+token, &session)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"statusCode": http.StatusUnauthorized, "message": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetMillIdInContext(c.Request.Context(), session.MillId)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetUserNameInContext(ctx, session.UserName)
		if session.IsAdmin {
			ctx = utils.SetIsAdminInContext(ctx, true)
			// Admins may act on another mill via header.
			if millId := c.Request.Header.Get("mill-id"); millId != "" {
				ctx = utils.SetMillIdInContext(ctx, millId)
			}
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
