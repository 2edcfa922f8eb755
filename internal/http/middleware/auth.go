package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/http/response"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/services"
)

// sessionCookie is where the identity provider's browser SDK keeps the session token.
const sessionCookie = "__session"

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
	userService services.UserService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService, userService services.UserService) *AuthMiddleware {
	middlewareLogger := log.With("middleware", "AuthMiddleware")
	return &AuthMiddleware{log: middlewareLogger, authService: authService, userService: userService}
}

// RequireAuth verifies the session token, attaches the caller's identity to the
// request context and makes sure the user's profile row exists.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			response.RespondMessage(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), tokenString)
		if err != nil {
			am.log.Debug("session token rejected", "error", err)
			response.RespondMessage(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if ctxutil.UserID(ctx) == "" {
			response.RespondMessage(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Request = c.Request.WithContext(ctx)

		if am.userService != nil {
			if err := am.userService.EnsureFromContext(ctx); err != nil {
				response.RespondError(c, am.log, err)
				return
			}
		}
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}
