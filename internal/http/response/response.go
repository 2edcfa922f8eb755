package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/platform/apierr"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

// ErrorBody is the flat error shape every endpoint returns.
type ErrorBody struct {
	Error string `json:"error"`
}

// RespondError maps err onto its status and client-facing message. Causes of 5xx
// responses are logged and never sent.
func RespondError(c *gin.Context, log *logger.Logger, err error) {
	ae := apierr.From(err)
	if ae == nil {
		ae = apierr.New(http.StatusInternalServerError, "Internal server error", nil)
	}
	if ae.Status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", "path", c.FullPath(), "status", ae.Status, "error", err)
	}
	c.AbortWithStatusJSON(ae.Status, ErrorBody{Error: ae.Message})
}

// RespondMessage writes a flat error body with an explicit status.
func RespondMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
