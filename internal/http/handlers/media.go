package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/http/response"
	"github.com/yungbote/galaxychat-backend/internal/platform/ctxutil"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
	"github.com/yungbote/galaxychat-backend/internal/services"
)

// multipart framing on top of the file itself
const uploadOverhead = 1 << 20

type MediaHandler struct {
	log   *logger.Logger
	media services.MediaService
}

func NewMediaHandler(log *logger.Logger, media services.MediaService) *MediaHandler {
	return &MediaHandler{log: log.With("handler", "MediaHandler"), media: media}
}

// POST /api/upload (multipart/form-data)
// field: "file"
func (h *MediaHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, services.MaxUploadBytes+uploadOverhead)

	ctx := c.Request.Context()
	in := services.UploadInput{UserID: ctxutil.UserID(ctx)}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondMessage(c, http.StatusBadRequest, "File size exceeds 10MB limit")
			return
		}
	} else {
		f, err := fh.Open()
		if err != nil {
			response.RespondError(c, h.log, err)
			return
		}
		defer f.Close()
		in.Filename = fh.Filename
		in.ContentType = fh.Header.Get("Content-Type")
		in.Size = fh.Size
		in.Body = f
	}

	res, err := h.media.Upload(ctx, in)
	if err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/upload?publicId=
func (h *MediaHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.media.Delete(ctx, ctxutil.UserID(ctx), strings.TrimSpace(c.Query("publicId"))); err != nil {
		response.RespondError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"success": true})
}
