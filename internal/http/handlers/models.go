package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/galaxychat-backend/internal/http/response"
	"github.com/yungbote/galaxychat-backend/internal/services"
)

type ModelsHandler struct {
	models services.ModelService
}

func NewModelsHandler(models services.ModelService) *ModelsHandler {
	return &ModelsHandler{models: models}
}

// GET /api/models
func (h *ModelsHandler) List(c *gin.Context) {
	response.RespondOK(c, gin.H{"models": h.models.List()})
}
