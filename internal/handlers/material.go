package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/services"
)

type RawMaterialHandler struct {
	log             *logger.Logger
	materialService services.RawMaterialService
}

func NewRawMaterialHandler(log *logger.Logger, materialService services.RawMaterialService) *RawMaterialHandler {
	return &RawMaterialHandler{
		log:             log.With("handler", "RawMaterialHandler"),
		materialService: materialService,
	}
}

func (h *RawMaterialHandler) List(c *gin.Context) {
	materials, err := h.materialService.List(c.Request.Context())
	if err != nil {
		h.log.Error("List raw materials failed", "error", err)
		RespondErr(c, err)
		return
	}
	RespondData(c, materials)
}
