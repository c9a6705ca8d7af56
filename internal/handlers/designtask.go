package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/services"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type DesignTaskHandler struct {
	log         *logger.Logger
	taskService services.DesignTaskService
}

func NewDesignTaskHandler(log *logger.Logger, taskService services.DesignTaskService) *DesignTaskHandler {
	return &DesignTaskHandler{
		log:         log.With("handler", "DesignTaskHandler"),
		taskService: taskService,
	}
}

func (h *DesignTaskHandler) Create(c *gin.Context) {
	var task types.DesignTask
	if err := c.ShouldBindJSON(&task); err != nil {
		RespondErr(c, bizcode.Newf(bizcode.MissingParameter, "invalid design task payload: %v", err))
		return
	}
	created, err := h.taskService.Create(c.Request.Context(), nil, &task)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, created)
}

func (h *DesignTaskHandler) List(c *gin.Context) {
	tasks, err := h.taskService.List(c.Request.Context(), nil)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, tasks)
}
