package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/logger"
	"github.com/psds-microservice/installation-service/internal/scheduler"
	"go.uber.org/zap"
)

type TechnicianHandler struct {
	engine *scheduler.Engine
	log    *zap.Logger
}

func NewTechnicianHandler(engine *scheduler.Engine, log *zap.Logger) *TechnicianHandler {
	return &TechnicianHandler{engine: engine, log: logger.OrNop(log)}
}

func (h *TechnicianHandler) Installations(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	items, err := h.engine.ListTechnicianInstallations(c.Request.Context(), s.TeamID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installations": items, "total": len(items)})
}

func (h *TechnicianHandler) ChangeStatus(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	out, err := h.engine.TechnicianChangeStatus(c.Request.Context(), id, s.TeamID, req.Status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
