package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/export"
	"github.com/psds-microservice/installation-service/internal/logger"
	"github.com/psds-microservice/installation-service/internal/scheduler"
	"go.uber.org/zap"
)

const defaultCalendarDays = 7

// PartnerHandler serves the partner portal. The partner is always the one in the session.
type PartnerHandler struct {
	engine *scheduler.Engine
	log    *zap.Logger
}

func NewPartnerHandler(engine *scheduler.Engine, log *zap.Logger) *PartnerHandler {
	return &PartnerHandler{engine: engine, log: logger.OrNop(log)}
}

func (h *PartnerHandler) Installations(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	items, err := h.engine.ListPartnerInstallations(c.Request.Context(), s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installations": items, "total": len(items)})
}

func (h *PartnerHandler) Teams(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	teams, err := h.engine.ListPartnerTeams(c.Request.Context(), s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

// Calendar takes from=YYYY-MM-DD (today, UTC, by default) and days (7 by default).
func (h *PartnerHandler) Calendar(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	from := h.engine.Now().UTC()
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(c, h.log, errs.Validation("from must be a date (YYYY-MM-DD)"))
			return
		}
		from = t
	}
	days := defaultCalendarDays
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, h.log, errs.Validation("days must be a number"))
			return
		}
		days = n
	}
	out, err := h.engine.Calendar(c.Request.Context(), s.PartnerID, from, days)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

func (h *PartnerHandler) Export(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	items, err := h.engine.ListPartnerInstallations(ctx, s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	teams, err := h.engine.ListPartnerTeams(ctx, s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	names := make(map[uint64]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	data, err := export.Installations(items, names)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	name := fmt.Sprintf("installazioni-%s.xlsx", h.engine.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, export.ContentType, data)
}

type scheduleRequest struct {
	TeamID uint64     `json:"team_id"`
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
}

func (h *PartnerHandler) Schedule(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	if req.Start == nil {
		writeError(c, h.log, errs.Validation("start is required"))
		return
	}
	out, err := h.engine.Schedule(c.Request.Context(), scheduler.ScheduleRequest{
		InstallationID: id,
		PartnerID:      s.PartnerID,
		TeamID:         req.TeamID,
		Start:          *req.Start,
		End:            req.End,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *PartnerHandler) Accept(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	out, err := h.engine.Accept(c.Request.Context(), id, s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *PartnerHandler) Reject(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	out, err := h.engine.Reject(c.Request.Context(), id, s.PartnerID, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *PartnerHandler) Cancel(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	out, err := h.engine.Cancel(c.Request.Context(), id, s.PartnerID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *PartnerHandler) ChangeStatus(c *gin.Context) {
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
	out, err := h.engine.ChangeStatus(c.Request.Context(), id, s.PartnerID, req.Status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type durationRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

func (h *PartnerHandler) UpdateDuration(c *gin.Context) {
	s, ok := session(c)
	if !ok {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req durationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	out, err := h.engine.UpdateDuration(c.Request.Context(), id, s.PartnerID, req.DurationMinutes)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
