package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/logger"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/psds-microservice/installation-service/internal/service"
	"go.uber.org/zap"
)

// AdminStores: хранилища, с которыми работает оператор.
type AdminStores struct {
	Installations service.InstallationStore
	Partners      service.PartnerStore
	Teams         service.TeamStore
	Technicians   service.TechnicianStore
	Settings      service.SettingStore
}

type AdminHandler struct {
	AdminStores
	log *zap.Logger
}

func NewAdminHandler(stores AdminStores, log *zap.Logger) *AdminHandler {
	return &AdminHandler{AdminStores: stores, log: logger.OrNop(log)}
}

func (h *AdminHandler) ListPartners(c *gin.Context) {
	items, err := h.Partners.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partners": items})
}

type createPartnerRequest struct {
	SalesforcePartnerID string  `json:"salesforce_partner_id" binding:"required"`
	Name                string  `json:"name" binding:"required"`
	Email               *string `json:"email"`
	Phone               *string `json:"phone"`
	StartingAddress     *string `json:"starting_address"`
	Username            string  `json:"username" binding:"required"`
	Password            string  `json:"password" binding:"required"`
}

func (h *AdminHandler) CreatePartner(c *gin.Context) {
	var req createPartnerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	p := &model.Partner{
		SalesforcePartnerID: strings.TrimSpace(req.SalesforcePartnerID),
		Name:                strings.TrimSpace(req.Name),
		Email:               req.Email,
		Phone:               req.Phone,
		StartingAddress:     req.StartingAddress,
		Username:            strings.TrimSpace(req.Username),
		PasswordHash:        hash,
		IsActive:            true,
	}
	if err := h.Partners.Create(c.Request.Context(), p); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("partner created", zap.Uint64("partner_id", p.ID), zap.String("username", p.Username))
	c.JSON(http.StatusCreated, p)
}

// ListTeams returns every team, or one partner's teams with ?partner_id=.
func (h *AdminHandler) ListTeams(c *gin.Context) {
	var (
		teams []model.Team
		err   error
	)
	if v := c.Query("partner_id"); v != "" {
		id, perr := strconv.ParseUint(v, 10, 64)
		if perr != nil {
			writeError(c, h.log, errs.Validation("partner_id must be a number"))
			return
		}
		teams, err = h.Teams.ListByPartner(c.Request.Context(), id)
	} else {
		teams, err = h.Teams.List(c.Request.Context())
	}
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams})
}

type createTeamRequest struct {
	SalesforceTeamID string  `json:"salesforce_team_id" binding:"required"`
	PartnerID        uint64  `json:"partner_id" binding:"required"`
	Name             string  `json:"name" binding:"required"`
	Description      *string `json:"description"`
}

func (h *AdminHandler) CreateTeam(c *gin.Context) {
	var req createTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	t := &model.Team{
		SalesforceTeamID: strings.TrimSpace(req.SalesforceTeamID),
		PartnerID:        req.PartnerID,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		IsActive:         true,
	}
	if err := h.Teams.Create(c.Request.Context(), t); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

type createTechnicianRequest struct {
	TeamID   uint64  `json:"team_id" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Username string  `json:"username" binding:"required"`
	Password string  `json:"password" binding:"required"`
}

func (h *AdminHandler) CreateTechnician(c *gin.Context) {
	var req createTechnicianRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	t := &model.Technician{
		TeamID:       req.TeamID,
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		Phone:        req.Phone,
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.Technicians.Create(c.Request.Context(), t); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListInstallations supports ?status=a,b, ?team_id= and ?partner_id=.
func (h *AdminHandler) ListInstallations(c *gin.Context) {
	var f service.InstallationFilter
	if v := c.Query("status"); v != "" {
		for _, raw := range strings.Split(v, ",") {
			st, err := lifecycle.Parse(strings.TrimSpace(raw))
			if err != nil {
				writeError(c, h.log, err)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	for key, dst := range map[string]*uint64{"team_id": &f.TeamID, "partner_id": &f.PartnerID} {
		if v := c.Query(key); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				writeError(c, h.log, errs.Validation("%s must be a number", key))
				return
			}
			*dst = n
		}
	}
	items, err := h.Installations.List(c.Request.Context(), f)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"installations": items, "total": len(items)})
}

func (h *AdminHandler) GetInstallation(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	inst, err := h.Installations.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, inst)
}

func (h *AdminHandler) ListSettings(c *gin.Context) {
	items, err := h.Settings.List(c.Request.Context())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": items})
}

func (h *AdminHandler) GetSetting(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

type putSettingRequest struct {
	Value       string  `json:"value" binding:"required"`
	Description *string `json:"description"`
}

func (h *AdminHandler) PutSetting(c *gin.Context) {
	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	s, err := h.Settings.Set(c.Request.Context(), c.Param("key"), strings.TrimSpace(req.Value), req.Description)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("setting updated", zap.String("key", s.Key))
	c.JSON(http.StatusOK, s)
}

func (h *AdminHandler) DeleteSetting(c *gin.Context) {
	key := c.Param("key")
	if err := h.Settings.Delete(c.Request.Context(), key); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.log.Info("setting deleted", zap.String("key", key))
	c.Status(http.StatusNoContent)
}
