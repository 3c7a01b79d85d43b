package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/api"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const (
	PathHealth  = "/health"
	PathReady   = "/ready"
	PathMetrics = "/metrics"
	PathSwagger = "/swagger"
	PathWebhook = "/api/webhook"
	PathAPIv1   = "/api/v1"
)

// Handlers bundles what New mounts.
type Handlers struct {
	Health     *handler.HealthHandler
	Webhook    *handler.WebhookHandler
	Auth       *handler.AuthHandler
	Partner    *handler.PartnerHandler
	Technician *handler.TechnicianHandler
	Admin      *handler.AdminHandler
	Metrics    http.Handler
}

func New(h Handlers, tokens *auth.Tokens, log *zap.Logger) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), handler.RequestLogger(log))

	r.GET(PathHealth, h.Health.Health)
	r.GET(PathReady, h.Health.Ready)
	if h.Metrics != nil {
		r.GET(PathMetrics, gin.WrapH(h.Metrics))
	}
	r.GET(PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, PathSwagger+"/") })
	r.GET(PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = PathSwagger + "/index.html"
			c.Request.RequestURI = PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(PathSwagger+"/openapi.json"))(c)
	})

	webhook := r.Group(PathWebhook)
	{
		webhook.POST("/salesforce", h.Webhook.Salesforce)
		webhook.POST("/salesforce/delete", h.Webhook.SalesforceDelete)
		webhook.POST("/test", h.Webhook.Test)
	}

	v1 := r.Group(PathAPIv1)
	v1.GET("/statuses", handler.Statuses)

	login := v1.Group("/auth")
	{
		login.POST("/partner", h.Auth.Partner)
		login.POST("/technician", h.Auth.Technician)
		login.POST("/admin", h.Auth.Admin)
	}

	partner := v1.Group("/partner", auth.Require(tokens, auth.RolePartner))
	{
		partner.GET("/installations", h.Partner.Installations)
		partner.GET("/installations/export", h.Partner.Export)
		partner.GET("/teams", h.Partner.Teams)
		partner.GET("/calendar", h.Partner.Calendar)
		partner.POST("/installations/:id/schedule", h.Partner.Schedule)
		partner.POST("/installations/:id/accept", h.Partner.Accept)
		partner.POST("/installations/:id/reject", h.Partner.Reject)
		partner.POST("/installations/:id/cancel", h.Partner.Cancel)
		partner.PUT("/installations/:id/status", h.Partner.ChangeStatus)
		partner.PUT("/installations/:id/duration", h.Partner.UpdateDuration)
	}

	tech := v1.Group("/technician", auth.Require(tokens, auth.RoleTechnician))
	{
		tech.GET("/installations", h.Technician.Installations)
		tech.PUT("/installations/:id/status", h.Technician.ChangeStatus)
	}

	admin := v1.Group("/admin", auth.Require(tokens, auth.RoleAdmin))
	{
		admin.GET("/partners", h.Admin.ListPartners)
		admin.POST("/partners", h.Admin.CreatePartner)
		admin.GET("/teams", h.Admin.ListTeams)
		admin.POST("/teams", h.Admin.CreateTeam)
		admin.POST("/technicians", h.Admin.CreateTechnician)
		admin.GET("/installations", h.Admin.ListInstallations)
		admin.GET("/installations/:id", h.Admin.GetInstallation)
		admin.GET("/settings", h.Admin.ListSettings)
		admin.GET("/settings/:key", h.Admin.GetSetting)
		admin.PUT("/settings/:key", h.Admin.PutSetting)
		admin.DELETE("/settings/:key", h.Admin.DeleteSetting)
	}

	return r
}
