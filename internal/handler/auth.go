package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/logger"
	"go.uber.org/zap"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthHandler struct {
	auth *auth.Authenticator
	log  *zap.Logger
}

func NewAuthHandler(a *auth.Authenticator, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: a, log: logger.OrNop(log)}
}

func (h *AuthHandler) Partner(c *gin.Context)    { h.login(c, h.auth.LoginPartner) }
func (h *AuthHandler) Technician(c *gin.Context) { h.login(c, h.auth.LoginTechnician) }
func (h *AuthHandler) Admin(c *gin.Context)      { h.login(c, h.auth.LoginAdmin) }

func (h *AuthHandler) login(c *gin.Context, fn func(ctx context.Context, username, password string) (*auth.Token, error)) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c)
		return
	}
	tok, err := fn(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}
