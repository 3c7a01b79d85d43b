package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/crmsync"
	"github.com/psds-microservice/installation-service/internal/errs"
	"github.com/psds-microservice/installation-service/internal/logger"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// CRMInbound applies CRM pushes to the record store.
type CRMInbound interface {
	Upsert(ctx context.Context, body []byte) (crmsync.UpsertResult, error)
	Delete(ctx context.Context, body []byte) (uint64, error)
}

// WebhookHandler serves the CRM-facing endpoints. Responses use the
// {success, message|error, installationId} envelope the CRM integration expects.
type WebhookHandler struct {
	inbound CRMInbound
	log     *zap.Logger
}

func NewWebhookHandler(inbound CRMInbound, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{inbound: inbound, log: logger.OrNop(log)}
}

func (h *WebhookHandler) Salesforce(c *gin.Context) {
	body, ok := h.read(c)
	if !ok {
		return
	}
	res, err := h.inbound.Upsert(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	msg := "Installation updated"
	if res.Created {
		msg = "Installation created"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "installationId": res.ID})
}

func (h *WebhookHandler) SalesforceDelete(c *gin.Context) {
	body, ok := h.read(c)
	if !ok {
		return
	}
	id, err := h.inbound.Delete(c.Request.Context(), body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Installation deleted", "installationId": id})
}

// Test echoes what it received so an operator can check the CRM side of the wiring.
func (h *WebhookHandler) Test(c *gin.Context) {
	body, ok := h.read(c)
	if !ok {
		return
	}
	var received interface{} = string(body)
	if json.Valid(body) {
		received = json.RawMessage(body)
	}
	h.log.Info("crm test webhook received", zap.Int("bytes", len(body)), zap.String("request_id", RequestID(c)))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook received", "received": received})
}

func (h *WebhookHandler) read(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "cannot read body"})
		return nil, false
	}
	if len(body) > maxWebhookBody {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": "body too large"})
		return nil, false
	}
	return body, true
}

func (h *WebhookHandler) fail(c *gin.Context, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("crm webhook failed", zap.String("path", c.FullPath()), zap.String("request_id", RequestID(c)), zap.Error(err))
	} else {
		h.log.Warn("crm webhook refused", zap.String("path", c.FullPath()), zap.String("code", errs.Code(err)), zap.String("error", errs.Message(err)))
	}
	c.JSON(status, gin.H{"success": false, "error": errs.Message(err)})
}
