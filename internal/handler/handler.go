package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/auth"
	"github.com/psds-microservice/installation-service/internal/errs"
	"go.uber.org/zap"
)

var statusByCode = map[string]int{
	errs.CodeValidation:        http.StatusBadRequest,
	errs.CodeNotFound:          http.StatusNotFound,
	errs.CodeConflict:          http.StatusConflict,
	errs.CodeForbidden:         http.StatusForbidden,
	errs.CodeUnauthorized:      http.StatusUnauthorized,
	errs.CodeInvalidTransition: http.StatusUnprocessableEntity,
}

// httpStatus maps an error kind to its response status; unknown errors are 500.
func httpStatus(err error) int {
	if s, ok := statusByCode[errs.Code(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError responds {"error","code"}. Internal errors are logged and masked.
func writeError(c *gin.Context, log *zap.Logger, err error) {
	status := httpStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.String("request_id", RequestID(c)),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": errs.Message(err), "code": errs.Code(err)})
}

func badBody(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "code": errs.CodeValidation})
}

func parseID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id", "code": errs.CodeValidation})
		return 0, false
	}
	return id, true
}

// session returns the caller's session; routes without auth.Require get a 401.
func session(c *gin.Context) (*auth.Session, bool) {
	s, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated", "code": errs.CodeUnauthorized})
		return nil, false
	}
	return s, true
}
