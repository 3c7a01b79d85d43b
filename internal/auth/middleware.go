package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/installation-service/internal/errs"
)

const sessionKey = "auth.session"

// Require rejects requests without a valid bearer token for one of roles and
// stores the session for FromContext.
func Require(tokens *Tokens, roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, errs.Unauthorized("missing bearer token"))
			return
		}
		s, err := tokens.Parse(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, err)
			return
		}
		if !allowed(s.Role, roles) {
			abort(c, http.StatusForbidden, errs.Forbidden("role %s cannot access this resource", s.Role))
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// FromContext returns the session stored by Require.
func FromContext(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	return tok, tok != ""
}

func allowed(r Role, roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, want := range roles {
		if r == want {
			return true
		}
	}
	return false
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": errs.Message(err), "code": errs.Code(err)})
}
