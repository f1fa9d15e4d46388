package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/you/bokohub/domain"
)

// CasbinMW authorizes routes by the auth state of the request's session. A
// session holding an admin login is also tried as domain.SubjectAdmin.
type CasbinMW struct {
	policy domain.PolicyService
	logger *zap.Logger
	now    func() time.Time
}

// NewCasbinMW creates new casbin middleware wrapper
func NewCasbinMW(policy domain.PolicyService, logger *zap.Logger) *CasbinMW {
	return &CasbinMW{policy: policy, logger: logger, now: time.Now}
}

// Enforce returns the casbin authorization middleware. It must run after the
// session middleware.
func (mw *CasbinMW) Enforce() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := domain.StateAnonymous
		session := CurrentSession(c)
		if session != nil {
			state = session.State(mw.now())
		}
		subjects := []string{string(state)}
		if session != nil && session.IsAdmin() {
			subjects = append(subjects, domain.SubjectAdmin)
		}

		path := c.Request.URL.Path
		method := c.Request.Method

		allowed := false
		for _, subject := range subjects {
			ok, err := mw.policy.Authorize(subject, path, method)
			if err != nil {
				mw.logger.Error("authorization check failed", zap.String("path", path), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "Authorization check failed"})
				return
			}
			if ok {
				allowed = true
				break
			}
		}

		if !allowed {
			if state != domain.StateAuthenticated {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Authentication required"})
				return
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"status": "error", "message": "Access denied"})
			return
		}

		c.Next()
	}
}
