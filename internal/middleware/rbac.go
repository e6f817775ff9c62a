package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
)

// RequireRole checks that the JWT carries the given role. Must run after RequireJWT.
func RequireRole(role service.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if claims.Role != role {
			code := response.ErrForbidden
			if role == service.RoleAdmin {
				code = response.ErrAdminAccessOnly
			}
			response.AbortFail(c, http.StatusForbidden, code)
			return
		}

		c.Next()
	}
}
