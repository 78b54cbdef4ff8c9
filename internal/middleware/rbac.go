package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/bjj-academy-api/internal/access"
	"github.com/noah-isme/bjj-academy-api/internal/models"
	appErrors "github.com/noah-isme/bjj-academy-api/pkg/errors"
	"github.com/noah-isme/bjj-academy-api/pkg/response"
)

// RequireAction rejects requests whose role the access policy does not allow
// to attempt the action. Services still re-check; this stops obvious misuse
// before any body parsing.
func RequireAction(action access.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if !access.Can(claims.Role, action) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
