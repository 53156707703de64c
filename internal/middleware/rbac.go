package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
)

// RequireRoles lets the request through only when the token role is listed.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			abortWith(c, appErrors.ErrUnauthorized)
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			abortWith(c, appErrors.ErrForbidden)
			return
		}
		c.Next()
	}
}
