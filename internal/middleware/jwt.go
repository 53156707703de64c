package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sales-credit-api/internal/models"
	appErrors "github.com/noah-isme/sales-credit-api/pkg/errors"
	"github.com/noah-isme/sales-credit-api/pkg/logger"
	"github.com/noah-isme/sales-credit-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT requires a bearer access token issued for one of the credit roles. The
// caller id is exposed to the access log.
func JWT(validator tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWith(c, err)
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			abortWith(c, err)
			return
		}
		if !claims.Role.Known() {
			abortWith(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" has no access to credit approvals"))
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.ActorKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return token, nil
}

func abortWith(c *gin.Context, err error) {
	response.Error(c, err)
	c.Abort()
}
