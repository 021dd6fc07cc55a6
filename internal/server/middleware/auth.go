package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/appctx"
)

// TokenValidator validates a bearer token and returns the identity it
// carries plus the database it was issued for.
type TokenValidator interface {
	Validate(tokenString string) (appctx.Identity, string, error)
}

// Auth validates bearer tokens and populates the request identity.
// database is the deployment's bound database; tokens issued for another
// one are rejected.
func Auth(validator TokenValidator, database string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		id, tokenDB, err := validator.Validate(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		if tokenDB != "" && tokenDB != database {
			_ = c.Error(apperror.NewForbidden("token issued for another database"))
			c.Abort()
			return
		}

		ctx := appctx.WithIdentity(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", id.UserID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
