package middleware

import (
	"github.com/gin-gonic/gin"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
	"scriptor/internal/core/model"
)

// Environment acquires a database handle for the request and releases it
// when the request finishes, on panic included. Nothing here commits:
// a handler that wants its writes kept calls Commit itself, everything
// else rolls back at release.
func Environment(src env.Source, resolver model.Resolver, database string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := appctx.GetIdentity(ctx)

		e, err := env.Acquire(ctx, src, resolver, database, id)
		if err != nil {
			if _, ok := apperror.AsAppError(err); !ok {
				err = apperror.NewInfrastructure(err)
			}
			_ = c.Error(err)
			c.Abort()
			return
		}
		defer e.Release()

		c.Request = c.Request.WithContext(env.WithEnv(ctx, e))
		c.Next()
	}
}
