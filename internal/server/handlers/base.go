// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/appctx"
	"scriptor/internal/core/env"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct{}

// NewBaseHandler creates a new base handler.
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// BindJSON binds and validates a JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// Error registers an error on the gin context and aborts. The JSON body
// is produced by the error middleware, the single source of truth.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Env returns the request's environment handle, set by the environment
// middleware.
func (h *BaseHandler) Env(c *gin.Context) (*env.Env, bool) {
	e, err := env.FromContext(c.Request.Context())
	if err != nil {
		h.Error(c, apperror.NewInternal(err))
		return nil, false
	}
	return e, true
}

// Identity extracts the request identity.
func (h *BaseHandler) Identity(c *gin.Context) appctx.Identity {
	return appctx.GetIdentity(c.Request.Context())
}

// ParseIntQuery parses an integer query parameter with a default.
func (h *BaseHandler) ParseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
