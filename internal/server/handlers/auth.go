package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scriptor/internal/auth"
	"scriptor/internal/server/dto"
)

// AuthHandler exposes login. It only reads, so the request transaction
// rolls back at release like any other.
type AuthHandler struct {
	*BaseHandler
	service *auth.Service
}

// NewAuthHandler creates the handler.
func NewAuthHandler(base *BaseHandler, service *auth.Service) *AuthHandler {
	return &AuthHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the auth endpoints on rg.
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/login", h.Login)
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	e, ok := h.Env(c)
	if !ok {
		return
	}

	var req dto.LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	token, id, err := h.service.Login(c.Request.Context(), e, req.Login, req.Password)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:  token,
		UserID: id.UserID,
		Login:  id.Login,
		Admin:  id.Admin,
	})
}
