package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scriptor/internal/auth"
	"scriptor/internal/core/appctx"
)

func newAuthRouter(validator TokenValidator, database string) (*gin.Engine, *appctx.Identity) {
	gin.SetMode(gin.TestMode)
	var seen appctx.Identity

	r := gin.New()
	r.Use(ErrorHandler())
	r.Use(Auth(validator, database))
	r.GET("/probe", func(c *gin.Context) {
		seen = appctx.GetIdentity(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestAuthValidToken(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	token, _, err := svc.Generate(appctx.Identity{UserID: 5, Login: "jo"}, "main")
	require.NoError(t, err)

	router, seen := newAuthRouter(svc, "main")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(5), seen.UserID)
	assert.Equal(t, "jo", seen.Login)
}

func TestAuthMissingHeader(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router, _ := newAuthRouter(svc, "main")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMalformedHeader(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router, _ := newAuthRouter(svc, "main")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsForeignDatabaseToken(t *testing.T) {
	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	token, _, err := svc.Generate(appctx.System(), "other")
	require.NoError(t, err)

	router, _ := newAuthRouter(svc, "main")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthRejectsTamperedToken(t *testing.T) {
	issuer := auth.NewJWTService(auth.DefaultJWTConfig("other-secret"))
	token, _, err := issuer.Generate(appctx.System(), "main")
	require.NoError(t, err)

	svc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	router, _ := newAuthRouter(svc, "main")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
