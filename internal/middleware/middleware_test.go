package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/litmusq-backend/internal/config"
	"github.com/stemsi/litmusq-backend/internal/response"
	"github.com/stemsi/litmusq-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func testAuth() *service.AuthService {
	return service.NewAuthService(&config.Config{JWTSecret: "mw-secret", JWTExpiry: time.Hour})
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireJWT(t *testing.T) {
	auth := testAuth()
	r := gin.New()
	r.GET("/me", RequireJWT(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", GetClaims(c).UserID)
	})
	r.GET("/admin", RequireJWT(auth), RequireRole(service.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrTokenRequired))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = do(r, req)
	assert.Contains(t, w.Body.String(), string(response.ErrTokenInvalid))

	token, err := auth.GenerateToken(9, service.RoleUser)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "9", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), string(response.ErrAdminAccessOnly))
}

func TestRequireWSAuth(t *testing.T) {
	auth := testAuth()
	r := gin.New()
	r.GET("/ws", RequireWSAuth(auth), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := auth.GenerateToken(3, service.RoleUser)
	require.NoError(t, err)
	w = do(r, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(time.Minute)
	assert.True(t, rl.allow("a"))

	now = now.Add(10 * time.Minute)
	rl.Sweep()
	assert.Empty(t, rl.visitors)
}

func TestBrotli(t *testing.T) {
	big := strings.Repeat("litmus ", 500)
	r := gin.New()
	r.Use(Brotli(), NoStore())
	r.GET("/big", func(c *gin.Context) { c.String(http.StatusOK, big) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusCreated, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip, br;q=0.9")
	w := do(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "br", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(w.Body.Bytes())))
	require.NoError(t, err)
	assert.Equal(t, big, string(plain))

	req = httptest.NewRequest(http.MethodGet, "/small", nil)
	req.Header.Set("Accept-Encoding", "br")
	w = do(r, req)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, "ok", w.Body.String())

	w = do(r, httptest.NewRequest(http.MethodGet, "/big", nil))
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, big, w.Body.String())
}
