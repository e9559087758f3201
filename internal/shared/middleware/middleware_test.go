package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newAdminEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", append(AdminOnly(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})...)
	return r
}

func TestAdminOnly(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{
			name:   "missing header",
			status: http.StatusUnauthorized,
		},
		{
			name:   "not bearer",
			header: "Token abc",
			status: http.StatusUnauthorized,
		},
		{
			name:   "wrong secret",
			header: "Bearer " + signToken(t, jwt.MapClaims{"type": "access", "role": "admin", "exp": exp}, "other"),
			status: http.StatusUnauthorized,
		},
		{
			name:   "refresh token",
			header: "Bearer " + signToken(t, jwt.MapClaims{"type": "refresh", "role": "admin", "exp": exp}, testSecret),
			status: http.StatusUnauthorized,
		},
		{
			name:   "expired",
			header: "Bearer " + signToken(t, jwt.MapClaims{"type": "access", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix()}, testSecret),
			status: http.StatusUnauthorized,
		},
		{
			name:   "not admin",
			header: "Bearer " + signToken(t, jwt.MapClaims{"type": "access", "role": "user", "user_id": "u1", "exp": exp}, testSecret),
			status: http.StatusForbidden,
		},
		{
			name:   "admin",
			header: "Bearer " + signToken(t, jwt.MapClaims{"type": "access", "role": "admin", "user_id": "a1", "exp": exp}, testSecret),
			status: http.StatusOK,
			body:   "a1",
		},
	}

	engine := newAdminEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}
