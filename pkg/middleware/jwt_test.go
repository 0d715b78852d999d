package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/knowbase/file-backend/config"
)

const testSecret = "test-secret"

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuth(config.AuthConfig{JWTSecret: testSecret}))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func signToken(c *qt.C, secret string, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	c.Assert(err, qt.IsNil)
	return token
}

func TestJWTAuth(t *testing.T) {
	c := qt.New(t)
	r := newAuthRouter()

	token := signToken(c, testSecret, jwt.MapClaims{
		"sub": "7",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	c.Check(w.Code, qt.Equals, http.StatusOK)
	c.Check(w.Body.String(), qt.Contains, `"user_id":7`)
}

func TestJWTAuth_Rejections(t *testing.T) {
	c := qt.New(t)
	r := newAuthRouter()

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + signToken(c, "other-secret", jwt.MapClaims{
			"sub": "7", "exp": time.Now().Add(time.Hour).Unix(),
		})},
		{"expired", "Bearer " + signToken(c, testSecret, jwt.MapClaims{
			"sub": "7", "exp": time.Now().Add(-time.Hour).Unix(),
		})},
		{"no subject", "Bearer " + signToken(c, testSecret, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		c.Check(w.Code, qt.Equals, http.StatusUnauthorized, qt.Commentf("case %s", tc.name))
	}
}
