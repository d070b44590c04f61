package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/brightpath-labs/engage-sync-api/internal/models"
	"github.com/brightpath-labs/engage-sync-api/internal/service"
)

func jwtFixture(t *testing.T) (*service.AuthService, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	authSvc := service.NewAuthService(nil, nil, service.AuthConfig{
		OperatorEmail:        "ops@example.com",
		OperatorPasswordHash: string(hash),
		TokenSecret:          "unit-test-secret",
		TokenExpiry:          time.Minute,
		Issuer:               "engage-sync-api",
	})

	login, err := authSvc.Login(context.Background(), models.LoginRequest{
		Email:    "ops@example.com",
		Password: "s3cret",
	})
	require.NoError(t, err)
	return authSvc, login.AccessToken
}

func TestJWTAllowsValidToken(t *testing.T) {
	authSvc, token := jwtFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/runs", nil)
	c.Request.Header.Set("Authorization", "Bearer "+token)

	var seen *models.JWTClaims
	handler := JWT(authSvc)
	handler(c)
	if value, ok := c.Get(ContextUserKey); ok {
		seen, _ = value.(*models.JWTClaims)
	}

	assert.False(t, c.IsAborted())
	require.NotNil(t, seen)
	assert.Equal(t, "ops@example.com", seen.Email)
	assert.Equal(t, "operator", seen.Role)
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	authSvc, _ := jwtFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/runs", nil)

	JWT(authSvc)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsGarbageToken(t *testing.T) {
	authSvc, _ := jwtFixture(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/runs", nil)
	c.Request.Header.Set("Authorization", "Bearer not-a-token")

	JWT(authSvc)(c)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"standard", "Bearer abc.def.ghi", "abc.def.ghi", true},
		{"case insensitive scheme", "bearer abc", "abc", true},
		{"empty header", "", "", false},
		{"no scheme", "abc.def.ghi", "", false},
		{"wrong scheme", "Basic abc", "", false},
		{"scheme only", "Bearer ", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, ok := bearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}
