package handler

import (
	"bytes"
	"encoding/json"
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

func newAuthFixture(t *testing.T) *AuthHandler {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	svc := service.NewAuthService(nil, nil, service.AuthConfig{
		OperatorEmail:        "ops@example.com",
		OperatorPasswordHash: string(hash),
		TokenSecret:          "unit-test-secret",
		TokenExpiry:          time.Hour,
	})
	return NewAuthHandler(svc)
}

func postLogin(t *testing.T, handler *AuthHandler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Login(c)
	return w
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	handler := newAuthFixture(t)

	w := postLogin(t, handler, models.LoginRequest{Email: "ops@example.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "ops@example.com", envelope.Data.Email)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	handler := newAuthFixture(t)

	w := postLogin(t, handler, models.LoginRequest{Email: "ops@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLoginInvalidPayload(t *testing.T) {
	handler := newAuthFixture(t)
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	handler.Login(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
