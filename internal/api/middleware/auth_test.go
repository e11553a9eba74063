package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/verdad/services/notifier/internal/identity"
)

type MockTokenVerifier struct {
	mock.Mock
}

func (m *MockTokenVerifier) VerifyToken(ctx context.Context, token string) (*identity.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func newAuthedRouter(verifier TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", RequireIdentity(verifier), func(c *gin.Context) {
		user, ok := UserFrom(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "user missing from context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"email": user.Email})
	})
	return router
}

func request(router *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRequireIdentityMissingHeader(t *testing.T) {
	verifier := new(MockTokenVerifier)
	router := newAuthedRouter(verifier)

	recorder := request(router, "")

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "No authorization header", response["error"])
}

func TestRequireIdentityMalformedHeader(t *testing.T) {
	verifier := new(MockTokenVerifier)
	router := newAuthedRouter(verifier)

	recorder := request(router, "Token abc123")

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "Invalid authorization header format", response["error"])
	verifier.AssertNotCalled(t, "VerifyToken", mock.Anything, mock.Anything)
}

func TestRequireIdentityRejectedToken(t *testing.T) {
	verifier := new(MockTokenVerifier)
	verifier.On("VerifyToken", mock.Anything, "bad-token").
		Return(nil, identity.ErrInvalidToken)

	router := newAuthedRouter(verifier)
	recorder := request(router, "Bearer bad-token")

	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "Invalid token", response["error"])
}

func TestRequireIdentityProviderOutage(t *testing.T) {
	verifier := new(MockTokenVerifier)
	verifier.On("VerifyToken", mock.Anything, "any-token").
		Return(nil, errors.New("connection refused"))

	router := newAuthedRouter(verifier)
	recorder := request(router, "Bearer any-token")

	// A provider outage must not masquerade as a bad credential
	require.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestRequireIdentityValidToken(t *testing.T) {
	user := &identity.User{ID: "u1", Email: "alice@verdad.app"}

	verifier := new(MockTokenVerifier)
	verifier.On("VerifyToken", mock.Anything, "good-token").Return(user, nil)

	router := newAuthedRouter(verifier)
	recorder := request(router, "Bearer good-token")

	require.Equal(t, http.StatusOK, recorder.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Equal(t, "alice@verdad.app", response["email"])
}
