package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workout-api/internal/domain"
	"workout-api/internal/repository/sqlite"
	"workout-api/internal/service"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	userRepo := sqlite.NewUserRepository(db)
	require.NoError(t, userRepo.Init(context.Background()))

	authService, err := service.NewAuthService(userRepo, "test-secret", "HS256")
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	handler := NewHandler(authService, 20*time.Minute, "http://localhost:3000", logger)
	handler.RegisterRoutes(router)
	return router
}

func doJSON(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doMe(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginToken(t *testing.T, router *gin.Engine, username, password string) string {
	t.Helper()
	w := doForm(router, "/auth/token", url.Values{
		"username": {username},
		"password": {password},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "bearer", resp.TokenType)
	return resp.AccessToken
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Health check complete", w.Body.String())
}

func TestRegisterLoginMe(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register",
		`{"username":"bob","name":"Bob","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "bob", created.Username)
	assert.Equal(t, "Bob", created.Name)
	assert.Positive(t, created.ID)

	token := loginToken(t, router, "bob", "pw123")

	me := doMe(router, "Bearer "+token)
	require.Equal(t, http.StatusOK, me.Code, me.Body.String())

	var resp UserResponse
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)
	assert.Equal(t, "bob", resp.Username)
	assert.Equal(t, "Bob", resp.Name)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register",
		`{"username":"bob","name":"Bob","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register",
		`{"username":"bob","name":"Other Bob","password":"pw456"}`)
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestRegister_MissingFields(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register", `{"username":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/auth/register", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken_BadCredentials(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register",
		`{"username":"bob","name":"Bob","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	wrongPassword := doForm(router, "/auth/token", url.Values{
		"username": {"bob"},
		"password": {"nope"},
	})
	unknownUser := doForm(router, "/auth/token", url.Values{
		"username": {"nobody"},
		"password": {"pw123"},
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	// unknown user and wrong password must be indistinguishable
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
}

func TestMe_Unauthenticated(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(router, http.MethodPost, "/auth/register",
		`{"username":"bob","name":"Bob","password":"pw123"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	token := loginToken(t, router, "bob", "pw123")

	tampered := []byte(token)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	cases := map[string]string{
		"missing header":  "",
		"not bearer":      "Basic " + token,
		"empty token":     "Bearer ",
		"garbage token":   "Bearer not-a-jwt",
		"tampered token":  "Bearer " + string(tampered),
		"wrong key token": "Bearer " + mintForeignToken(t),
	}
	for name, authorization := range cases {
		w := doMe(router, authorization)
		assert.Equal(t, http.StatusUnauthorized, w.Code, name)
	}
}

// mintForeignToken issues a structurally valid token under a different secret.
func mintForeignToken(t *testing.T) string {
	t.Helper()
	foreign, err := service.NewAuthService(nil, "other-secret", "HS256")
	require.NoError(t, err)
	token, err := foreign.CreateAccessToken("bob", 1, "Bob", 20*time.Minute)
	require.NoError(t, err)
	return token
}

// stubAuthService fails selected operations with internal errors.
type stubAuthService struct {
	registerErr     error
	authenticateErr error
	mintErr         error
}

func (s *stubAuthService) Register(ctx context.Context, username, name, password string) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &domain.User{ID: 1, Username: username, Name: name}, nil
}

func (s *stubAuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if s.authenticateErr != nil {
		return nil, s.authenticateErr
	}
	return &domain.User{ID: 1, Username: username, Name: "Bob"}, nil
}

func (s *stubAuthService) CreateAccessToken(username string, userID int64, name string, ttl time.Duration) (string, error) {
	if s.mintErr != nil {
		return "", s.mintErr
	}
	return "token", nil
}

func (s *stubAuthService) DecodeToken(tokenString string) (*service.Claims, error) {
	return nil, service.ErrTokenInvalid
}

func newStubRouter(t *testing.T, stub *stubAuthService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	router := gin.New()
	handler := NewHandler(stub, 20*time.Minute, "http://localhost:3000", logger)
	handler.RegisterRoutes(router)
	return router
}

func TestInternalErrorsNotLeaked(t *testing.T) {
	internal := errors.New("insert user: sqlite disk I/O error at /var/data/workout.db")

	cases := map[string]*stubAuthService{
		"register":     {registerErr: internal},
		"authenticate": {authenticateErr: internal},
		"mint":         {mintErr: internal},
	}
	for name, stub := range cases {
		router := newStubRouter(t, stub)

		var w *httptest.ResponseRecorder
		if name == "register" {
			w = doJSON(router, http.MethodPost, "/auth/register",
				`{"username":"bob","name":"Bob","password":"pw123"}`)
		} else {
			w = doForm(router, "/auth/token", url.Values{
				"username": {"bob"},
				"password": {"pw123"},
			})
		}

		assert.Equal(t, http.StatusInternalServerError, w.Code, name)
		assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String(), name)
		assert.NotContains(t, w.Body.String(), "sqlite", name)
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
