package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"workout-api/internal/domain"
	"workout-api/internal/service"
)

const claimsContextKey = "authClaims"

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth        service.AuthService
	tokenTTL    time.Duration
	allowOrigin string
	logger      *logrus.Logger
}

func NewHandler(auth service.AuthService, tokenTTL time.Duration, allowOrigin string, logger *logrus.Logger) *Handler {
	return &Handler{
		auth:        auth,
		tokenTTL:    tokenTTL,
		allowOrigin: allowOrigin,
		logger:      logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(h.allowOrigin))
	router.Use(h.requestLogger())

	router.GET("/", func(ctx *gin.Context) {
		ctx.String(http.StatusOK, "Health check complete")
	})

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/token", h.token)
		auth.GET("/me", h.requireAuth(), h.me)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func corsMiddleware(allowOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// requireAuth extracts the bearer token, decodes it, and stores the
// resulting claims in the request context. Handlers behind it never
// touch the store to resolve the caller's identity.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		claims, err := h.auth.DecodeToken(strings.TrimSpace(token))
		if err != nil {
			// expired and invalid deliberately collapse into one response
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Name, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		h.internalError(c, "register user", err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

func (h *Handler) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "could not validate user"})
			return
		}
		h.internalError(c, "authenticate user", err)
		return
	}

	token, err := h.auth.CreateAccessToken(user.Username, user.ID, user.Name, h.tokenTTL)
	if err != nil {
		h.internalError(c, "create access token", err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) me(c *gin.Context) {
	claims := c.MustGet(claimsContextKey).(*service.Claims)
	c.JSON(http.StatusOK, UserResponse{
		ID:       claims.UserID,
		Username: claims.Subject,
		Name:     claims.Name,
	})
}

// internalError logs the cause and answers with a generic body; wrapped
// store or crypto errors never reach the client.
func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.logger.WithError(err).Error(op)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Username: user.Username,
		Name:     user.Name,
	}
}
