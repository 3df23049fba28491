package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"workout-api/internal/domain"
	"workout-api/internal/repository"
)

var (
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	// Unknown usernames and wrong passwords both surface as this error.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserAlreadyExists is returned when attempting to register with an existing username.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrTokenInvalid indicates a malformed token or a failed signature check.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a well-formed, correctly signed token past its expiration.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the identity embedded in an access token. Subject carries
// the username; no further store lookup is needed to answer "who am I".
type Claims struct {
	UserID int64  `json:"id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// AuthService describes credential verification and token lifecycle operations.
type AuthService interface {
	Register(ctx context.Context, username, name, password string) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
	CreateAccessToken(username string, userID int64, name string, ttl time.Duration) (string, error)
	DecodeToken(tokenString string) (*Claims, error)
}

type authService struct {
	users  repository.UserRepository
	secret []byte
	method *jwt.SigningMethodHMAC

	now func() time.Time
}

// NewAuthService builds an AuthService signing tokens with the given
// secret and HMAC algorithm identifier (HS256, HS384 or HS512). Both
// are fixed for the lifetime of the service.
func NewAuthService(users repository.UserRepository, secret, algorithm string) (AuthService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret is required")
	}
	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}
	return &authService{
		users:  users,
		secret: []byte(secret),
		method: method,
		now:    time.Now,
	}, nil
}

func signingMethod(algorithm string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(strings.TrimSpace(algorithm)) {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
}

func (s *authService) Register(ctx context.Context, username, name, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)

	if username == "" {
		return nil, errors.New("username is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Name:         name,
		PasswordHash: string(hash),
	}

	if _, err := s.users.Create(ctx, user); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	return sanitizeUser(user), nil
}

func (s *authService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return sanitizeUser(user), nil
}

func (s *authService) CreateAccessToken(username string, userID int64, name string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *authService) DecodeToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
