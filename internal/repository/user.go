package repository

import (
	"context"

	"workout-api/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Lookups are exact-match on username; uniqueness of usernames is
// enforced by the store, including under concurrent creates.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}
