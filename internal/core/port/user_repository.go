package port

import (
	"context"

	"github.com/arklim/user-directory/internal/core/domain"
)

// UserRepository exposes persistence behavior for users. Implementations return
// repository.ErrNotFound for missing records and repository.ErrDuplicateEmail when
// the unique email constraint is violated.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Create(ctx context.Context, user domain.User) (*domain.User, error)
	Update(ctx context.Context, user domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	EmailExists(ctx context.Context, email string) (bool, error)
}
