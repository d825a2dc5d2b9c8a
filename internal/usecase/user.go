package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
)

// UpdateUserInput carries a partial profile change; nil fields are left untouched.
type UpdateUserInput struct {
	FirstName *string `json:"first_name" validate:"omitnil,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitnil,min=1,max=100"`
	Password  *string `json:"password" validate:"omitnil,min=1"`
}

func (in UpdateUserInput) empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Password == nil
}

// UserService serves authenticated directory reads and self-service changes.
type UserService struct {
	users  port.UserRepository
	hasher port.CredentialHasher
	policy port.PasswordPolicyValidator
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(
	users port.UserRepository,
	hasher port.CredentialHasher,
	policy port.PasswordPolicyValidator,
	events port.EventPublisher,
	logger *zap.Logger,
) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:  users,
		hasher: hasher,
		policy: policy,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Sanitized())
	}
	return out, nil
}

// Update applies in to the actor's own account.
func (s *UserService) Update(ctx context.Context, actorID, targetID string, in UpdateUserInput) (*domain.User, error) {
	if actorID == "" || actorID != targetID {
		return nil, ErrForbidden
	}

	if in.FirstName != nil {
		trimmed := strings.TrimSpace(*in.FirstName)
		in.FirstName = &trimmed
	}
	if in.LastName != nil {
		trimmed := strings.TrimSpace(*in.LastName)
		in.LastName = &trimmed
	}
	if in.empty() {
		return nil, &InputError{Fields: []FieldError{{Field: "body", Message: "at least one field is required"}}}
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	current, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	next := *current
	var changed []string
	if in.FirstName != nil && *in.FirstName != current.FirstName {
		next.FirstName = *in.FirstName
		changed = append(changed, "first_name")
	}
	if in.LastName != nil && *in.LastName != current.LastName {
		next.LastName = *in.LastName
		changed = append(changed, "last_name")
	}
	if in.Password != nil {
		if s.policy != nil {
			if err := s.policy.Validate(*in.Password, next.Email, next.FirstName, next.LastName); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
			}
		}
		cred, err := s.hasher.Derive(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("derive credential: %w", err)
		}
		next.PasswordDigest, next.PasswordSalt, next.PasswordAlgo = cred.Digest, cred.Salt, cred.Algo
		changed = append(changed, "password")
	} else {
		// The store keeps the existing digest when none is supplied.
		next.PasswordDigest, next.PasswordSalt = nil, nil
	}

	if len(changed) == 0 {
		sanitized := current.Sanitized()
		return &sanitized, nil
	}

	now := s.now().UTC()
	next.UpdatedAt = &now

	updated, err := s.users.Update(ctx, next)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, s.logger, s.events, "user.updated", updated.ID, func(ctx context.Context) error {
		return s.events.PublishUserUpdated(ctx, domain.UserUpdatedEvent{
			EventID:       uuid.NewString(),
			UserID:        updated.ID,
			UpdatedBy:     actorID,
			ChangedFields: changed,
			UpdatedAt:     now,
		})
	})

	sanitized := updated.Sanitized()
	return &sanitized, nil
}

// Delete removes the actor's own account.
func (s *UserService) Delete(ctx context.Context, actorID, targetID string) error {
	if actorID == "" || actorID != targetID {
		return ErrForbidden
	}

	if err := s.users.Delete(ctx, targetID); err != nil {
		return err
	}

	publishEvent(ctx, s.logger, s.events, "user.deleted", targetID, func(ctx context.Context) error {
		return s.events.PublishUserDeleted(ctx, domain.UserDeletedEvent{
			EventID:   uuid.NewString(),
			UserID:    targetID,
			DeletedBy: actorID,
			DeletedAt: s.now().UTC(),
		})
	})
	return nil
}
