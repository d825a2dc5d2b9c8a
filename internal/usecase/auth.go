package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
	"github.com/arklim/user-directory/internal/infra/logger"
	"github.com/arklim/user-directory/internal/repository"
)

// RegisterInput is the anonymous sign-up payload.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Password  string `json:"password" validate:"required"`
}

// LoginResult is a signed access token and the authenticated user without credential material.
type LoginResult struct {
	Token port.IssuedToken
	User  domain.User
}

// AuthService handles registration and password login.
type AuthService struct {
	users  port.UserRepository
	hasher port.CredentialHasher
	tokens port.TokenIssuer
	policy port.PasswordPolicyValidator
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time

	decoyMu sync.Mutex
	decoy   *port.Credential
}

// AuthOption customizes AuthService.
type AuthOption func(*AuthService)

// WithAuthClock replaces time.Now for created-at stamps.
func WithAuthClock(now func() time.Time) AuthOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthService(
	users port.UserRepository,
	hasher port.CredentialHasher,
	tokens port.TokenIssuer,
	policy port.PasswordPolicyValidator,
	events port.EventPublisher,
	logger *zap.Logger,
	opts ...AuthOption,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		policy: policy,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an active account. The email is checked before any
// credential work; a concurrent registration that slips past the check is
// still rejected by the store's unique index.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, ErrEmailAlreadyExists
	}

	if s.policy != nil {
		if err := s.policy.Validate(in.Password, in.Email, in.FirstName, in.LastName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}
	}

	cred, err := s.hasher.Derive(in.Password)
	if err != nil {
		return nil, fmt.Errorf("derive credential: %w", err)
	}

	user := domain.User{
		ID:             uuid.NewString(),
		Email:          in.Email,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PasswordDigest: cred.Digest,
		PasswordSalt:   cred.Salt,
		PasswordAlgo:   cred.Algo,
		CreatedAt:      s.now().UTC(),
		IsActive:       true,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	publishEvent(ctx, s.logger, s.events, "user.registered", created.ID, func(ctx context.Context) error {
		return s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
			EventID:      uuid.NewString(),
			UserID:       created.ID,
			Email:        created.Email,
			FirstName:    created.FirstName,
			LastName:     created.LastName,
			RegisteredAt: created.CreatedAt,
		})
	})

	sanitized := created.Sanitized()
	return &sanitized, nil
}

// Login verifies the password and issues an access token. Unknown email,
// wrong password and inactive account are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.burnVerification(password)
			s.logger.Info("Login rejected", zap.String("email", logger.MaskEmail(email)), zap.String("reason", "unknown_email"))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	stored := port.Credential{Digest: user.PasswordDigest, Salt: user.PasswordSalt, Algo: user.PasswordAlgo}
	if !s.hasher.Verify(password, stored) {
		s.logger.Info("Login rejected", zap.String("user_id", user.ID), zap.String("reason", "password_mismatch"))
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logger.Info("Login rejected", zap.String("user_id", user.ID), zap.String("reason", "inactive"))
		return nil, ErrInvalidCredentials
	}

	issued, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &LoginResult{Token: issued, User: user.Sanitized()}, nil
}

// burnVerification keeps unknown-email logins as slow as a real verification.
func (s *AuthService) burnVerification(password string) {
	decoy, err := s.decoyCredential()
	if err != nil {
		s.logger.Warn("Decoy credential unavailable, unknown-email login not time-equalised", zap.Error(err))
		return
	}
	_ = s.hasher.Verify(password, decoy)
}

// decoyCredential derives the decoy once. A failed derivation is retried on
// the next call.
func (s *AuthService) decoyCredential() (port.Credential, error) {
	s.decoyMu.Lock()
	defer s.decoyMu.Unlock()

	if s.decoy != nil {
		return *s.decoy, nil
	}
	cred, err := s.hasher.Derive(uuid.NewString())
	if err != nil {
		return port.Credential{}, fmt.Errorf("derive decoy credential: %w", err)
	}
	s.decoy = &cred
	return cred, nil
}
